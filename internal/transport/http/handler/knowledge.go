package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"aidesk/internal/app"
	"aidesk/internal/transport/http/response"
)

type KnowledgeHandler struct {
	knowledgeService *app.KnowledgeService
	fileService      *app.FileService
}

type KnowledgeItemUpdateRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func NewKnowledgeHandler(knowledgeService *app.KnowledgeService, fileService *app.FileService) *KnowledgeHandler {
	return &KnowledgeHandler{knowledgeService: knowledgeService, fileService: fileService}
}

func (h *KnowledgeHandler) List(c *gin.Context) {
	items, err := h.knowledgeService.List()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list knowledge items failed")
		return
	}
	response.OK(c, items)
}

func (h *KnowledgeHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	item, err := h.knowledgeService.Get(id)
	if err != nil {
		h.writeError(c, err, "get knowledge item failed")
		return
	}
	response.OK(c, item)
}

// Add accepts multipart form data so an image can accompany the Q/A pair.
func (h *KnowledgeHandler) Add(c *gin.Context) {
	question := c.PostForm("question")
	answer := c.PostForm("answer")

	imagePath := ""
	if header, err := c.FormFile("image"); err == nil {
		src, err := header.Open()
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read uploaded image failed")
			return
		}
		stored, err := h.fileService.Save(header.Filename, src)
		_ = src.Close()
		if err != nil {
			if errors.Is(err, app.ErrFileTypeNotAllowed) {
				response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
				return
			}
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "store uploaded image failed")
			return
		}
		imagePath = stored.Path
	}

	item, err := h.knowledgeService.Add(app.KnowledgeItemInput{
		Question:  question,
		Answer:    answer,
		ImagePath: imagePath,
	})
	if err != nil {
		h.writeError(c, err, "add knowledge item failed")
		return
	}
	response.OK(c, item)
}

func (h *KnowledgeHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req KnowledgeItemUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	item, err := h.knowledgeService.Update(id, app.KnowledgeItemInput{
		Question: req.Question,
		Answer:   req.Answer,
	})
	if err != nil {
		h.writeError(c, err, "update knowledge item failed")
		return
	}
	response.OK(c, item)
}

func (h *KnowledgeHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.knowledgeService.Delete(id); err != nil {
		h.writeError(c, err, "delete knowledge item failed")
		return
	}
	response.OK(c, gin.H{"deleted_item_id": id})
}

func (h *KnowledgeHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrKnowledgeItemNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid id")
		return 0, false
	}
	return uint(id64), true
}
