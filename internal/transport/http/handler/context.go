package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"aidesk/internal/app"
	"aidesk/internal/transport/http/response"
)

type ContextHandler struct {
	contextService *app.ContextService
	fileService    *app.FileService
}

func NewContextHandler(contextService *app.ContextService, fileService *app.FileService) *ContextHandler {
	return &ContextHandler{contextService: contextService, fileService: fileService}
}

// Add accepts either a "content" form field (text context) or a "file" upload
// whose extracted text becomes the context.
func (h *ContextHandler) Add(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	if header, err := c.FormFile("file"); err == nil {
		src, err := header.Open()
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read uploaded file failed")
			return
		}
		stored, err := h.fileService.Save(header.Filename, src)
		_ = src.Close()
		if err != nil {
			if errors.Is(err, app.ErrFileTypeNotAllowed) {
				response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
				return
			}
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "store uploaded file failed")
			return
		}

		ctx, err := h.contextService.AddFile(userID, stored.Name, stored.Path, stored.Text)
		if err != nil {
			h.writeError(c, err, "add context failed")
			return
		}
		response.OK(c, ctx)
		return
	}

	ctx, err := h.contextService.AddText(userID, c.PostForm("content"))
	if err != nil {
		h.writeError(c, err, "add context failed")
		return
	}
	response.OK(c, ctx)
}

func (h *ContextHandler) ListAll(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	contexts, err := h.contextService.ListForUser(userID)
	if err != nil {
		h.writeError(c, err, "list contexts failed")
		return
	}
	response.OK(c, contexts)
}

func (h *ContextHandler) Latest(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	ctx, err := h.contextService.LatestForUser(userID)
	if err != nil {
		h.writeError(c, err, "get latest context failed")
		return
	}
	// No context rows is a valid empty outcome, not a 404.
	response.OK(c, ctx)
}

func (h *ContextHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid context id")
		return
	}

	if err := h.contextService.Delete(userID, uint(id64)); err != nil {
		h.writeError(c, err, "delete context failed")
		return
	}
	response.OK(c, gin.H{"deleted_context_id": uint(id64)})
}

func (h *ContextHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrContextNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
