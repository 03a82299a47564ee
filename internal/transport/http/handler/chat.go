package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"aidesk/internal/app"
	"aidesk/internal/model"
	"aidesk/internal/transport/http/middleware"
	"aidesk/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
	fileService *app.FileService
}

func NewChatHandler(chatService *app.ChatService, fileService *app.FileService) *ChatHandler {
	return &ChatHandler{chatService: chatService, fileService: fileService}
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	chats, err := h.chatService.ListChats(userID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list chats failed")
		}
		return
	}

	response.OK(c, chats)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	chatID64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || chatID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}

	history, err := h.chatService.GetHistory(c.Request.Context(), userID, uint(chatID64))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get history failed")
		}
		return
	}

	response.OK(c, history)
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	chatID64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || chatID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}

	if err := h.chatService.DeleteChat(c.Request.Context(), userID, uint(chatID64)); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete chat failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_chat_id": uint(chatID64)})
}

// StreamMessage accepts a multipart "send message" request and relays the
// turn as server-sent events. Once the event stream is open all errors travel
// as in-band frames; the HTTP status never changes after the first frame.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	message := c.PostForm("message")
	feature := model.ParseFeature(c.PostForm("feature"))

	var chatID uint
	if raw := c.PostForm("chat_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat_id")
			return
		}
		chatID = uint(parsed)
	}

	var attachments []app.FileAttachment
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, header := range form.File["files"] {
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
			attachments = append(attachments, app.FileAttachment{
				Name:    stored.Name,
				Path:    stored.Path,
				Content: stored.Text,
			})
		}
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	err := h.chatService.StreamTurn(c.Request.Context(), app.TurnInput{
		UserID:  userID,
		ChatID:  chatID,
		Content: message,
		Feature: feature,
		Files:   attachments,
	}, func(ev app.StreamEvent) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := c.Writer.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		log.Printf("stream turn for user %d failed: %v", userID, err)
	}
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}
