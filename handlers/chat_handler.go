package handlers

import (
	"context"
	"net/http"

	"corncare-backend/analytics"
	"corncare-backend/metrics"
	"corncare-backend/models"
	"corncare-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ChatAPI is implemented by service.ChatService
type ChatAPI interface {
	AppendMessage(ctx context.Context, req service.AppendMessageRequest) (*service.AppendMessageResult, error)
	Ask(ctx context.Context, req service.AskRequest) (*service.AppendMessageResult, error)
	ListChats(ctx context.Context, userID uuid.UUID) ([]service.ChatListItem, error)
	GetChat(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error)
	PreviewRecent(ctx context.Context, userID uuid.UUID) ([]analytics.Preview, error)
	Search(ctx context.Context, userID uuid.UUID, query string) (*service.SearchResult, error)
	Stats(ctx context.Context, userID uuid.UUID) (*analytics.ChatStats, error)
	Categorize(ctx context.Context, userID uuid.UUID) (map[string]int, error)
	DeleteChat(ctx context.Context, userID, chatID uuid.UUID) error
	ClearAllChats(ctx context.Context, userID uuid.UUID) (int64, error)
	ExportAll(ctx context.Context, userID uuid.UUID) (*service.Export, error)
}

// ChatHandler handles HTTP requests for chats
type ChatHandler struct {
	chatService ChatAPI
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
}

// NewChatHandler creates a new chat handler. m may be nil.
func NewChatHandler(chatService ChatAPI, m *metrics.Metrics, log logrus.FieldLogger) *ChatHandler {
	return &ChatHandler{chatService: chatService, metrics: m, log: log}
}

// AppendMessageRequest represents the request body for recording a chat turn
type AppendMessageRequest struct {
	Message  string  `json:"message"`
	Response string  `json:"response"`
	ChatID   *string `json:"chatId"`
}

// AskRequest represents the request body for asking the advisor
type AskRequest struct {
	Message string  `json:"message"`
	ChatID  *string `json:"chatId"`
}

// optionalChatID parses an optional chatId body field; empty means a new session
func optionalChatID(c *gin.Context, raw *string) (*uuid.UUID, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid chat ID format")
		return nil, false
	}
	return &id, true
}

// AppendMessage handles POST /api/chats
func (h *ChatHandler) AppendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	chatID, ok := optionalChatID(c, req.ChatID)
	if !ok {
		return
	}

	result, err := h.chatService.AppendMessage(c.Request.Context(), service.AppendMessageRequest{
		UserID:   userID,
		ChatID:   chatID,
		Text:     req.Message,
		Response: req.Response,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.metrics.ChatMessagesStored("manual", len(result.Messages))
	respondOK(c, http.StatusCreated, gin.H{"chat": result})
}

// Ask handles POST /api/chats/ask
func (h *ChatHandler) Ask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	chatID, ok := optionalChatID(c, req.ChatID)
	if !ok {
		return
	}

	result, err := h.chatService.Ask(c.Request.Context(), service.AskRequest{
		UserID: userID,
		ChatID: chatID,
		Text:   req.Message,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.metrics.ChatMessagesStored("advisor", len(result.Messages))
	respondOK(c, http.StatusCreated, gin.H{"chat": result})
}

// ListChats handles GET /api/chats/user
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	chats, err := h.chatService.ListChats(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"chats": chats})
}

// GetChat handles GET /api/chats/:chatId
func (h *ChatHandler) GetChat(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	chatID, ok := pathID(c, "chatId", "chat")
	if !ok {
		return
	}

	chat, err := h.chatService.GetChat(c.Request.Context(), userID, chatID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"chat": chat})
}

// PreviewRecent handles GET /api/chats/recent/preview
func (h *ChatHandler) PreviewRecent(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	previews, err := h.chatService.PreviewRecent(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"recentChats": previews})
}

// Stats handles GET /api/chats/stats/summary
func (h *ChatHandler) Stats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := h.chatService.Stats(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"stats": stats})
}

// Search handles GET /api/chats/search/:query
func (h *ChatHandler) Search(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.chatService.Search(c.Request.Context(), userID, c.Param("query"))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}

// Categorize handles GET /api/chats/topics/categories
func (h *ChatHandler) Categorize(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	categories, err := h.chatService.Categorize(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"categories": categories})
}

// DeleteChat handles DELETE /api/chats/:chatId
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	chatID, ok := pathID(c, "chatId", "chat")
	if !ok {
		return
	}

	if err := h.chatService.DeleteChat(c.Request.Context(), userID, chatID); err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"message": "Chat deleted successfully"})
}

// ClearAllChats handles DELETE /api/chats/clear/all
func (h *ChatHandler) ClearAllChats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	n, err := h.chatService.ClearAllChats(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.log.WithFields(logrus.Fields{"user_id": userID, "deleted": n}).Info("chats cleared")
	respondOK(c, http.StatusOK, gin.H{
		"message":      "All chats cleared successfully",
		"deletedCount": n,
	})
}

// ExportAll handles GET /api/chats/export/all
func (h *ChatHandler) ExportAll(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	export, err := h.chatService.ExportAll(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"exportData": export})
}
