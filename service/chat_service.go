package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"corncare-backend/analytics"
	"corncare-backend/models"
	"corncare-backend/repository"

	"github.com/google/uuid"
)

const (
	ChatListLimit    = 20
	ChatPreviewLimit = 5
)

// ChatService records chat turns and computes chat analytics
type ChatService struct {
	chatRepo ChatStore
	userRepo UserStore
	advisor  Advisor
	now      func() time.Time
}

// ChatServiceOption is a functional option for ChatService
type ChatServiceOption func(*ChatService)

// WithChatRepository sets the chat repository
func WithChatRepository(repo ChatStore) ChatServiceOption {
	return func(s *ChatService) {
		s.chatRepo = repo
	}
}

// WithChatUserRepository sets the user repository used to track chat references
func WithChatUserRepository(repo UserStore) ChatServiceOption {
	return func(s *ChatService) {
		s.userRepo = repo
	}
}

// WithAdvisor sets the model that answers /ask questions
func WithAdvisor(advisor Advisor) ChatServiceOption {
	return func(s *ChatService) {
		s.advisor = advisor
	}
}

// WithChatClock overrides the time source
func WithChatClock(now func() time.Time) ChatServiceOption {
	return func(s *ChatService) {
		s.now = now
	}
}

// NewChatService creates a new chat service
func NewChatService(opts ...ChatServiceOption) *ChatService {
	s := &ChatService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ChatService) ready() error {
	if s.chatRepo == nil || s.userRepo == nil {
		return errors.New("chat service not fully configured")
	}
	return nil
}

// AppendMessageRequest is one question/answer turn. A nil ChatID starts a new session.
type AppendMessageRequest struct {
	UserID   uuid.UUID
	ChatID   *uuid.UUID
	Text     string
	Response string
}

// AppendMessageResult carries the chat id and the two entries just stored
type AppendMessageResult struct {
	ID       uuid.UUID        `json:"_id"`
	Messages []models.Message `json:"messages"`
}

// AppendMessage stores a user entry followed by its response
func (s *ChatService) AppendMessage(ctx context.Context, req AppendMessageRequest) (*AppendMessageResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if req.Text == "" || req.Response == "" {
		return nil, fmt.Errorf("%w: message and response are required", ErrValidation)
	}

	now := s.now()
	msgs := []models.Message{
		{Text: req.Text, IsUser: true, Timestamp: now},
		{Text: req.Response, IsUser: false, Timestamp: now},
	}

	var chatID uuid.UUID
	if req.ChatID == nil {
		chat, err := s.chatRepo.CreateWithMessages(ctx, req.UserID, msgs)
		if err != nil {
			return nil, fmt.Errorf("create chat: %w", err)
		}
		chatID = chat.ID
	} else {
		if err := s.chatRepo.AppendMessages(ctx, *req.ChatID, req.UserID, msgs); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: chat not found", ErrNotFound)
			}
			return nil, fmt.Errorf("append messages: %w", err)
		}
		chatID = *req.ChatID
	}

	if err := s.userRepo.AddChat(ctx, req.UserID, chatID); err != nil {
		return nil, fmt.Errorf("link chat to user: %w", err)
	}

	return &AppendMessageResult{ID: chatID, Messages: msgs}, nil
}

// AskRequest is a question for the advisor
type AskRequest struct {
	UserID uuid.UUID
	ChatID *uuid.UUID
	Text   string
}

// Ask gets an answer from the advisor and records the turn like AppendMessage
func (s *ChatService) Ask(ctx context.Context, req AskRequest) (*AppendMessageResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.advisor == nil {
		return nil, ErrAdvisorUnavailable
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}

	var history []models.Message
	if req.ChatID != nil {
		chat, err := s.GetChat(ctx, req.UserID, *req.ChatID)
		if err != nil {
			return nil, err
		}
		history = chat.Messages
	}

	answer, err := s.advisor.Advise(ctx, req.Text, history)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdvisorUnavailable, err)
	}

	return s.AppendMessage(ctx, AppendMessageRequest{
		UserID:   req.UserID,
		ChatID:   req.ChatID,
		Text:     req.Text,
		Response: answer,
	})
}

// ChatListItem is a session annotated for the chat list
type ChatListItem struct {
	ID           uuid.UUID        `json:"_id"`
	Messages     []models.Message `json:"messages"`
	CreatedAt    time.Time        `json:"createdAt"`
	MessageCount int              `json:"messageCount"`
	LastMessage  *models.Message  `json:"lastMessage"`
}

// ListChats returns the newest sessions of a user
func (s *ChatService) ListChats(ctx context.Context, userID uuid.UUID) ([]ChatListItem, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	chats, err := s.chatRepo.ListByUserID(ctx, userID, repository.NewestFirst, ChatListLimit)
	if err != nil {
		return nil, err
	}

	items := make([]ChatListItem, 0, len(chats))
	for _, c := range chats {
		items = append(items, ChatListItem{
			ID:           c.ID,
			Messages:     c.Messages,
			CreatedAt:    c.CreatedAt,
			MessageCount: len(c.Messages),
			LastMessage:  c.LastMessage(),
		})
	}
	return items, nil
}

// GetChat returns a full session owned by userID
func (s *ChatService) GetChat(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	chat, err := s.chatRepo.GetByIDForUser(ctx, chatID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: chat not found", ErrNotFound)
		}
		return nil, err
	}
	return chat, nil
}

// PreviewRecent returns shortened rows for the newest sessions
func (s *ChatService) PreviewRecent(ctx context.Context, userID uuid.UUID) ([]analytics.Preview, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	chats, err := s.chatRepo.ListByUserID(ctx, userID, repository.NewestFirst, ChatPreviewLimit)
	if err != nil {
		return nil, err
	}
	return analytics.Previews(values(chats)), nil
}

// SearchResult is the response of Search
type SearchResult struct {
	Query   string                   `json:"query"`
	Results []analytics.SearchResult `json:"results"`
}

// Search finds messages containing query across every session of the user
func (s *ChatService) Search(ctx context.Context, userID uuid.UUID, query string) (*SearchResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	// the query is matched verbatim, surrounding spaces included
	q := strings.ToLower(query)
	if q == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrValidation)
	}

	chats, err := s.chatRepo.ListByUserID(ctx, userID, repository.OldestFirst, 0)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Query:   q,
		Results: analytics.Search(values(chats), q, analytics.SearchLimit),
	}, nil
}

// Stats summarises every session of the user
func (s *ChatService) Stats(ctx context.Context, userID uuid.UUID) (*analytics.ChatStats, error) {
	chats, err := s.allChats(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := analytics.Summarize(chats)
	return &stats, nil
}

// Categorize tallies the user's questions by topic
func (s *ChatService) Categorize(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	chats, err := s.allChats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.Categorize(chats), nil
}

func (s *ChatService) allChats(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	chats, err := s.chatRepo.ListByUserID(ctx, userID, repository.OldestFirst, 0)
	if err != nil {
		return nil, err
	}
	return values(chats), nil
}

// DeleteChat removes a session owned by userID
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID uuid.UUID) error {
	if err := s.ready(); err != nil {
		return err
	}

	if err := s.chatRepo.DeleteForUser(ctx, chatID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: chat not found", ErrNotFound)
		}
		return err
	}

	if err := s.userRepo.RemoveChat(ctx, userID, chatID); err != nil {
		return fmt.Errorf("unlink chat: %w", err)
	}
	return nil
}

// ClearAllChats removes every session of the user and reports how many were deleted
func (s *ChatService) ClearAllChats(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	n, err := s.chatRepo.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := s.userRepo.ClearChats(ctx, userID); err != nil {
		return n, fmt.Errorf("clear chat history: %w", err)
	}
	return n, nil
}

// ExportMessage is one message in an export
type ExportMessage struct {
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// ExportChat is one session in an export
type ExportChat struct {
	ChatID    uuid.UUID       `json:"chatId"`
	StartedAt time.Time       `json:"startedAt"`
	Messages  []ExportMessage `json:"messages"`
}

// Export is the full chat dump of a user
type Export struct {
	UserID     uuid.UUID    `json:"userId"`
	ExportDate time.Time    `json:"exportDate"`
	TotalChats int          `json:"totalChats"`
	Chats      []ExportChat `json:"chats"`
}

// ExportAll returns every session of the user, oldest first
func (s *ChatService) ExportAll(ctx context.Context, userID uuid.UUID) (*Export, error) {
	chats, err := s.allChats(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &Export{
		UserID:     userID,
		ExportDate: s.now().UTC(),
		TotalChats: len(chats),
		Chats:      make([]ExportChat, 0, len(chats)),
	}
	for _, c := range chats {
		ec := ExportChat{
			ChatID:    c.ID,
			StartedAt: c.CreatedAt,
			Messages:  make([]ExportMessage, 0, len(c.Messages)),
		}
		for _, m := range c.Messages {
			ec.Messages = append(ec.Messages, ExportMessage{Text: m.Text, IsUser: m.IsUser, Timestamp: m.Timestamp})
		}
		out.Chats = append(out.Chats, ec)
	}
	return out, nil
}

func values(chats []*models.Chat) []models.Chat {
	out := make([]models.Chat, 0, len(chats))
	for _, c := range chats {
		out = append(out, *c)
	}
	return out
}
