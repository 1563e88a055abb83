package service

import (
	"context"

	"corncare-backend/models"
	"corncare-backend/repository"

	"github.com/google/uuid"
)

// UserStore is the subset of repository.UserRepository the services use
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) (*models.User, error)
	AppendScan(ctx context.Context, userID, scanID uuid.UUID) error
	AddChat(ctx context.Context, userID, chatID uuid.UUID) error
	RemoveChat(ctx context.Context, userID, chatID uuid.UUID) error
	ClearChats(ctx context.Context, userID uuid.UUID) error
}

// ScanStore is the subset of repository.ScanRepository the services use
type ScanStore interface {
	Create(ctx context.Context, scan *models.Scan) error
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Scan, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Scan, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Scan, error)
}

// ChatStore is the subset of repository.ChatRepository the services use
type ChatStore interface {
	CreateWithMessages(ctx context.Context, userID uuid.UUID, msgs []models.Message) (*models.Chat, error)
	AppendMessages(ctx context.Context, chatID, userID uuid.UUID, msgs []models.Message) error
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Chat, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, order repository.SortOrder, limit int) ([]*models.Chat, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Chat, error)
	DeleteForUser(ctx context.Context, id, userID uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Advisor produces an answer to a grower's question given the earlier turns of the chat
type Advisor interface {
	Advise(ctx context.Context, question string, history []models.Message) (string, error)
}

var (
	_ UserStore = (*repository.UserRepository)(nil)
	_ ScanStore = (*repository.ScanRepository)(nil)
	_ ChatStore = (*repository.ChatRepository)(nil)
)
