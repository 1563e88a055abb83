package repository

import (
	"context"
	"fmt"

	"corncare-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ChatRepository handles database operations for chats and their messages
type ChatRepository struct {
	db DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// SortOrder selects the created_at ordering of chat listings
type SortOrder int

const (
	NewestFirst SortOrder = iota
	OldestFirst
)

func (o SortOrder) sql() string {
	if o == OldestFirst {
		return "ASC"
	}
	return "DESC"
}

// CreateWithMessages starts a new chat for userID holding msgs
func (r *ChatRepository) CreateWithMessages(ctx context.Context, userID uuid.UUID, msgs []models.Message) (*models.Chat, error) {
	chat := &models.Chat{UserID: userID}

	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO chats (user_id) VALUES ($1) RETURNING id, created_at`,
			userID,
		).Scan(&chat.ID, &chat.CreatedAt)
		if err != nil {
			return err
		}
		return insertMessages(ctx, tx, chat.ID, msgs)
	})
	if err != nil {
		return nil, mapError(err)
	}

	chat.Messages = append([]models.Message{}, msgs...)
	return chat, nil
}

// AppendMessages adds msgs to the end of a chat owned by userID
func (r *ChatRepository) AppendMessages(ctx context.Context, chatID, userID uuid.UUID, msgs []models.Message) error {
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var id uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM chats WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			chatID, userID,
		).Scan(&id)
		if err != nil {
			return err
		}
		return insertMessages(ctx, tx, chatID, msgs)
	})
	return mapError(err)
}

func insertMessages(ctx context.Context, tx pgx.Tx, chatID uuid.UUID, msgs []models.Message) error {
	for _, m := range msgs {
		_, err := tx.Exec(ctx,
			`INSERT INTO chat_messages (chat_id, text, is_user, timestamp) VALUES ($1, $2, $3, $4)`,
			chatID, m.Text, m.IsUser, m.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
	}
	return nil
}

// GetByIDForUser retrieves a chat with all its messages if userID owns it
func (r *ChatRepository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Chat, error) {
	chat := &models.Chat{}
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, created_at FROM chats WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&chat.ID, &chat.UserID, &chat.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	chats := []*models.Chat{chat}
	if err := r.loadMessages(ctx, chats); err != nil {
		return nil, err
	}
	return chat, nil
}

// ListByUserID retrieves a user's chats with messages. limit <= 0 means no limit.
func (r *ChatRepository) ListByUserID(ctx context.Context, userID uuid.UUID, order SortOrder, limit int) ([]*models.Chat, error) {
	query := `SELECT id, user_id, created_at FROM chats WHERE user_id = $1 ORDER BY created_at ` + order.sql()
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	return r.listChats(ctx, query, args...)
}

// ListByIDs retrieves chats with messages by id. Missing ids are skipped.
func (r *ChatRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Chat, error) {
	if len(ids) == 0 {
		return []*models.Chat{}, nil
	}
	return r.listChats(ctx, `SELECT id, user_id, created_at FROM chats WHERE id = ANY($1)`, ids)
}

func (r *ChatRepository) listChats(ctx context.Context, query string, args ...any) ([]*models.Chat, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	chats := []*models.Chat{}
	for rows.Next() {
		chat := &models.Chat{}
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		chats = append(chats, chat)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadMessages(ctx, chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// loadMessages fills Messages of every chat in insertion order
func (r *ChatRepository) loadMessages(ctx context.Context, chats []*models.Chat) error {
	if len(chats) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*models.Chat, len(chats))
	ids := make([]uuid.UUID, 0, len(chats))
	for _, c := range chats {
		c.Messages = []models.Message{}
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	rows, err := r.db.Query(ctx,
		`SELECT chat_id, text, is_user, timestamp FROM chat_messages WHERE chat_id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			chatID uuid.UUID
			msg    models.Message
		)
		if err := rows.Scan(&chatID, &msg.Text, &msg.IsUser, &msg.Timestamp); err != nil {
			return err
		}
		if c, ok := byID[chatID]; ok {
			c.Messages = append(c.Messages, msg)
		}
	}
	return rows.Err()
}

// DeleteForUser removes a chat owned by userID
func (r *ChatRepository) DeleteForUser(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM chats WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllForUser removes every chat of userID and reports how many were deleted
func (r *ChatRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM chats WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
