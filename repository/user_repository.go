package repository

import (
	"context"

	"corncare-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, password_hash, profile_image, scan_history, chat_history,
	pref_notifications, pref_language, pref_dark_mode, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.ProfileImage,
		&user.ScanHistory,
		&user.ChatHistory,
		&user.Preferences.Notifications,
		&user.Preferences.Language,
		&user.Preferences.DarkMode,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	if user.ScanHistory == nil {
		user.ScanHistory = []uuid.UUID{}
	}
	if user.ChatHistory == nil {
		user.ChatHistory = []uuid.UUID{}
	}
	return user, nil
}

// Create inserts a new user. The email must already be normalised.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			name, email, password_hash, profile_image,
			pref_notifications, pref_language, pref_dark_mode
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, scan_history, chat_history, created_at`

	err := r.db.QueryRow(
		ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.ProfileImage,
		user.Preferences.Notifications,
		user.Preferences.Language,
		user.Preferences.DarkMode,
	).Scan(&user.ID, &user.ScanHistory, &user.ChatHistory, &user.CreatedAt)

	return mapError(err)
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by normalised email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// UpdateProfile applies the non-nil fields of update and returns the stored user
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) (*models.User, error) {
	var notifications, darkMode *bool
	var language *string
	if update.Preferences != nil {
		notifications = update.Preferences.Notifications
		language = update.Preferences.Language
		darkMode = update.Preferences.DarkMode
	}

	query := `
		UPDATE users SET
			name = COALESCE($2, name),
			profile_image = COALESCE($3, profile_image),
			pref_notifications = COALESCE($4, pref_notifications),
			pref_language = COALESCE($5, pref_language),
			pref_dark_mode = COALESCE($6, pref_dark_mode)
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(r.db.QueryRow(
		ctx, query,
		id,
		update.Name,
		update.ProfileImage,
		notifications,
		language,
		darkMode,
	))
}

// AppendScan adds a scan id to the end of the user's scan history
func (r *UserRepository) AppendScan(ctx context.Context, userID, scanID uuid.UUID) error {
	query := `UPDATE users SET scan_history = array_append(scan_history, $2) WHERE id = $1`
	return r.execOne(ctx, query, userID, scanID)
}

// AddChat adds a chat id to the user's chat history unless it is already there
func (r *UserRepository) AddChat(ctx context.Context, userID, chatID uuid.UUID) error {
	query := `
		UPDATE users SET chat_history = CASE
			WHEN $2 = ANY(chat_history) THEN chat_history
			ELSE array_append(chat_history, $2)
		END
		WHERE id = $1`
	return r.execOne(ctx, query, userID, chatID)
}

// RemoveChat pulls a chat id out of the user's chat history
func (r *UserRepository) RemoveChat(ctx context.Context, userID, chatID uuid.UUID) error {
	query := `UPDATE users SET chat_history = array_remove(chat_history, $2) WHERE id = $1`
	return r.execOne(ctx, query, userID, chatID)
}

// ClearChats empties the user's chat history
func (r *UserRepository) ClearChats(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE users SET chat_history = '{}' WHERE id = $1`
	return r.execOne(ctx, query, userID)
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
