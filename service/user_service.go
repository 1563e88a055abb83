package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"corncare-backend/models"
	"corncare-backend/repository"

	"github.com/google/uuid"
)

// RecentScansLimit is how many scans GetStats reports
const RecentScansLimit = 5

// UserService handles profile reads, edits and per-user aggregates
type UserService struct {
	userRepo UserStore
	scanRepo ScanStore
	chatRepo ChatStore
}

// UserServiceOption is a functional option for UserService
type UserServiceOption func(*UserService)

// WithUserRepository sets the user repository
func WithUserRepository(repo UserStore) UserServiceOption {
	return func(s *UserService) {
		s.userRepo = repo
	}
}

// WithUserScanRepository sets the scan repository used to expand scan references
func WithUserScanRepository(repo ScanStore) UserServiceOption {
	return func(s *UserService) {
		s.scanRepo = repo
	}
}

// WithUserChatRepository sets the chat repository used to expand chat references
func WithUserChatRepository(repo ChatStore) UserServiceOption {
	return func(s *UserService) {
		s.chatRepo = repo
	}
}

// NewUserService creates a new user service
func NewUserService(opts ...UserServiceOption) *UserService {
	s := &UserService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profile is a user with its references expanded
type Profile struct {
	ID           uuid.UUID              `json:"_id"`
	Name         string                 `json:"name"`
	Email        string                 `json:"email"`
	ProfileImage *string                `json:"profileImage,omitempty"`
	ScanHistory  []models.ScanSummary   `json:"scanHistory"`
	ChatHistory  []models.ChatSummary   `json:"chatHistory"`
	Preferences  models.UserPreferences `json:"preferences"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// UserStats is the aggregate returned by GetStats
type UserStats struct {
	TotalScans     int                  `json:"totalScans"`
	TotalChats     int                  `json:"totalChats"`
	RecentScans    []*models.Scan       `json:"recentScans"`
	CommonDiseases map[string]int       `json:"commonDiseases"`
}

func (s *UserService) ready() error {
	if s.userRepo == nil || s.scanRepo == nil || s.chatRepo == nil {
		return errors.New("user service not fully configured")
	}
	return nil
}

func (s *UserService) getUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

// GetProfile returns the user without password and with its history expanded
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, user)
}

// UpdateProfile applies the present fields of update
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, update models.ProfileUpdate) (*Profile, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	// blank fields count as absent
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			update.Name = nil
		} else {
			update.Name = &name
		}
	}
	if update.ProfileImage != nil && strings.TrimSpace(*update.ProfileImage) == "" {
		update.ProfileImage = nil
	}

	user, err := s.userRepo.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, err
	}
	return s.expand(ctx, user)
}

func (s *UserService) expand(ctx context.Context, user *models.User) (*Profile, error) {
	scans, err := s.referencedScans(ctx, user.ScanHistory)
	if err != nil {
		return nil, err
	}

	chats, err := s.chatRepo.ListByIDs(ctx, user.ChatHistory)
	if err != nil {
		return nil, err
	}
	chatByID := make(map[uuid.UUID]*models.Chat, len(chats))
	for _, c := range chats {
		chatByID[c.ID] = c
	}

	p := &Profile{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		ProfileImage: user.ProfileImage,
		ScanHistory:  make([]models.ScanSummary, 0, len(scans)),
		ChatHistory:  make([]models.ChatSummary, 0, len(chats)),
		Preferences:  user.Preferences,
		CreatedAt:    user.CreatedAt,
	}
	for _, scan := range scans {
		p.ScanHistory = append(p.ScanHistory, scan.Summary())
	}
	for _, id := range user.ChatHistory {
		if c, ok := chatByID[id]; ok {
			p.ChatHistory = append(p.ChatHistory, models.ChatSummary{ID: c.ID, Messages: c.Messages, CreatedAt: c.CreatedAt})
		}
	}
	return p, nil
}

// referencedScans loads scans in reference order, skipping dangling ids
func (s *UserService) referencedScans(ctx context.Context, ids []uuid.UUID) ([]*models.Scan, error) {
	scans, err := s.scanRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Scan, len(scans))
	for _, scan := range scans {
		byID[scan.ID] = scan
	}

	ordered := make([]*models.Scan, 0, len(ids))
	for _, id := range ids {
		if scan, ok := byID[id]; ok {
			ordered = append(ordered, scan)
		}
	}
	return ordered, nil
}

// GetStats reports scan and chat counts, the latest scans and disease frequencies
func (s *UserService) GetStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	scans, err := s.referencedScans(ctx, user.ScanHistory)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{
		TotalScans:     len(user.ScanHistory),
		TotalChats:     len(user.ChatHistory),
		RecentScans:    []*models.Scan{},
		CommonDiseases: make(map[string]int),
	}

	start := len(scans) - RecentScansLimit
	if start < 0 {
		start = 0
	}
	for _, scan := range scans[start:] {
		stats.RecentScans = append(stats.RecentScans, scan)
	}
	for _, scan := range scans {
		stats.CommonDiseases[scan.DiseaseName]++
	}

	return stats, nil
}
