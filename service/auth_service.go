package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"corncare-backend/auth"
	"corncare-backend/models"
	"corncare-backend/repository"
)

// AuthService handles registration and login
type AuthService struct {
	userRepo UserStore
	tokens   auth.TokenManager
	hasher   auth.PasswordHasher
}

// AuthServiceOption is a functional option for AuthService
type AuthServiceOption func(*AuthService)

// WithAuthUserRepository sets the user repository
func WithAuthUserRepository(repo UserStore) AuthServiceOption {
	return func(s *AuthService) {
		s.userRepo = repo
	}
}

// WithTokenManager sets the token issuer
func WithTokenManager(tokens auth.TokenManager) AuthServiceOption {
	return func(s *AuthService) {
		s.tokens = tokens
	}
}

// WithPasswordHasher sets the password hasher
func WithPasswordHasher(hasher auth.PasswordHasher) AuthServiceOption {
	return func(s *AuthService) {
		s.hasher = hasher
	}
}

// NewAuthService creates a new auth service
func NewAuthService(opts ...AuthServiceOption) *AuthService {
	s := &AuthService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRequest represents a request to create an account
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Email    string
	Password string
}

// AuthResult is returned by both Register and Login
type AuthResult struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) ready() error {
	if s.userRepo == nil || s.tokens == nil || s.hasher == nil {
		return errors.New("auth service not fully configured")
	}
	return nil
}

// Register creates an account and returns a token for it
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	email := NormalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrValidation)
	}

	_, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: user already exists", ErrConflict)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Preferences:  models.DefaultPreferences(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: user already exists", ErrConflict)
		}
		return nil, err
	}

	return s.issue(user)
}

// Login checks credentials and returns a fresh token
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if !s.hasher.Compare(user.PasswordHash, req.Password) {
		return nil, ErrUnauthorized
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID.String())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Token: token, User: user.Public()}, nil
}
