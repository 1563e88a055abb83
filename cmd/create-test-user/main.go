package main

import (
	"context"
	"errors"
	"fmt"

	"corncare-backend/auth"
	"corncare-backend/config"
	"corncare-backend/models"
	"corncare-backend/repository"
	"corncare-backend/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Read()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	users := repository.NewUserRepository(pool)

	// Create a test user
	email := service.NormalizeEmail("test@example.com")
	password := "testpassword123"
	name := "Test User"

	// Check if user already exists
	existing, err := users.GetByEmail(ctx, email)
	if err == nil {
		logrus.Infof("User with email %s already exists (ID: %s)", email, existing.ID)
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logrus.Fatalf("Failed to look up user: %v", err)
	}

	hash, err := auth.NewBcryptHasher(auth.DefaultBcryptCost).Hash(password)
	if err != nil {
		logrus.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Preferences:  models.DefaultPreferences(),
	}
	if err := users.Create(ctx, user); err != nil {
		logrus.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("Test user created successfully!\n")
	fmt.Printf("   ID: %s\n", user.ID)
	fmt.Printf("   Email: %s\n", email)
	fmt.Printf("   Password: %s\n", password)
	fmt.Printf("   Name: %s\n", name)
}
