// seed inserts development sample users for local testing: go run ./cmd/seed.
// Idempotent: skips inserts if the dev user (jsmith) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"crm-auth-service/internal/config"
	"crm-auth-service/internal/db"
	"crm-auth-service/internal/security"
	userdomain "crm-auth-service/internal/user/domain"
	userrepo "crm-auth-service/internal/user/repository"
)

const (
	devUsername = "jsmith"
	devPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	repo := userrepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := repo.GetByUsername(ctx, devUsername)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (jsmith exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	seedUsers := []*userdomain.User{
		{
			ID:           uuid.New().String(),
			Username:     devUsername,
			PasswordHash: passwordHash,
			Phone:        "01012345678",
			Department:   "sales",
			Position:     "manager",
			Source:       userdomain.SourceLocal,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           uuid.New().String(),
			Username:     "mlee",
			PasswordHash: passwordHash,
			Department:   "engineering",
			Position:     "staff",
			Source:       userdomain.SourceDirectory,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	for _, u := range seedUsers {
		if err := u.Validate(); err != nil {
			log.Fatalf("seed user %s: %v", u.Username, err)
		}
		if err := repo.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", u.Username, err)
		}
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devUsername, devPassword)
}
