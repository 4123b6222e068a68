package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/MrMohammed1/miran-search/app/auth"
	"github.com/MrMohammed1/miran-search/app/config"
	"github.com/MrMohammed1/miran-search/app/logging"
	"github.com/MrMohammed1/miran-search/models"
)

func main() {
	username := flag.String("username", envOr("SUPERUSER_USERNAME", "testuser"), "account username")
	password := flag.String("password", envOr("SUPERUSER_PASSWORD", "testpass"), "account password")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %s", err)
	}
	logger, err := logging.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %s", err)
	}
	defer logger.Sync()

	db, err := models.Open(cfg.Database.Driver, cfg.Database.DSN, logging.GormLevel(cfg.Log.Level))
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	created, err := ensureSuperuser(context.Background(), models.NewUsersRepository(db), *username, *password)
	if err != nil {
		logger.Fatal("failed to create superuser", zap.Error(err))
	}
	if !created {
		logger.Info("superuser already exists", zap.String("username", *username))
		return
	}
	logger.Info("superuser created", zap.String("username", *username))
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// ensureSuperuser creates the account unless the username is already taken.
func ensureSuperuser(ctx context.Context, users userStore, username, password string) (bool, error) {
	if _, err := users.GetByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return false, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	err = users.CreateUser(ctx, &models.User{
		Username:     username,
		PasswordHash: hash,
		IsSuperuser:  true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
