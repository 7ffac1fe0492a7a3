package db

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/resumeforge/internal/config"
	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/geocoder89/resumeforge/internal/security"
	"github.com/google/uuid"
)

type AdminSeeder interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

// EnsureAdminUser creates the configured admin account if it does not exist.
func EnsureAdminUser(ctx context.Context, users AdminSeeder, cfg config.Config, log *slog.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	_, err := users.GetByEmail(ctx, email)

	if err == nil {
		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	now := time.Now().UTC()

	_, err = users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		Plan:         user.PlanPro,
		ResumeLimit:  user.PlanPro.Quota(),
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	// another instance seeded it first
	if errors.Is(err, user.ErrEmailAlreadyUsed) {
		return nil
	}
	if err == nil {
		log.InfoContext(ctx, "admin user seeded", "email", email)
	}

	return err
}
