package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/booking-manager/internal/application"
	"github.com/example/booking-manager/internal/permission"
)

type adminBootstrapStore interface {
	CreateUser(ctx context.Context, credentials application.UserCredentials) (application.User, error)
	ListUsers(ctx context.Context) ([]application.User, error)
}

const minBootstrapPasswordLength = 12

// ensureAdmin creates the first ADMIN account. It does nothing once any
// active administrator exists.
func ensureAdmin(ctx context.Context, users adminBootstrapStore, idGenerator func() string, now func() time.Time, email, displayName, password string, logger *slog.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("bootstrap admin: invalid email %q", email)
	}

	existing, err := users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap admin: list users: %w", err)
	}
	for _, user := range existing {
		if user.Role == permission.RoleAdmin && user.Active {
			logger.Info("administrator already present, skipping bootstrap", "user_id", user.ID)
			return nil
		}
	}

	if len(password) < minBootstrapPasswordLength {
		return fmt.Errorf("bootstrap admin: %s must hold at least %d characters", bootstrapPasswordEnv, minBootstrapPasswordLength)
	}
	hash, err := application.HashPassword(password)
	if err != nil {
		return fmt.Errorf("bootstrap admin: hash password: %w", err)
	}

	if strings.TrimSpace(displayName) == "" {
		displayName = "Amministratore"
	}
	createdAt := now()
	user, err := users.CreateUser(ctx, application.UserCredentials{
		User: application.User{
			ID:                   idGenerator(),
			Email:                email,
			DisplayName:          strings.TrimSpace(displayName),
			Role:                 permission.RoleAdmin,
			Tier:                 permission.TierAdministrator,
			Active:               true,
			NotificationsEnabled: true,
			CreatedAt:            createdAt,
			UpdatedAt:            createdAt,
		},
		PasswordHash: hash,
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	logger.Info("bootstrap administrator created", "user_id", user.ID, "email", user.Email)
	return nil
}
