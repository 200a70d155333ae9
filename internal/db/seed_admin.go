package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DannyIGuesss/el-frijolito-site/internal/config"
	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
	"github.com/DannyIGuesss/el-frijolito-site/internal/security"
)

// AdminStore is the part of a users repository the seeder needs.
type AdminStore interface {
	FindUserByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, req user.CreateUserRequest) (user.User, error)
}

// EnsureAdminUser creates the configured seed account when it does not exist
// yet. An empty email or password disables seeding. Existing accounts are
// never modified.
func EnsureAdminUser(ctx context.Context, store AdminStore, seed config.AdminSeed, validator *security.PasswordValidator, log *slog.Logger) error {
	if seed.Email == "" || seed.Password == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}

	_, err := store.FindUserByEmail(ctx, seed.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("look up seed admin: %w", err)
	}

	role, err := user.ParseRole(seed.Role)
	if err != nil {
		return fmt.Errorf("seed admin role: %w", err)
	}

	if err := validator.Validate(seed.Password, seed.Email, seed.Name); err != nil {
		return fmt.Errorf("seed admin password rejected: %w", err)
	}

	hash, err := security.HashPassword(seed.Password)
	if err != nil {
		return fmt.Errorf("hash seed admin password: %w", err)
	}

	created, err := store.Create(ctx, user.CreateUserRequest{
		Email:        seed.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(seed.Name),
		Role:         role,
	})
	if errors.Is(err, user.ErrEmailTaken) {
		// another instance won the race
		return nil
	}
	if err != nil {
		return fmt.Errorf("create seed admin: %w", err)
	}

	log.Info("seed admin created", "user_id", created.ID, "role", created.Role)
	return nil
}
