package db

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/DannyIGuesss/el-frijolito-site/internal/config"
	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
	"github.com/DannyIGuesss/el-frijolito-site/internal/repo/memory"
	"github.com/DannyIGuesss/el-frijolito-site/internal/security"
)

const strongPassword = "Tamales-de-Elote-2026!"

func TestEnsureAdminUser_CreatesOnce(t *testing.T) {
	repo := memory.NewUsersRepo()
	seed := config.AdminSeed{
		Email:    "Owner@ElFrijolito.com",
		Password: strongPassword,
		Name:     "Owner",
		Role:     "super_admin",
	}
	ctx := context.Background()

	if err := EnsureAdminUser(ctx, repo, seed, security.DefaultAdminPasswordValidator(), nil); err != nil {
		t.Fatalf("EnsureAdminUser error: %v", err)
	}

	u, err := repo.FindUserByEmail(ctx, "owner@elfrijolito.com")
	if err != nil {
		t.Fatalf("seed admin not found: %v", err)
	}
	if u.Role != user.RoleSuperAdmin || !u.IsActive {
		t.Fatalf("unexpected seed admin %+v", u)
	}
	if err := security.CheckPassword(u.PasswordHash, strongPassword); err != nil {
		t.Fatalf("stored digest does not verify: %v", err)
	}

	// second run is a no-op
	seed.Password = "something-else-entirely-99"
	if err := EnsureAdminUser(ctx, repo, seed, security.DefaultAdminPasswordValidator(), nil); err != nil {
		t.Fatalf("second EnsureAdminUser error: %v", err)
	}
	again, _ := repo.FindUserByEmail(ctx, "owner@elfrijolito.com")
	if again.PasswordHash != u.PasswordHash {
		t.Fatalf("existing admin must not be modified")
	}
}

func TestEnsureAdminUser_Disabled(t *testing.T) {
	repo := memory.NewUsersRepo()

	if err := EnsureAdminUser(context.Background(), repo, config.AdminSeed{}, nil, nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if users, _ := repo.List(context.Background()); len(users) != 0 {
		t.Fatalf("expected no users, got %d", len(users))
	}
}

func TestEnsureAdminUser_Rejects(t *testing.T) {
	tests := []struct {
		name string
		seed config.AdminSeed
		want error
	}{
		{
			name: "weak password",
			seed: config.AdminSeed{Email: "owner@x.com", Password: "admin123", Role: "SUPER_ADMIN"},
		},
		{
			name: "unknown role",
			seed: config.AdminSeed{Email: "owner@x.com", Password: strongPassword, Role: "OWNER"},
			want: user.ErrUnknownRole,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := memory.NewUsersRepo()
			err := EnsureAdminUser(context.Background(), repo, tc.seed, security.DefaultAdminPasswordValidator(), nil)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if _, err := repo.FindUserByEmail(context.Background(), tc.seed.Email); !errors.Is(err, user.ErrNotFound) {
				t.Fatalf("nothing should be created, got %v", err)
			}
		})
	}
}

func TestMigrations_Embedded(t *testing.T) {
	body, err := fs.ReadFile(migrationsFS, "migrations/00001_create_users.sql")
	if err != nil {
		t.Fatalf("migration not embedded: %v", err)
	}
	for _, want := range []string{"-- +goose Up", "lockout_until", "login_attempts", "LOWER(email)"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("migration missing %q", want)
		}
	}
}

func TestMigrate_UsesEmbeddedDir(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var gotDir string
	gooseUp = func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}

	if err := migrate(context.Background(), nil); err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	if gotDir != "migrations" {
		t.Fatalf("expected migrations dir, got %q", gotDir)
	}

	boom := errors.New("lock timeout")
	gooseUp = func(context.Context, *sql.DB, string) error { return boom }
	if err := migrate(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped goose error, got %v", err)
	}
}
