package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DannyIGuesss/el-frijolito-site/internal/db"
	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
	"github.com/DannyIGuesss/el-frijolito-site/internal/repo/memory"
	"github.com/DannyIGuesss/el-frijolito-site/internal/security"
)

const strongPassword = "Verde-Salsa!Molcajete-2031"

func memoryStore(repo *memory.UsersRepo) openStore {
	return func(context.Context) (db.AdminStore, func(), error) {
		return repo, func() {}, nil
	}
}

func TestRun_CreatesAdminFromStdin(t *testing.T) {
	repo := memory.NewUsersRepo()
	var out bytes.Buffer

	err := run(context.Background(),
		[]string{"-email", "Owner@ElFrijolito.com", "-name", "Dueña", "-password-stdin"},
		strings.NewReader(strongPassword+"\n"), &out, memoryStore(repo))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	u, err := repo.FindUserByEmail(context.Background(), "owner@elfrijolito.com")
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if u.Role != user.RoleSuperAdmin || !u.IsActive {
		t.Fatalf("unexpected user %+v", u)
	}
	if err := security.CheckPassword(u.PasswordHash, strongPassword); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if !strings.Contains(out.String(), "created owner@elfrijolito.com (SUPER_ADMIN)") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRun_PromptsTwice(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	answers := [][]byte{[]byte(strongPassword), []byte(strongPassword)}
	readPassword = func(int) ([]byte, error) {
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}

	repo := memory.NewUsersRepo()
	err := run(context.Background(),
		[]string{"-email", "manager@elfrijolito.com", "-role", "MANAGER", "-algo", "argon2id"},
		strings.NewReader(""), &bytes.Buffer{}, memoryStore(repo))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	u, _ := repo.FindUserByEmail(context.Background(), "manager@elfrijolito.com")
	if u.Role != user.RoleManager || !strings.HasPrefix(u.PasswordHash, "$argon2id$") {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestRun_PromptMismatch(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	answers := [][]byte{[]byte(strongPassword), []byte("something-else-entirely")}
	readPassword = func(int) ([]byte, error) {
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}

	err := run(context.Background(), []string{"-email", "a@b.co"}, strings.NewReader(""), &bytes.Buffer{}, memoryStore(memory.NewUsersRepo()))
	if err == nil || !strings.Contains(err.Error(), "do not match") {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}

func TestRun_HashOnlySkipsDatabase(t *testing.T) {
	var out bytes.Buffer
	open := func(context.Context) (db.AdminStore, func(), error) {
		t.Fatal("hash-only must not open the database")
		return nil, nil, nil
	}

	if err := run(context.Background(), []string{"-hash-only", "-password-stdin"}, strings.NewReader(strongPassword), &out, open); err != nil {
		t.Fatalf("run error: %v", err)
	}

	hash := strings.TrimSpace(out.String())
	if err := security.CheckPassword(hash, strongPassword); err != nil {
		t.Fatalf("printed hash does not verify: %v", err)
	}
}

func TestRun_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		input   string
		wantErr string
	}{
		{name: "missing email", args: []string{"-password-stdin"}, input: strongPassword, wantErr: "-email is required"},
		{name: "unknown role", args: []string{"-email", "a@b.co", "-role", "CHEF", "-password-stdin"}, input: strongPassword, wantErr: "unknown role"},
		{name: "weak password", args: []string{"-email", "a@b.co", "-password-stdin"}, input: "frijoles\n", wantErr: "password rejected"},
		{name: "unknown algorithm", args: []string{"-email", "a@b.co", "-algo", "md5", "-password-stdin"}, input: strongPassword, wantErr: "unsupported password hash"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := run(context.Background(), tc.args, strings.NewReader(tc.input), &bytes.Buffer{}, memoryStore(memory.NewUsersRepo()))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRun_DuplicateEmail(t *testing.T) {
	repo := memory.NewUsersRepo()
	repo.Put(user.User{ID: "u-1", Email: "owner@elfrijolito.com", Role: user.RoleSuperAdmin})

	err := run(context.Background(), []string{"-email", "owner@elfrijolito.com", "-password-stdin"},
		strings.NewReader(strongPassword), &bytes.Buffer{}, memoryStore(repo))
	if err == nil || !strings.Contains(err.Error(), "already has an account") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("duplicate should be reported in plain words")
	}
}
