package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
)

func TestUsersRepo_CreateAndFind(t *testing.T) {
	repo := NewUsersRepo()
	ctx := context.Background()

	created, err := repo.Create(ctx, user.CreateUserRequest{
		Email:        "Owner@ElFrijolito.com",
		PasswordHash: "hash",
		Name:         "Owner",
		Role:         user.RoleSuperAdmin,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.Email != "owner@elfrijolito.com" || !created.IsActive {
		t.Fatalf("unexpected user %+v", created)
	}

	found, err := repo.FindUserByEmail(ctx, "OWNER@elfrijolito.com")
	if err != nil {
		t.Fatalf("FindUserByEmail error: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, found.ID)
	}

	if _, err := repo.Create(ctx, user.CreateUserRequest{Email: "owner@elfrijolito.com", Role: user.RoleStaff}); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if _, err := repo.Create(ctx, user.CreateUserRequest{Email: "x@y.z", Role: "CHEF"}); !errors.Is(err, user.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestUsersRepo_NotFound(t *testing.T) {
	repo := NewUsersRepo()
	ctx := context.Background()

	if _, err := repo.FindUserByEmail(ctx, "nobody@x.com"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.UpdateUser(ctx, "missing", user.Unlock()); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUsersRepo_ConcurrentFailuresAreNotLost(t *testing.T) {
	repo := NewUsersRepo()
	repo.Put(user.User{ID: "u-1", Email: "staff@x.com", Role: user.RoleStaff, IsActive: true})

	const workers = 64
	lockUntil := time.Now().Add(15 * time.Minute)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = repo.UpdateUser(context.Background(), "u-1", user.FailedLogin(5, lockUntil))
		}()
	}
	wg.Wait()

	u, err := repo.GetByID(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if u.LoginAttempts != workers {
		t.Fatalf("expected %d attempts, got %d", workers, u.LoginAttempts)
	}
	if u.LockoutUntil == nil {
		t.Fatalf("expected lockout to be set")
	}
}

func TestUsersRepo_GuardedPatchRefusedWhileLocked(t *testing.T) {
	repo := NewUsersRepo()
	now := time.Date(2026, 4, 10, 20, 0, 0, 0, time.UTC)
	until := now.Add(15 * time.Minute)
	repo.Put(user.User{ID: "u-1", Email: "staff@x.com", Role: user.RoleStaff, IsActive: true, LoginAttempts: 5, LockoutUntil: &until})

	cur, err := repo.UpdateUser(context.Background(), "u-1", user.SuccessfulLogin(now))
	if !errors.Is(err, user.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if cur.LockoutUntil == nil || !cur.LockoutUntil.Equal(until) {
		t.Fatalf("expected current record back, got %+v", cur)
	}

	if _, err := repo.UpdateUser(context.Background(), "u-1", user.FailedLogin(5, now.Add(time.Hour)).UnlessLocked(now)); !errors.Is(err, user.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	u, _ := repo.GetByID(context.Background(), "u-1")
	if u.LoginAttempts != 5 || !u.LockoutUntil.Equal(until) || u.LastLogin != nil {
		t.Fatalf("refused patches must not write, got %+v", u)
	}

	if _, err := repo.UpdateUser(context.Background(), "u-1", user.SuccessfulLogin(until)); err != nil {
		t.Fatalf("expected success once the lockout ran out, got %v", err)
	}
}

func TestUsersRepo_ListSorted(t *testing.T) {
	repo := NewUsersRepo()
	repo.Put(user.User{ID: "2", Email: "b@x.com", Role: user.RoleStaff})
	repo.Put(user.User{ID: "1", Email: "a@x.com", Role: user.RoleAdmin})

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(users) != 2 || users[0].Email != "a@x.com" {
		t.Fatalf("unexpected order %+v", users)
	}
}
