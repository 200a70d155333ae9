package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo keeps users in process. Every write holds the lock for the
// whole read-modify-write, so concurrent patches to one account never lose
// an increment.
type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // id -> user
	byEmail map[string]string    // normalized email -> id
	now     func() time.Time
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *UsersRepo) Create(_ context.Context, req user.CreateUserRequest) (user.User, error) {
	if !req.Role.Valid() {
		return user.User{}, user.ErrUnknownRole
	}

	email := user.NormalizeEmail(req.Email)
	now := r.now()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: req.PasswordHash,
		Name:         req.Name,
		Role:         req.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return user.User{}, user.ErrEmailTaken
	}

	r.items[u.ID] = u
	r.byEmail[email] = u.ID

	return u, nil
}

// Put stores u as is. Tests use it to seed arbitrary state.
func (r *UsersRepo) Put(u user.User) {
	u.Email = user.NormalizeEmail(u.Email)

	r.mu.Lock()
	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID
	r.mu.Unlock()
}

func (r *UsersRepo) FindUserByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return r.items[id], nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) List(_ context.Context) ([]user.User, error) {
	r.mu.RLock()
	out := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, u)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })

	return out, nil
}

func (r *UsersRepo) UpdateUser(_ context.Context, id string, patch user.Patch) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if patch.Blocked(u) {
		return u, user.ErrLocked
	}

	patch.Apply(&u, r.now())
	r.items[id] = u

	return u, nil
}
