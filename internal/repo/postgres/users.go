package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
)

const uniqueViolation = "23505"

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBObserver times each logical operation. observability.Prom satisfies it.
type DBObserver interface {
	ObserveDB(op string, fn func() error) error
}

type noopObserver struct{}

func (noopObserver) ObserveDB(_ string, fn func() error) error { return fn() }

var userColumns = []string{
	"id",
	"email",
	"password_hash",
	"name",
	"role",
	"is_active",
	"login_attempts",
	"lockout_until",
	"last_login",
	"created_at",
	"updated_at",
}

type UsersRepo struct {
	db      DBTX
	obs     DBObserver
	builder squirrel.StatementBuilderType
}

func NewUsersRepo(db DBTX) *UsersRepo {
	return &UsersRepo{
		db:      db,
		obs:     noopObserver{},
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithObserver records query latency and errors for every call.
func (r *UsersRepo) WithObserver(obs DBObserver) *UsersRepo {
	if obs == nil {
		return r
	}
	return &UsersRepo{db: r.db, obs: obs, builder: r.builder}
}

// WithTx returns a repository bound to tx.
func (r *UsersRepo) WithTx(tx pgx.Tx) *UsersRepo {
	if tx == nil {
		return r
	}
	return &UsersRepo{db: tx, obs: r.obs, builder: r.builder}
}

func (r *UsersRepo) FindUserByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.find_by_email", squirrel.Eq{"email": user.NormalizeEmail(email)})
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", squirrel.Eq{"id": id})
}

func (r *UsersRepo) getOne(ctx context.Context, op string, where squirrel.Eq) (user.User, error) {
	query, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(where).
		ToSql()
	if err != nil {
		return user.User{}, fmt.Errorf("build %s: %w", op, err)
	}

	var u user.User
	err = r.obs.ObserveDB(op, func() error {
		var scanErr error
		u, scanErr = scanUser(r.db.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	query, args, err := r.builder.
		Select(userColumns...).
		From("users").
		OrderBy("email ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build users.list: %w", err)
	}

	var out []user.User
	err = r.obs.ObserveDB("users.list", func() error {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *UsersRepo) Create(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
	if !req.Role.Valid() {
		return user.User{}, fmt.Errorf("%w: %q", user.ErrUnknownRole, string(req.Role))
	}

	query, args, err := r.builder.
		Insert("users").
		Columns("id", "email", "password_hash", "name", "role").
		Values(uuid.NewString(), user.NormalizeEmail(req.Email), req.PasswordHash, req.Name, string(req.Role)).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return user.User{}, fmt.Errorf("build users.create: %w", err)
	}

	var u user.User
	err = r.obs.ObserveDB("users.create", func() error {
		var scanErr error
		u, scanErr = scanUser(r.db.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

// UpdateUser applies patch in a single UPDATE. Counter changes are computed
// from the row's current value inside the statement, so concurrent logins
// against one account serialize on the row lock instead of overwriting each
// other. A lockout guard becomes part of the WHERE clause and a row it
// filters out comes back as user.ErrLocked.
func (r *UsersRepo) UpdateUser(ctx context.Context, id string, patch user.Patch) (user.User, error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	q := r.builder.Update("users").Set("updated_at", squirrel.Expr("NOW()"))

	if patch.ResetAttempts {
		q = q.Set("login_attempts", 0)
	}
	if patch.IncrementAttempts {
		q = q.Set("login_attempts", squirrel.Expr("login_attempts + 1"))
	}

	switch {
	case patch.IncrementAttempts && patch.LockThreshold > 0:
		q = q.Set("lockout_until", squirrel.Expr(
			"CASE WHEN login_attempts + 1 >= ? THEN ?::timestamptz ELSE lockout_until END",
			patch.LockThreshold, patch.LockUntil,
		))
	case patch.ClearLockout:
		q = q.Set("lockout_until", nil)
	}

	if patch.LastLogin != nil {
		q = q.Set("last_login", *patch.LastLogin)
	}
	if patch.IsActive != nil {
		q = q.Set("is_active", *patch.IsActive)
	}

	q = q.Where(squirrel.Eq{"id": id})
	if patch.UnlessLockedAt != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"lockout_until": nil},
			squirrel.LtOrEq{"lockout_until": *patch.UnlessLockedAt},
		})
	}

	query, args, err := q.
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return user.User{}, fmt.Errorf("build users.update: %w", err)
	}

	var u user.User
	err = r.obs.ObserveDB("users.update", func() error {
		var scanErr error
		u, scanErr = scanUser(r.db.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.refused(ctx, id, patch)
		}
		return user.User{}, err
	}

	return u, nil
}

// refused tells a missing row apart from one the lockout guard filtered out.
func (r *UsersRepo) refused(ctx context.Context, id string, patch user.Patch) (user.User, error) {
	if patch.UnlessLockedAt == nil {
		return user.User{}, user.ErrNotFound
	}

	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if !patch.Blocked(cur) {
		// unlocked between the UPDATE and this read
		return cur, fmt.Errorf("users.update %s: guarded update matched no row", id)
	}

	return cur, user.ErrLocked
}

// Ping backs the readiness probe.
func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.obs.ObserveDB("ping", func() error {
		var one int
		return r.db.QueryRow(ctx, "SELECT 1").Scan(&one)
	})
}

func scanUser(row pgx.Row) (user.User, error) {
	var (
		u    user.User
		role string
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&role,
		&u.IsActive,
		&u.LoginAttempts,
		&u.LockoutUntil,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return user.User{}, err
	}

	u.Role = user.Role(role)
	if !u.Role.Valid() {
		return user.User{}, fmt.Errorf("scan user %s: %w: %q", u.ID, user.ErrUnknownRole, role)
	}

	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	if u.LockoutUntil != nil {
		t := u.LockoutUntil.UTC()
		u.LockoutUntil = &t
	}
	if u.LastLogin != nil {
		t := u.LastLogin.UTC()
		u.LastLogin = &t
	}

	return u, nil
}
