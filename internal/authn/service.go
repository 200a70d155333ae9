// Package authn decides whether an email/password pair authenticates and
// applies the attempt-based account lockout policy.
package authn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
	"github.com/DannyIGuesss/el-frijolito-site/internal/notifications"
	"github.com/DannyIGuesss/el-frijolito-site/internal/security"
)

// Store is the only persistence the decision needs. UpdateUser must apply
// the patch atomically and return the record as stored afterwards.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (user.User, error)
	UpdateUser(ctx context.Context, id string, patch user.Patch) (user.User, error)
}

// Recorder receives one call per decision. observability.Prom satisfies it.
type Recorder interface {
	ObserveAuthDecision(reason string)
	IncLockouts()
}

type Service struct {
	store    Store
	verify   func(hash, plain string) error
	now      func() time.Time
	policy   LockoutPolicy
	notifier notifications.Notifier
	metrics  Recorder
	log      *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithVerifier(verify func(hash, plain string) error) Option {
	return func(s *Service) { s.verify = verify }
}

func WithPolicy(p LockoutPolicy) Option {
	return func(s *Service) { s.policy = p.withDefaults() }
}

func WithNotifier(n notifications.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		verify: security.CheckPassword,
		now:    func() time.Time { return time.Now().UTC() },
		policy: DefaultLockoutPolicy(),
		log:    slog.Default(),
		tracer: otel.Tracer("github.com/DannyIGuesss/el-frijolito-site/internal/authn"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) Policy() LockoutPolicy {
	return s.policy
}

// dummyHash is verified against when the email is unknown so that a miss
// costs about as much as a wrong password.
var dummyHash = sync.OnceValue(func() string {
	h, err := security.HashPassword("el-frijolito-timing-equalizer")
	if err != nil {
		return ""
	}
	return h
})

// Authenticate runs the checks in order: lookup, active flag, lockout,
// password. Business rejections come back as ErrInvalidCredentials,
// ErrAccountDeactivated or a *LockedError; store trouble wraps
// ErrInfrastructure.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user.Identity, error) {
	ctx, span := s.tracer.Start(ctx, "authn.Authenticate")
	defer span.End()

	identity, userID, err := s.authenticate(ctx, email, password)

	reason := ReasonOf(err)
	s.observe(ctx, span, reason, userID, err)

	return identity, err
}

func (s *Service) authenticate(ctx context.Context, email, password string) (user.Identity, string, error) {
	email = user.NormalizeEmail(email)
	if email == "" || password == "" {
		return user.Identity{}, "", ErrInvalidCredentials
	}

	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			_ = s.verify(dummyHash(), password)
			return user.Identity{}, "", ErrInvalidCredentials
		}
		return user.Identity{}, "", infraErr("find user", err)
	}

	if !u.Role.Valid() {
		return user.Identity{}, u.ID, infraErr("read user", fmt.Errorf("%w: %q", user.ErrUnknownRole, string(u.Role)))
	}

	if !u.IsActive {
		return user.Identity{}, u.ID, ErrAccountDeactivated
	}

	now := s.now()

	// an active lockout short-circuits before the password is looked at, so
	// attempts made while locked neither count nor extend the lockout
	if u.IsLocked(now) {
		return user.Identity{}, u.ID, lockedErr(u, now)
	}

	err = s.verify(u.PasswordHash, password)
	switch {
	case err == nil:
	case errors.Is(err, security.ErrPasswordMismatch):
		return user.Identity{}, u.ID, s.recordFailure(ctx, u, now)
	default:
		return user.Identity{}, u.ID, infraErr("verify password", err)
	}

	// the success write is refused if a concurrent failure locked the
	// account after our read
	cur, err := s.store.UpdateUser(ctx, u.ID, user.SuccessfulLogin(now))
	if errors.Is(err, user.ErrLocked) {
		return user.Identity{}, u.ID, lockedErr(cur, now)
	}
	if err != nil {
		return user.Identity{}, u.ID, infraErr("record successful login", err)
	}

	return u.Identity(), u.ID, nil
}

func (s *Service) recordFailure(ctx context.Context, u user.User, now time.Time) error {
	// postgres keeps microseconds; truncating lets us recognise our own write
	lockUntil := now.Add(s.policy.Duration).Truncate(time.Microsecond)

	updated, err := s.store.UpdateUser(ctx, u.ID, user.FailedLogin(s.policy.Threshold, lockUntil).UnlessLocked(now))
	if errors.Is(err, user.ErrLocked) {
		return lockedErr(updated, now)
	}
	if err != nil {
		return infraErr("record failed login", err)
	}

	if updated.LockoutUntil != nil && updated.LockoutUntil.Equal(lockUntil) {
		s.lockoutIssued(ctx, updated)
	}

	return ErrInvalidCredentials
}

func lockedErr(u user.User, now time.Time) error {
	if u.LockoutUntil == nil {
		return infraErr("read lockout", errors.New("store reported a lockout without a deadline"))
	}
	return &LockedError{
		Until:            *u.LockoutUntil,
		MinutesRemaining: MinutesRemaining(*u.LockoutUntil, now),
	}
}

func (s *Service) lockoutIssued(ctx context.Context, u user.User) {
	if s.metrics != nil {
		s.metrics.IncLockouts()
	}

	s.log.WarnContext(ctx, "account_locked",
		"user_id", u.ID,
		"attempts", u.LoginAttempts,
		"locked_until", u.LockoutUntil,
	)

	if s.notifier == nil {
		return
	}

	alert := notifications.LockoutAlert{
		UserID:      u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Attempts:    u.LoginAttempts,
		LockedUntil: *u.LockoutUntil,
	}

	if err := s.notifier.SendLockoutAlert(ctx, alert); err != nil {
		s.log.WarnContext(ctx, "lockout alert not delivered", "user_id", u.ID, "err", err)
	}
}

func (s *Service) observe(ctx context.Context, span trace.Span, reason Reason, userID string, err error) {
	outcome := string(reason)
	if reason == ReasonNone {
		outcome = "success"
	}

	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if userID != "" {
		span.SetAttributes(attribute.String("auth.user_id", userID))
	}

	if s.metrics != nil {
		s.metrics.ObserveAuthDecision(outcome)
	}

	if reason == ReasonInfrastructure {
		span.RecordError(err)
		span.SetStatus(codes.Error, "auth infrastructure failure")
		s.log.ErrorContext(ctx, "auth_decision", "outcome", outcome, "user_id", userID, "err", err)
		return
	}

	s.log.InfoContext(ctx, "auth_decision", "outcome", outcome, "user_id", userID)
}
