package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
)

const DefaultSessionTTL = 8 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session expired")
	ErrRevokedToken = errors.New("session revoked")
)

type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Identity rebuilds the caller from verified claims. The role is taken as
// signed; authorization rejects unknown roles on its own.
func (c *Claims) Identity() user.Identity {
	return user.Identity{
		ID:    c.Subject,
		Email: c.Email,
		Name:  c.Name,
		Role:  user.Role(c.Role),
	}
}

// Revocations remembers logged-out token ids until they would have expired
// anyway.
type Revocations interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock is for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	return &Manager{secret: m.secret, ttl: m.ttl, now: now}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// IssueSession signs an HS256 token for id.
func (m *Manager) IssueSession(id user.Identity) (string, *Claims, error) {
	now := m.now()

	claims := &Claims{
		Email: id.Email,
		Name:  id.Name,
		Role:  string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}

	return token, claims, nil
}

func (m *Manager) VerifySession(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrInvalidToken)
	}

	return claims, nil
}
