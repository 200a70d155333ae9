package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DannyIGuesss/el-frijolito-site/internal/auth"
	"github.com/DannyIGuesss/el-frijolito-site/internal/authn"
	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
)

const loginTimeout = 3 * time.Second

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (user.Identity, error)
}

type SessionManager interface {
	IssueSession(id user.Identity) (string, *auth.Claims, error)
	VerifySession(token string) (*auth.Claims, error)
}

type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	authn     Authenticator
	sessions  SessionManager
	revoked   auth.Revocations
	cookie    CookieConfig
	tokenFrom func(*gin.Context) string
	log       *slog.Logger
}

// NewAuthHandler wires login, logout and session lookup. tokenFrom extracts
// the raw session token (cookie or bearer) from a request.
func NewAuthHandler(a Authenticator, sessions SessionManager, revoked auth.Revocations, cookie CookieConfig, tokenFrom func(*gin.Context) string, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		authn:     a,
		sessions:  sessions,
		revoked:   revoked,
		cookie:    cookie,
		tokenFrom: tokenFrom,
		log:       log,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,max=1024"`
}

type SessionResponse struct {
	User      user.Identity `json:"user"`
	Token     string        `json:"token,omitempty"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), loginTimeout)
	defer cancel()

	identity, err := h.authn.Authenticate(cctx, req.Email, req.Password)
	if err != nil {
		respondAuthError(ctx, err)
		return
	}

	token, claims, err := h.sessions.IssueSession(identity)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "issue session failed", "user_id", identity.ID, "err", err)
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setSessionCookie(ctx, token, claims.ExpiresAt.Time)

	ctx.JSON(http.StatusOK, SessionResponse{
		User:      identity,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// respondAuthError maps Authenticate outcomes onto HTTP.
func respondAuthError(ctx *gin.Context, err error) {
	var locked *authn.LockedError

	switch {
	case errors.Is(err, authn.ErrInfrastructure):
		RespondUnavailable(ctx, "auth_unavailable", "Sign-in is temporarily unavailable. Please try again.")
	case errors.As(err, &locked):
		ctx.Header("Retry-After", strconv.Itoa(locked.MinutesRemaining*60))
		RespondError(ctx, http.StatusLocked, "account_locked",
			"Account temporarily locked. Try again in "+strconv.Itoa(locked.MinutesRemaining)+" minutes.",
			gin.H{"minutesRemaining": locked.MinutesRemaining})
	case errors.Is(err, authn.ErrAccountDeactivated):
		RespondForbidden(ctx, "account_deactivated", "Account is deactivated. Contact an administrator.")
	case errors.Is(err, authn.ErrInvalidCredentials):
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
	default:
		RespondUnavailable(ctx, "auth_unavailable", "Sign-in is temporarily unavailable. Please try again.")
	}
}

// Logout revokes the presented session until it would expire and clears
// the cookie. Missing or already invalid sessions still get a 204.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw := ""
	if h.tokenFrom != nil {
		raw = h.tokenFrom(ctx)
	}

	if raw != "" && h.revoked != nil {
		if claims, err := h.sessions.VerifySession(raw); err == nil {
			cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
			defer cancel()

			if err := h.revoked.Revoke(cctx, claims.ID, claims.ExpiresAt.Time); err != nil {
				h.log.ErrorContext(ctx.Request.Context(), "revoke session failed", "user_id", claims.Subject, "err", err)
				RespondUnavailable(ctx, "auth_unavailable", "Could not end the session. Please try again.")
				return
			}
			h.log.InfoContext(ctx.Request.Context(), "session revoked", "user_id", claims.Subject)
		}
	}

	h.clearSessionCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// Session returns the caller behind the current session. Runs behind
// RequireAuth.
func (h *AuthHandler) Session(ctx *gin.Context) {
	claims, ok := claimsFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Sign in required")
		return
	}

	ctx.JSON(http.StatusOK, SessionResponse{
		User:      claims.Identity(),
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(h.cookie.Name, token, maxAge, "/", "", h.cookie.Secure, true)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}
