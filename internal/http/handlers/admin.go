package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DannyIGuesss/el-frijolito-site/internal/authz"
	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
)

type UserAdminStore interface {
	List(ctx context.Context) ([]user.User, error)
	UpdateUser(ctx context.Context, id string, patch user.Patch) (user.User, error)
}

type AdminHandler struct {
	users UserAdminStore
	now   func() time.Time
	log   *slog.Logger
}

func NewAdminHandler(users UserAdminStore, log *slog.Logger) *AdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandler{
		users: users,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log,
	}
}

// Nav returns the sidebar entries the caller may see.
func (h *AdminHandler) Nav(ctx *gin.Context) {
	id, ok := identityFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Sign in required")
		return
	}

	items, err := authz.VisibleNav(id.Role)
	if err != nil {
		RespondForbidden(ctx, "unknown_role", "Your account has an unrecognized role")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items})
}

type AccessResponse struct {
	Path         string    `json:"path"`
	RequiredRole user.Role `json:"requiredRole,omitempty"`
	Allowed      bool      `json:"allowed"`
	Redirect     string    `json:"redirect,omitempty"`
}

// Access answers whether the caller may open an admin page, so the
// frontend can gate routes with the same rules the API enforces.
func (h *AdminHandler) Access(ctx *gin.Context) {
	id, ok := identityFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Sign in required")
		return
	}

	path := ctx.Query("path")
	if !authz.IsAdminPath(path) {
		RespondBadRequest(ctx, "path must be an admin page", gin.H{"path": path})
		return
	}

	// signed-in users have no business on the login page
	if authz.IsLoginPath(path) {
		ctx.JSON(http.StatusOK, AccessResponse{Path: path, Allowed: false, Redirect: authz.AdminPrefix})
		return
	}

	required := authz.RequiredRoleFor(path)
	allowed, err := authz.Authorize(id.Role, required)
	if err != nil {
		RespondForbidden(ctx, "unknown_role", "Your account has an unrecognized role")
		return
	}

	ctx.JSON(http.StatusOK, AccessResponse{Path: path, RequiredRole: required, Allowed: allowed})
}

type UserView struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	Name          string      `json:"name"`
	Role          user.Role   `json:"role"`
	IsActive      bool        `json:"isActive"`
	Status        user.Status `json:"status"`
	LoginAttempts int         `json:"loginAttempts"`
	LockoutUntil  *time.Time  `json:"lockoutUntil,omitempty"`
	LastLogin     *time.Time  `json:"lastLogin,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

func (h *AdminHandler) view(u user.User) UserView {
	return UserView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		IsActive:      u.IsActive,
		Status:        u.Status(h.now()),
		LoginAttempts: u.LoginAttempts,
		LockoutUntil:  u.LockoutUntil,
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
	}
}

func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	users, err := h.users.List(ctx.Request.Context())
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "list users failed", "err", err)
		RespondInternal(ctx, "Could not list users")
		return
	}

	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, h.view(u))
	}

	ctx.JSON(http.StatusOK, gin.H{"items": out})
}

// Unlock clears a lockout before it expires and resets the counter.
func (h *AdminHandler) Unlock(ctx *gin.Context) {
	actor, _ := identityFrom(ctx)
	targetID := ctx.Param("id")

	u, err := h.users.UpdateUser(ctx.Request.Context(), targetID, user.Unlock())
	if err != nil {
		h.respondUpdateError(ctx, err)
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "user unlocked", "actor_id", actor.ID, "target_id", targetID)
	ctx.JSON(http.StatusOK, h.view(u))
}

type SetActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

func (h *AdminHandler) SetActive(ctx *gin.Context) {
	actor, _ := identityFrom(ctx)
	targetID := ctx.Param("id")

	var req SetActiveRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if !*req.IsActive && targetID == actor.ID {
		RespondConflict(ctx, "cannot_deactivate_self", "You cannot deactivate your own account")
		return
	}

	u, err := h.users.UpdateUser(ctx.Request.Context(), targetID, user.SetActive(*req.IsActive))
	if err != nil {
		h.respondUpdateError(ctx, err)
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "user activation changed",
		"actor_id", actor.ID,
		"target_id", targetID,
		"is_active", *req.IsActive,
	)
	ctx.JSON(http.StatusOK, h.view(u))
}

func (h *AdminHandler) respondUpdateError(ctx *gin.Context, err error) {
	if errors.Is(err, user.ErrNotFound) {
		RespondNotFound(ctx, "User not found")
		return
	}
	h.log.ErrorContext(ctx.Request.Context(), "update user failed", "err", err)
	RespondInternal(ctx, "Could not update user")
}
