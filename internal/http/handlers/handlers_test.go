package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/DannyIGuesss/el-frijolito-site/internal/auth"
	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
	"github.com/DannyIGuesss/el-frijolito-site/internal/http/handlers"
	"github.com/DannyIGuesss/el-frijolito-site/internal/http/middlewares"
)

// keep gin quiet during tests
func init() {
	gin.SetMode(gin.TestMode)
}

type errorResponse struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}
	return resp
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// withIdentity stands in for RequireAuth.
func withIdentity(id user.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := &auth.Claims{Email: id.Email, Name: id.Name, Role: string(id.Role)}
		claims.Subject = id.ID
		claims.ID = "jti-" + id.ID
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))

		c.Set(middlewares.CtxIdentity, id)
		c.Set(middlewares.CtxClaims, claims)
		c.Next()
	}
}

var (
	owner = user.Identity{ID: "u-owner", Email: "owner@elfrijolito.com", Name: "Owner", Role: user.RoleSuperAdmin}
	staff = user.Identity{ID: "u-staff", Email: "staff@elfrijolito.com", Name: "Staff", Role: user.RoleStaff}
)

// fake repository with fn fields, used by the admin handler tests
type fakeUsers struct {
	listFn   func(ctx context.Context) ([]user.User, error)
	updateFn func(ctx context.Context, id string, patch user.Patch) (user.User, error)
}

func (f *fakeUsers) List(ctx context.Context) ([]user.User, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeUsers) UpdateUser(ctx context.Context, id string, patch user.Patch) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, patch)
	}
	return user.User{ID: id}, nil
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	r := gin.New()
	r.POST("/login", func(ctx *gin.Context) {
		var req handlers.LoginRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusOK)
	})

	w := doJSON(r, http.MethodPost, "/login", `{"email":"not-an-email"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
	}

	resp := decodeError(t, w)
	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}

	var details struct {
		Fields []handlers.FieldError `json:"fields"`
	}
	if err := json.Unmarshal(resp.Error.Details, &details); err != nil {
		t.Fatalf("bad details: %v", err)
	}

	found := map[string]string{}
	for _, f := range details.Fields {
		found[f.Field] = f.Rule
	}
	if found["email"] != "email" || found["password"] != "required" {
		t.Fatalf("unexpected field errors %+v", details.Fields)
	}
}

func TestBindJSON_TypeMismatchAndSyntax(t *testing.T) {
	r := gin.New()
	r.PUT("/active", func(ctx *gin.Context) {
		var req handlers.SetActiveRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusOK)
	})

	w := doJSON(r, http.MethodPut, "/active", `{"isActive":"yes"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
	if resp := decodeError(t, w); !bytes.Contains(resp.Error.Details, []byte("invalid_json_type")) {
		t.Fatalf("expected invalid_json_type, got %s", resp.Error.Details)
	}

	w = doJSON(r, http.MethodPut, "/active", `{"isActive":`)
	if resp := decodeError(t, w); !bytes.Contains(resp.Error.Details, []byte("invalid_json_syntax")) {
		t.Fatalf("expected invalid_json_syntax, got %s", resp.Error.Details)
	}
}

func TestHealth(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return context.DeadlineExceeded }

	r := gin.New()
	h := handlers.NewHealthHandler(map[string]handlers.Check{"postgres": up, "redis": nil})
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if w := doJSON(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz got %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Fatalf("readyz got %d: %s", w.Code, w.Body.String())
	}

	r2 := gin.New()
	h2 := handlers.NewHealthHandler(map[string]handlers.Check{"postgres": up, "redis": down})
	r2.GET("/readyz", h2.Readyz)

	w := doJSON(r2, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable || !bytes.Contains(w.Body.Bytes(), []byte(`"redis":"down"`)) {
		t.Fatalf("expected redis down, got %d %s", w.Code, w.Body.String())
	}
}

func futurePtr(d time.Duration) *time.Time {
	t := time.Now().UTC().Add(d)
	return &t
}
