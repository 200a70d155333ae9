package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/DannyIGuesss/el-frijolito-site/internal/auth"
	"github.com/DannyIGuesss/el-frijolito-site/internal/config"
	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
	"github.com/DannyIGuesss/el-frijolito-site/internal/http/handlers"
	"github.com/DannyIGuesss/el-frijolito-site/internal/http/middlewares"
	"github.com/DannyIGuesss/el-frijolito-site/internal/observability"
	"github.com/DannyIGuesss/el-frijolito-site/internal/ratelimit"
)

// Deps is everything the router needs. Metrics and Gatherer may be nil.
type Deps struct {
	Log         *slog.Logger
	Config      config.Config
	Auth        handlers.Authenticator
	Sessions    *auth.Manager
	Revocations auth.Revocations
	Users       handlers.UserAdminStore
	LoginLimit  ratelimit.Limiter
	Checks      map[string]handlers.Check
	Metrics     *observability.Prom
	Gatherer    prometheus.Gatherer
}

func NewRouter(d Deps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	if d.Config.Env != "dev" && d.Config.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(otelgin.Middleware(d.Config.ServiceName))
	r.Use(middlewares.Recovery(log))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if d.Metrics != nil {
		r.Use(d.Metrics.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(d.Config.IsProd()))
	r.Use(middlewares.CORSMiddleware(d.Config.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(middlewares.DefaultMaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMw := middlewares.NewAuthMiddleware(d.Sessions, d.Revocations, d.Config.Session.CookieName, log)
	authHandler := handlers.NewAuthHandler(
		d.Auth,
		d.Sessions,
		d.Revocations,
		handlers.CookieConfig{Name: d.Config.Session.CookieName, Secure: d.Config.IsProd()},
		authMw.SessionToken,
		log,
	)
	adminHandler := handlers.NewAdminHandler(d.Users, log)

	// a nil recorder interface must stay nil, not a typed nil *Prom
	var limitRec middlewares.LimitRecorder
	if d.Metrics != nil {
		limitRec = d.Metrics
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	if d.LoginLimit != nil {
		authGroup.POST("/login", middlewares.RateLimit(d.LoginLimit, middlewares.KeyByIP, limitRec, log), authHandler.Login)
	} else {
		authGroup.POST("/login", authHandler.Login)
	}
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/session", authMw.RequireAuth(), authHandler.Session)

	admin := api.Group("/admin", authMw.RequireAuth())
	{
		admin.GET("/nav", adminHandler.Nav)
		admin.GET("/access", adminHandler.Access)

		users := admin.Group("/users", middlewares.RequireRole(user.RoleSuperAdmin))
		users.GET("", adminHandler.ListUsers)
		users.POST("/:id/unlock", adminHandler.Unlock)
		users.PUT("/:id/active", adminHandler.SetActive)
	}

	return r
}
