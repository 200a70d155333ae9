package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/DannyIGuesss/el-frijolito-site/internal/auth"
	"github.com/DannyIGuesss/el-frijolito-site/internal/authn"
	"github.com/DannyIGuesss/el-frijolito-site/internal/cache"
	"github.com/DannyIGuesss/el-frijolito-site/internal/config"
	"github.com/DannyIGuesss/el-frijolito-site/internal/db"
	httpx "github.com/DannyIGuesss/el-frijolito-site/internal/http"
	"github.com/DannyIGuesss/el-frijolito-site/internal/http/handlers"
	"github.com/DannyIGuesss/el-frijolito-site/internal/notifications"
	"github.com/DannyIGuesss/el-frijolito-site/internal/observability"
	"github.com/DannyIGuesss/el-frijolito-site/internal/ratelimit"
	"github.com/DannyIGuesss/el-frijolito-site/internal/redisclient"
	"github.com/DannyIGuesss/el-frijolito-site/internal/repo/memory"
	"github.com/DannyIGuesss/el-frijolito-site/internal/repo/postgres"
	redisrepo "github.com/DannyIGuesss/el-frijolito-site/internal/repo/redis"
	"github.com/DannyIGuesss/el-frijolito-site/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	pool, err := db.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	users := postgres.NewUsersRepo(pool).WithObserver(prom)

	if err := db.EnsureAdminUser(ctx, users, cfg.Admin, security.DefaultAdminPasswordValidator(), log); err != nil {
		return err
	}

	checks := map[string]handlers.Check{"postgres": users.Ping}

	// redis is optional; without it revocations and throttling stay in process
	var (
		revocations auth.Revocations
		limiter     ratelimit.Limiter
	)
	limitCfg := ratelimit.Config{Limit: cfg.Login.Limit, Window: cfg.Login.Window}

	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		revocations = redisrepo.NewRevocations(rdb.Raw(), "")
		limiter = ratelimit.NewRedis(rdb.Raw(), limitCfg, "")
		checks["redis"] = rdb.Ping
	} else {
		log.Warn("REDIS_ADDR not set, using in-process session revocation and rate limiting")

		memRevocations := memory.NewRevocations(cache.New(cfg.Session.TTL))
		local := ratelimit.NewLocal(limitCfg)
		revocations = memRevocations
		limiter = local

		go sweep(ctx, time.Minute, log, func() int { return memRevocations.Sweep() + local.Prune() })
	}

	notifier, closeNotifier, err := newNotifier(cfg.RabbitMQ, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	authService := authn.NewService(users,
		authn.WithPolicy(authn.LockoutPolicy{Threshold: cfg.Lockout.Threshold, Duration: cfg.Lockout.Duration}),
		authn.WithNotifier(notifier),
		authn.WithRecorder(prom),
		authn.WithLogger(log),
	)

	router := httpx.NewRouter(httpx.Deps{
		Log:         log,
		Config:      cfg,
		Auth:        authService,
		Sessions:    auth.NewManager(cfg.Session.Secret, cfg.Session.TTL),
		Revocations: revocations,
		Users:       users,
		LoginLimit:  limiter,
		Checks:      checks,
		Metrics:     prom,
		Gatherer:    reg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	sctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

// newNotifier publishes lockout alerts to RabbitMQ when configured and
// falls back to logging them. The publisher redials after a broker restart.
func newNotifier(cfg config.RabbitMQConfig, log *slog.Logger) (notifications.Notifier, func(), error) {
	if cfg.URL == "" {
		log.Warn("RABBITMQ_URL not set, lockout alerts will only be logged")
		return notifications.NewLogNotifier(log), func() {}, nil
	}

	pub := notifications.NewChannelPublisher(notifications.DialAlertChannel(cfg.URL, cfg.Queue, 5*time.Second))
	if err := pub.Connect(); err != nil {
		return nil, nil, err
	}

	n := notifications.NewProtectedNotifier(
		notifications.NewQueueNotifier(pub, cfg.Queue),
		notifications.ProtectedNotifierConfig{
			Timeout:          2 * time.Second,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
	)

	return n, pub.Close, nil
}

func sweep(ctx context.Context, every time.Duration, log *slog.Logger, fn func() int) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := fn(); n > 0 {
				log.Debug("swept expired entries", "count", n)
			}
		}
	}
}
