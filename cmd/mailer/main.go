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

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/DannyIGuesss/el-frijolito-site/internal/config"
	"github.com/DannyIGuesss/el-frijolito-site/internal/mailer"
	"github.com/DannyIGuesss/el-frijolito-site/internal/notifications"
	"github.com/DannyIGuesss/el-frijolito-site/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env).With("component", "mailer")
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("mailer stopped with error", "err", err)
		os.Exit(1)
	}

	log.Info("mailer shutdown complete")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.RabbitMQ.URL == "" {
		return errors.New("RABBITMQ_URL is required")
	}

	sender, err := mailer.NewSMTPSender(cfg.SMTP)
	if err != nil {
		return err
	}
	defer sender.Close()

	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer ch.Close()

	q, err := notifications.DeclareAlertQueue(ch, cfg.RabbitMQ.Queue)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.Qos(cfg.RabbitMQ.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	host, _ := os.Hostname()
	deliveries, err := ch.Consume(q.Name, "mailer-"+host, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	m := mailer.New(sender, mailer.Config{
		From: cfg.SMTP.From,
		To:   cfg.SMTP.AlertTo,
	}, log, observability.NewDeliveryMetrics())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MailerPort),
		Handler:           m.HealthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", "err", err)
		}
	}()
	defer func() {
		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	go reportStats(ctx, m, log, time.Minute)

	log.Info("mailer started", "queue", q.Name, "prefetch", cfg.RabbitMQ.Prefetch)

	return m.Run(ctx, deliveries)
}

func reportStats(ctx context.Context, m *mailer.Mailer, log *slog.Logger, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := m.Metrics().Snapshot()
			log.Info("mailer stats",
				"received", s.Received,
				"sent", s.Sent,
				"retried", s.Retried,
				"dead_lettered", s.DeadLettered,
				"avg_ms", s.AverageDuration.Milliseconds(),
				"max_ms", s.MaxDuration.Milliseconds(),
			)
		}
	}
}
