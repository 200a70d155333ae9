package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const minProdSecretLen = 32

type Config struct {
	Env         string `env:"APP_ENV" envDefault:"dev"`
	Port        int    `env:"PORT" envDefault:"8080"`
	MailerPort  int    `env:"MAILER_PORT" envDefault:"8081"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"el-frijolito-admin"`

	OTLPEndpoint string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	CORSOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	DB       DBConfig       `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Session  SessionConfig  `envPrefix:"SESSION_"`
	Lockout  LockoutConfig  `envPrefix:"LOCKOUT_"`
	Login    LoginRate      `envPrefix:"LOGIN_RATE_"`
	Admin    AdminSeed      `envPrefix:"ADMIN_"`
	RabbitMQ RabbitMQConfig `envPrefix:"RABBITMQ_"`
	SMTP     SMTPConfig     `envPrefix:"SMTP_"`
}

type DBConfig struct {
	// URL wins over the host parts when set.
	URL      string `env:"URL"`
	Host     string `env:"HOST" envDefault:"127.0.0.1"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"frijolito"`
	Password string `env:"PASSWORD" envDefault:"frijolito"`
	Name     string `env:"NAME" envDefault:"frijolito"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"MAX_CONNS" envDefault:"5"`
}

// DSN returns URL or a postgres:// url assembled from the parts.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	// empty Addr disables redis; in-process fallbacks are used instead
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type SessionConfig struct {
	Secret     string        `env:"SECRET" envDefault:"dev-only-session-secret"`
	TTL        time.Duration `env:"TTL" envDefault:"8h"`
	CookieName string        `env:"COOKIE_NAME" envDefault:"frijolito_session"`
}

type LockoutConfig struct {
	Threshold int           `env:"THRESHOLD" envDefault:"5"`
	Duration  time.Duration `env:"DURATION" envDefault:"15m"`
}

type LoginRate struct {
	Limit  int           `env:"LIMIT" envDefault:"10"`
	Window time.Duration `env:"WINDOW" envDefault:"1m"`
}

type AdminSeed struct {
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"Owner"`
	Role     string `env:"ROLE" envDefault:"SUPER_ADMIN"`
}

type RabbitMQConfig struct {
	// empty URL means lockout alerts are only logged
	URL      string `env:"URL"`
	Queue    string `env:"QUEUE" envDefault:"security_alerts"`
	Prefetch int    `env:"PREFETCH" envDefault:"4"`
}

type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"465"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@elfrijolito.com"`
	// comma separated recipients of security alerts
	AlertTo []string `env:"ALERT_TO" envSeparator:","`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	// a missing .env is normal outside local dev
	_ = godotenv.Load()

	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		var aggErr env.AggregateError
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			return Config{}, fmt.Errorf("parse env: %w", aggErr.Errors[0])
		}
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func (c Config) validate() error {
	if c.Lockout.Threshold <= 0 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be positive, got %d", c.Lockout.Threshold)
	}
	if c.Lockout.Duration <= 0 {
		return fmt.Errorf("LOCKOUT_DURATION must be positive, got %s", c.Lockout.Duration)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	if c.Login.Limit <= 0 || c.Login.Window <= 0 {
		return errors.New("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive")
	}
	if c.IsProd() && len(c.Session.Secret) < minProdSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in prod", minProdSecretLen)
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("SESSION_COOKIE_NAME must not be empty")
	}
	return nil
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
