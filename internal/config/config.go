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

type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port int    `env:"PORT" envDefault:"8080"`

	DB    DBConfig
	DBURL string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	JWTAccessTTL     time.Duration `env:"JWT_ACCESS_EXPIRATION" envDefault:"15m"`
	JWTRefreshTTL    time.Duration `env:"JWT_REFRESH_EXPIRATION" envDefault:"168h"`
	// Lifetime of the stored refresh-token record, independent of the JWT exp claim.
	RefreshStoreTTL time.Duration `env:"REFRESH_TOKEN_STORE_TTL" envDefault:"168h"`
	SessionPolicy   string        `env:"SESSION_POLICY" envDefault:"multi"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripeBasicPriceID  string `env:"STRIPE_BASIC_PRICE_ID"`
	StripeProPriceID    string `env:"STRIPE_PRO_PRICE_ID"`

	CORSOrigins  []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	OTLPEndpoint string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	PDFRendererURL string `env:"PDF_RENDERER_URL" envDefault:"http://localhost:3001"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	TokenSweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"10m"`
	WorkerHealthPort   int           `env:"WORKER_HEALTH_PORT" envDefault:"8081"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST" envDefault:"127.0.0.1"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"resumeforge"`
	Password string `env:"DB_PASSWORD" envDefault:"resumeforge"`
	Name     string `env:"DB_NAME" envDefault:"resumeforge"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE" envDefault:"5m"`
}

const (
	SessionPolicyMulti  = "multi"
	SessionPolicySingle = "single"
)

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DBURL == "" {
		cfg.DBURL = cfg.DB.URL()
	}

	cfg.applyLocalDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c DBConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func (c Config) Validate() error {
	var errs []error

	switch c.SessionPolicy {
	case SessionPolicyMulti, SessionPolicySingle:
	default:
		errs = append(errs, fmt.Errorf("SESSION_POLICY must be %q or %q, got %q", SessionPolicyMulti, SessionPolicySingle, c.SessionPolicy))
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 || c.RefreshStoreTTL <= 0 {
		errs = append(errs, errors.New("token expirations must be positive"))
	}

	if !c.IsLocal() {
		if strings.TrimSpace(c.JWTAccessSecret) == "" || strings.TrimSpace(c.JWTRefreshSecret) == "" {
			errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required"))
		}
		if c.JWTAccessSecret == c.JWTRefreshSecret {
			errs = append(errs, errors.New("access and refresh secrets must differ"))
		}
	}

	return errors.Join(errs...)
}

// applyLocalDefaults fills token secrets in dev/test so the service boots
// without a .env file. Validate rejects missing secrets everywhere else.
func (c *Config) applyLocalDefaults() {
	if !c.IsLocal() {
		return
	}
	if c.JWTAccessSecret == "" {
		c.JWTAccessSecret = "dev-access-secret"
	}
	if c.JWTRefreshSecret == "" {
		c.JWTRefreshSecret = "dev-refresh-secret"
	}
}

func (c Config) IsLocal() bool {
	return c.Env == "dev" || c.Env == "test"
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
