package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Buffer      BufferConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
	Webhook     WebhookConfig
	RateLimit   RateLimitConfig
	Tracing     TracingConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
	MaxBodySize  int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string

	ApplicationName  string
	StatementTimeout time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type BufferConfig struct {
	Path           string
	MaxSize        int
	RetentionHours int
	SyncInterval   time.Duration
	MaxRetry       int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// WebhookConfig holds provider signing secrets and the event type routing.
type WebhookConfig struct {
	Secrets            map[string]string
	EnforceSignature   bool
	SignatureTolerance time.Duration
	SuccessTypes       []string
	FailureTypes       []string
	RefundTypes        []string
}

type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

// TracingConfig enables OTLP/HTTP span export.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	SampleRatio float64
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "settlement"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
			MaxBodySize:  getInt("SERVER_MAX_BODY_SIZE", 1<<20),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "settlement"),
			User:            getString("DB_USER", "settlement"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),

			StatementTimeout: getDuration("DB_STATEMENT_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "settlement"),
		},
		Buffer: BufferConfig{
			Path:           getString("BOLTDB_PATH", "./data/audit-buffer.db"),
			MaxSize:        getInt("BUFFER_MAX_SIZE", 100_000),
			RetentionHours: getInt("BUFFER_RETENTION_HOURS", 72),
			SyncInterval:   getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			MaxRetry:       getInt("MAX_RETRY_ATTEMPTS", 5),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
		Webhook: WebhookConfig{
			Secrets:            getMap("WEBHOOK_SECRETS"),
			SignatureTolerance: getDuration("WEBHOOK_SIGNATURE_TOLERANCE", 5*time.Minute),
			SuccessTypes:       getList("WEBHOOK_SUCCESS_TYPES"),
			FailureTypes:       getList("WEBHOOK_FAILURE_TYPES"),
			RefundTypes:        getList("WEBHOOK_REFUND_TYPES"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBool("WEBHOOK_RATE_LIMIT_ENABLED", true),
			Limit:   getInt("WEBHOOK_RATE_LIMIT", 600),
			Window:  getDuration("WEBHOOK_RATE_WINDOW", time.Minute),
		},
		Tracing: TracingConfig{
			Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SampleRatio: getFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
		},
	}
	cfg.Tracing.Enabled = getBool("TRACING_ENABLED", cfg.Tracing.Endpoint != "")

	if secret := os.Getenv("STRIPE_WEBHOOK_SECRET"); secret != "" {
		if _, ok := cfg.Webhook.Secrets["stripe"]; !ok {
			cfg.Webhook.Secrets["stripe"] = secret
		}
	}
	cfg.Webhook.EnforceSignature = getBool("WEBHOOK_ENFORCE_SIGNATURE", cfg.IsProduction())

	cfg.Database.ApplicationName = cfg.AppName
	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects combinations the service cannot run with.
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWT.Secret == "" {
		return fmt.Errorf("config: JWT_SECRET is required in production")
	}
	if c.Webhook.EnforceSignature && len(c.Webhook.Secrets) == 0 {
		return fmt.Errorf("config: signature enforcement needs at least one webhook secret")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("config: tracing needs OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("config: webhook rate limit and window must be positive")
	}
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// getMap parses "name=value,name=value" pairs. Malformed pairs are skipped.
func getMap(key string) map[string]string {
	out := make(map[string]string)
	for _, pair := range getList(key) {
		name, value, ok := strings.Cut(pair, "=")
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

func getList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
