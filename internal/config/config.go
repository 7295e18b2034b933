package config // package config loads application configuration from environment variables

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; nested structs share a prefix.
type Config struct {
	Env          string `env:"APP_ENV" envDefault:"dev"`
	Port         string `env:"APP_PORT" envDefault:"8080"`
	DBUser       string `env:"DB_USER,required,notEmpty"`
	DBPass       string `env:"DB_PASS"`
	DBHost       string `env:"DB_HOST,required,notEmpty"`
	DBPort       string `env:"DB_PORT" envDefault:"3306"`
	DBName       string `env:"DB_NAME,required,notEmpty"`
	JWTSecret    string `env:"JWT_SECRET,required,notEmpty"`
	AccessTTLMin int    `env:"ACCESS_TOKEN_TTL_MIN" envDefault:"60"`
	BcryptCost   int    `env:"BCRYPT_COST" envDefault:"10"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Privileged allow-lists.  They are resolved once into an AccessPolicy.
	AdminEmails      []string `env:"ADMIN_EMAILS" envSeparator:","`
	SuperAdminEmails []string `env:"SUPER_ADMIN_EMAILS" envSeparator:","`
	AdminEmail       string   `env:"ADMIN_EMAIL"`

	RabbitURL          string        `env:"RABBITMQ_URL"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`

	Upload UploadConfig `envPrefix:"UPLOAD_"`

	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
}

// UploadConfig selects the file store.  An empty Bucket means files are
// written under LocalDir and served by the API itself.
type UploadConfig struct {
	Bucket     string `env:"BUCKET"`
	CDNBaseURL string `env:"CDN_BASE_URL"`
	Region     string `env:"REGION" envDefault:"eu-central-1"`
	LocalDir   string `env:"LOCAL_DIR" envDefault:"uploads"`
	PublicPath string `env:"PUBLIC_PATH" envDefault:"/uploads"`
}

// Load reads an optional .env file and then parses the environment.  A
// missing required variable is returned as an error rather than exiting so
// main decides how to fail.
func Load() (Config, error) {
	// .env is a development convenience; its absence is not an error.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.RateLimit = cfg.RateLimit.normalize()
	if cfg.OutboxBatchSize < 1 {
		cfg.OutboxBatchSize = 1
	}
	return cfg, nil
}

// Policy builds the injected allow-list policy from the loaded values.
func (c Config) Policy() AccessPolicy {
	return NewAccessPolicy(c.AdminEmails, c.SuperAdminEmails, c.AdminEmail)
}
