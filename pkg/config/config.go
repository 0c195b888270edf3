package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string `yaml:"port" validate:"required,numeric"`
	Env           string `yaml:"env" validate:"oneof=development production test"`
	MongoURI      string `yaml:"mongo_uri" validate:"required"`
	MongoDatabase string `yaml:"mongo_database" validate:"required"`
	LedgerDSN     string `yaml:"ledger_dsn" validate:"required"` // postgres:// url or sqlite path
	RedisURL      string `yaml:"redis_url" validate:"required"`

	AccessTokenSecret  string        `yaml:"access_token_secret" validate:"required,min=16"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl" validate:"gt=0"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret" validate:"required,min=16,nefield=AccessTokenSecret"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl" validate:"gtfield=AccessTokenTTL"`

	CORSOrigin string `yaml:"cors_origin"`

	// Firebase is optional; without it media goes to MediaDir and firebase login is off
	FirebaseCredentialsPath string `yaml:"firebase_credentials_path"`
	FirebaseBucket          string `yaml:"firebase_bucket" validate:"required_with=FirebaseCredentialsPath"`
	MediaDir                string `yaml:"media_dir"`
	MediaBaseURL            string `yaml:"media_base_url"`

	ReconcileInterval time.Duration `yaml:"reconcile_interval" validate:"gte=0"`
	FeedPageSize      int           `yaml:"feed_page_size" validate:"gt=0,lte=100"`
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() Config {
	return Config{
		Port:              "8080",
		Env:               "development",
		MongoDatabase:     "instaverse",
		LedgerDSN:         "sqlite://instaverse_ledger.db",
		AccessTokenTTL:    24 * time.Hour,
		RefreshTokenTTL:   10 * 24 * time.Hour,
		CORSOrigin:        "*",
		MediaDir:          "./uploads",
		MediaBaseURL:      "/uploads",
		ReconcileInterval: time.Minute,
		FeedPageSize:      8,
	}
}

// Load reads .env, then the yaml file named by CONFIG_FILE, then the
// environment, and validates the result.
func Load() (*Config, error) {
	// a missing .env is fine, the variables may come from the environment
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether cookies should be marked secure
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGO_DATABASE", cfg.MongoDatabase)
	cfg.LedgerDSN = getEnv("LEDGER_DSN", cfg.LedgerDSN)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.AccessTokenSecret = getEnv("ACCESS_TOKEN_SECRET", cfg.AccessTokenSecret)
	cfg.RefreshTokenSecret = getEnv("REFRESH_TOKEN_SECRET", cfg.RefreshTokenSecret)
	cfg.CORSOrigin = getEnv("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.FirebaseCredentialsPath = getEnv("FIREBASE_CREDENTIALS_PATH", cfg.FirebaseCredentialsPath)
	cfg.FirebaseBucket = getEnv("FIREBASE_BUCKET", cfg.FirebaseBucket)
	cfg.MediaDir = getEnv("MEDIA_DIR", cfg.MediaDir)
	cfg.MediaBaseURL = getEnv("MEDIA_BASE_URL", cfg.MediaBaseURL)

	var err error
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return err
	}
	if cfg.ReconcileInterval, err = getDuration("RECONCILE_INTERVAL", cfg.ReconcileInterval); err != nil {
		return err
	}
	if v := os.Getenv("FEED_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FEED_PAGE_SIZE: %w", err)
		}
		cfg.FeedPageSize = n
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
