package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	API      APIConfig
	CORS     CORSConfig
	Media    MediaConfig
	Ingest   IngestConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Env             string        `env:"ENV" envDefault:"development"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// StorageConfig selects the datastore backend. "memory" keeps everything in
// process and is meant for local runs and demos.
type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"foxfit"`
	Password string `env:"DB_PASSWORD" envDefault:"foxfit_password"`
	DBName   string `env:"DB_NAME" envDefault:"foxfit_db"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpen  int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdle  int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"true"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type JWTConfig struct {
	Secret      string `env:"JWT_SECRET" envDefault:"change-this-secret-key"`
	ExpiryHours int    `env:"JWT_EXPIRY_HOURS" envDefault:"168"`
}

type APIConfig struct {
	RateLimitMessagesPerSec int `env:"RATE_LIMIT_MESSAGES_PER_SECOND" envDefault:"2"`
	RateLimitBurst          int `env:"RATE_LIMIT_BURST" envDefault:"5"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// MediaConfig points at the private vault recordings are read from. The
// directory must not be exposed by any static file route.
type MediaConfig struct {
	Root       string        `env:"MEDIA_ROOT" envDefault:"./storage/videos"`
	RetryDelay time.Duration `env:"MEDIA_RETRY_DELAY" envDefault:"200ms"`
}

type IngestConfig struct {
	Timeout   time.Duration `env:"INGEST_TIMEOUT" envDefault:"5s"`
	HookToken string        `env:"INGEST_HOOK_TOKEN"`
}

type LogConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	Format     string `env:"LOG_FORMAT" envDefault:"json"`
	Output     string `env:"LOG_OUTPUT" envDefault:"stdout"`
	Path       string `env:"LOG_PATH" envDefault:"./logs/server.log"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE" envDefault:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"7"`
	MaxAgeDays int    `env:"LOG_MAX_AGE" envDefault:"7"`
	Compress   bool   `env:"LOG_COMPRESS" envDefault:"true"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "change-this-secret-key" && c.Server.Env == "production" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Media.Root == "" {
		return fmt.Errorf("MEDIA_ROOT must not be empty")
	}
	if c.Ingest.Timeout <= 0 {
		return fmt.Errorf("INGEST_TIMEOUT must be positive")
	}
	return nil
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
