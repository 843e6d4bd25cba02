package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"5000"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"30s"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"72h"`

	// ProbeURL must point at a small static asset; the monitor sends HEAD requests to it.
	ProbeURL      string        `env:"PROBE_URL" envDefault:"http://localhost:5000/healthz"`
	ProbeInterval time.Duration `env:"PROBE_INTERVAL" envDefault:"30s"`
	ProbeTimeout  time.Duration `env:"PROBE_TIMEOUT" envDefault:"5s"`

	QueueDir        string `env:"QUEUE_DIR" envDefault:"./data/queues"`
	QueueMaxRetries int    `env:"QUEUE_MAX_RETRIES" envDefault:"5"`

	AuthorShare float64 `env:"AUTHOR_SHARE" envDefault:"0.7"`

	ReconcileSchedule string `env:"RECONCILE_SCHEDULE" envDefault:"@every 1m"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.AuthorShare <= 0 || cfg.AuthorShare > 1 {
		return nil, fmt.Errorf("AUTHOR_SHARE must be within (0, 1], got %v", cfg.AuthorShare)
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
