package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Grouper"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"INFO"`
		Format string `envconfig:"LOG_FORMAT" default:"text"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"grouper"`
		Migrate  bool   `envconfig:"DB_MIGRATE" default:"true"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET"`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	}

	Queue struct {
		// Backend is "azure" or "memory". The memory backend only works when
		// the classifier runs in the same process.
		Backend           string        `envconfig:"QUEUE_BACKEND" default:"azure"`
		ServiceURL        string        `envconfig:"QUEUE_SERVICE_URL" default:"http://127.0.0.1:10001/devstoreaccount1"`
		RequestQueue      string        `envconfig:"QUEUE_REQUESTS" default:"match-requests"`
		ResultQueue       string        `envconfig:"QUEUE_RESULTS" default:"match-results"`
		Workers           int           `envconfig:"QUEUE_WORKERS" default:"4"`
		BatchSize         int           `envconfig:"QUEUE_BATCH_SIZE" default:"16"`
		PollInterval      time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"2s"`
		VisibilityTimeout time.Duration `envconfig:"QUEUE_VISIBILITY_TIMEOUT" default:"60s"`
		MaxDequeueCount   int64         `envconfig:"QUEUE_MAX_DEQUEUE_COUNT" default:"5"`
	}

	Matching struct {
		UpsertAttempts uint          `envconfig:"MATCHING_UPSERT_ATTEMPTS" default:"3"`
		UpsertDelay    time.Duration `envconfig:"MATCHING_UPSERT_DELAY" default:"200ms"`
		ApplyBatchSize int           `envconfig:"MATCHING_APPLY_BATCH_SIZE" default:"500"`
		RequestTTL     time.Duration `envconfig:"MATCHING_REQUEST_TTL" default:"30m"`
		SweepInterval  time.Duration `envconfig:"MATCHING_SWEEP_INTERVAL" default:"5m"`
	}

	Rates struct {
		TTL time.Duration `envconfig:"RATES_TTL" default:"1h"`
	}

	Classifier struct {
		Model       string `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash"`
		APIKey      string `envconfig:"GEMINI_API_KEY"`
		MaxAttempts int64  `envconfig:"CLASSIFIER_MAX_ATTEMPTS" default:"3"`
	}

	TUI struct {
		UserID string `envconfig:"TUI_USER_ID"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.Queue.Backend != "azure" && cfg.Queue.Backend != "memory" {
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.Queue.Backend)
	}

	return &cfg, nil
}
