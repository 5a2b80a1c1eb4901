package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/reviewbot/internal/spaced_repetition"
	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Review    ReviewConfig    `yaml:"review"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
	// RatePerSec caps outgoing messages across all chats
	RatePerSec int `yaml:"rate_per_sec"`
	// PollTimeout is the long polling timeout in seconds
	PollTimeout int  `yaml:"poll_timeout"`
	Debug       bool `yaml:"debug"`
}

type DatabaseConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// SchedulerConfig durations are Go duration strings (e.g. "30s", "1m", "24h")
type SchedulerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	ReviewInterval   time.Duration `yaml:"review_interval"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	ConversationTTL  time.Duration `yaml:"conversation_ttl"`
	BroadcastEnabled bool          `yaml:"broadcast_enabled"`
	BroadcastHour    int           `yaml:"broadcast_hour"`
	BroadcastMinute  int           `yaml:"broadcast_minute"`
}

type ReviewConfig struct {
	// RatingStrategy is translation_match or self_report
	RatingStrategy string `yaml:"rating_strategy"`
	// ModelsDir holds interval_model.json and ml_score_model.json
	ModelsDir string `yaml:"models_dir"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Telegram: TelegramConfig{
			RatePerSec:  25,
			PollTimeout: 60,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "data/reviewbot.db",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			ReviewInterval:   time.Minute,
			RetryBackoff:     time.Minute,
			ConversationTTL:  24 * time.Hour,
			BroadcastEnabled: true,
			BroadcastHour:    12,
			BroadcastMinute:  0,
		},
		Review: ReviewConfig{
			RatingStrategy: spaced_repetition.StrategyTranslationMatch,
			ModelsDir:      "models",
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML file at path,
// then environment variables (a .env file in the working directory is loaded first).
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := decodeYAML(b, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.Token)
	str("DB_TYPE", &cfg.Database.Type)
	str("DB_DSN", &cfg.Database.DSN)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("RATING_STRATEGY", &cfg.Review.RatingStrategy)
	str("MODELS_DIR", &cfg.Review.ModelsDir)

	if v, ok := lookup("ENABLE_SCHEDULER"); ok {
		cfg.Scheduler.Enabled = v != "false"
	}
	if v, ok := lookup("REVIEW_INTERVAL"); ok {
		d, err := ParseDurationOrDefault("REVIEW_INTERVAL", v, cfg.Scheduler.ReviewInterval)
		if err != nil {
			return err
		}
		cfg.Scheduler.ReviewInterval = d
	}
	if v, ok := lookup("BROADCAST_HOUR"); ok && v != "" {
		h, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BROADCAST_HOUR: invalid hour %q: %w", v, err)
		}
		cfg.Scheduler.BroadcastHour = h
	}
	return nil
}

// RequireToken fails when no Telegram token is configured
func (c *Config) RequireToken() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required (TELEGRAM_BOT_TOKEN)")
	}
	return nil
}

// Validate checks ranges and required fields
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.RatePerSec <= 0 {
		errs = append(errs, errors.New("telegram.rate_per_sec must be > 0"))
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.type must be sqlite or postgres, got %q", c.Database.Type))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Scheduler.ReviewInterval <= 0 {
		errs = append(errs, errors.New("scheduler.review_interval must be > 0"))
	}
	if c.Scheduler.RetryBackoff <= 0 {
		errs = append(errs, errors.New("scheduler.retry_backoff must be > 0"))
	}
	if c.Scheduler.ConversationTTL < 0 {
		errs = append(errs, errors.New("scheduler.conversation_ttl must be >= 0"))
	}
	if c.Scheduler.BroadcastHour < 0 || c.Scheduler.BroadcastHour > 23 {
		errs = append(errs, fmt.Errorf("scheduler.broadcast_hour must be in 0..23, got %d", c.Scheduler.BroadcastHour))
	}
	if c.Scheduler.BroadcastMinute < 0 || c.Scheduler.BroadcastMinute > 59 {
		errs = append(errs, fmt.Errorf("scheduler.broadcast_minute must be in 0..59, got %d", c.Scheduler.BroadcastMinute))
	}
	if _, err := spaced_repetition.NewStrategy(c.Review.RatingStrategy); err != nil {
		errs = append(errs, fmt.Errorf("review.rating_strategy: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
