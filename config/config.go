package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DataDir is the per-project directory holding the database and optional config.
const DataDir = ".palate"

// Config holds all configuration for palate.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Profile   ProfileConfig   `yaml:"profile"`
	Recommend RecommendConfig `yaml:"recommend"`
	Taste     TasteConfig     `yaml:"taste"`
	Worker    WorkerConfig    `yaml:"worker"`
	Server    ServerConfig    `yaml:"server"`
	Import    ImportConfig    `yaml:"import"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path        string        `yaml:"path"` // empty means <dir>/.palate/palate.db
	OpenTimeout time.Duration `yaml:"open_timeout" validate:"gte=0"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider        string        `yaml:"provider" validate:"oneof=openai mock"`
	Model           string        `yaml:"model" validate:"required"`
	BaseURL         string        `yaml:"base_url" validate:"omitempty,url"`
	APIKeyEnv       string        `yaml:"api_key_env"` // Environment variable for API key
	Dimension       int           `yaml:"dimension" validate:"gt=0"`
	BatchSize       int           `yaml:"batch_size" validate:"gt=0"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries      uint64        `yaml:"max_retries"`
	BreakerFailures uint32        `yaml:"breaker_failures" validate:"gt=0"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" validate:"gt=0"`
}

// ProfileConfig holds the rating weights used when aggregating a profile.
type ProfileConfig struct {
	LikeWeight    float64 `yaml:"like_weight"`
	DislikeWeight float64 `yaml:"dislike_weight"`
}

// RecommendConfig holds recommendation configuration.
type RecommendConfig struct {
	DefaultLimit int           `yaml:"default_limit" validate:"gt=0"`
	MaxLimit     int           `yaml:"max_limit" validate:"gt=0"`
	Overfetch    int           `yaml:"overfetch" validate:"gte=0"`
	CacheSize    int           `yaml:"cache_size" validate:"gte=0"` // 0 disables caching
	CacheTTL     time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

// TasteConfig holds taste display and filter configuration.
type TasteConfig struct {
	FilterThreshold float64 `yaml:"filter_threshold" validate:"gte=0,lte=1"`
	InputScale      int     `yaml:"input_scale" validate:"oneof=1 5"` // scale of taste values accepted from clients
}

// WorkerConfig holds background task configuration.
type WorkerConfig struct {
	Concurrency int           `yaml:"concurrency" validate:"gt=0"`
	TaskTimeout time.Duration `yaml:"task_timeout" validate:"gt=0"`
	QueueBuffer int64         `yaml:"queue_buffer" validate:"gte=0"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	RateLimit       int           `yaml:"rate_limit" validate:"gte=0"` // requests per minute per IP, 0 disables
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// ImportConfig holds menu import configuration.
type ImportConfig struct {
	Includes []string `yaml:"includes" validate:"min=1"`
	Excludes []string `yaml:"excludes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			OpenTimeout: time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:        "openai",
			Model:           "text-embedding-3-small",
			BaseURL:         "https://api.openai.com/v1",
			APIKeyEnv:       "OPENAI_API_KEY",
			Dimension:       1536,
			BatchSize:       100,
			Timeout:         30 * time.Second,
			MaxRetries:      3,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Profile: ProfileConfig{
			LikeWeight:    1.0,
			DislikeWeight: -0.5,
		},
		Recommend: RecommendConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
			Overfetch:    10,
			CacheSize:    1024,
			CacheTTL:     5 * time.Minute,
		},
		Taste: TasteConfig{
			FilterThreshold: 0.5,
			InputScale:      1,
		},
		Worker: WorkerConfig{
			Concurrency: 4,
			TaskTimeout: 2 * time.Minute,
			QueueBuffer: 256,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			RateLimit:       120,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Import: ImportConfig{
			Includes: []string{"**/*.yaml", "**/*.yml", "**/*.json"},
			Excludes: []string{"**/.palate/**", "**/.git/**", "**/node_modules/**"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Recommend.DefaultLimit > c.Recommend.MaxLimit {
		return fmt.Errorf("invalid config: recommend.default_limit %d exceeds recommend.max_limit %d",
			c.Recommend.DefaultLimit, c.Recommend.MaxLimit)
	}
	if c.Profile.LikeWeight <= 0 {
		return errors.New("invalid config: profile.like_weight must be positive")
	}
	if c.Profile.DislikeWeight > 0 {
		return errors.New("invalid config: profile.dislike_weight must not be positive")
	}
	return nil
}

// applyEnv overlays environment overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("PALATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("PALATE_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, cfg.Validate() // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for palate.yaml).
func LoadFromDir(dir string) (*Config, error) {
	// Try palate.yaml in the directory
	path := filepath.Join(dir, "palate.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .palate/config.yaml
	path = filepath.Join(dir, DataDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DBPath returns the path to the database, honouring store.path when set.
func (c *Config) DBPath(dir string) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return DBPath(dir)
}

// DBPath returns the default database path under dir.
func DBPath(dir string) string {
	return filepath.Join(dir, DataDir, "palate.db")
}

// EnsureDataDir ensures the .palate directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, DataDir), 0755)
}
