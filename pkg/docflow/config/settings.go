package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"dario.cat/mergo"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment override, e.g.
// DOCFLOW_CHECKPOINT_BACKEND.
const EnvPrefix = "DOCFLOW"

// Checkpoint backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

var backends = []string{BackendMemory, BackendSQLite, BackendBadger, BackendRedis}

// Settings is the typed runtime configuration.
type Settings struct {
	MaxRetries int    `envconfig:"max_retries"`
	UploadDir  string `envconfig:"upload_dir"`
	OutputDir  string `envconfig:"output_dir"`
	TempDir    string `envconfig:"temp_dir"`

	Checkpoint CheckpointSettings `envconfig:"checkpoint"`
	Redis      RedisSettings      `envconfig:"redis"`
	OpenAI     OpenAISettings     `envconfig:"openai"`
	Log        LogSettings        `envconfig:"log"`
}

// CheckpointSettings selects and tunes the checkpoint store.
type CheckpointSettings struct {
	Backend       string        `envconfig:"backend"`
	Dir           string        `envconfig:"dir"`
	TTL           time.Duration `envconfig:"ttl"`
	SweepInterval time.Duration `envconfig:"sweep_interval"`
}

// RedisSettings configures the redis backend.
type RedisSettings struct {
	URL string `envconfig:"url"`
}

// OpenAISettings configures the OpenAI-compatible provider.
type OpenAISettings struct {
	APIKey  string `envconfig:"api_key"`
	BaseURL string `envconfig:"base_url"`
	Model   string `envconfig:"model"`
}

// LogSettings configures the CLI log handler.
type LogSettings struct {
	Level  string `envconfig:"level"`
	Format string `envconfig:"format"`
}

// Defaults returns the settings used for anything left unset.
func Defaults() Settings {
	base := filepath.Join(os.TempDir(), "docflow")
	return Settings{
		MaxRetries: 3,
		UploadDir:  filepath.Join(base, "uploads"),
		OutputDir:  filepath.Join(base, "output"),
		TempDir:    filepath.Join(base, "tmp"),
		Checkpoint: CheckpointSettings{
			Backend:       BackendMemory,
			Dir:           filepath.Join(os.TempDir(), "docflow_checkpoints"),
			TTL:           time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Redis: RedisSettings{URL: "redis://localhost:6379/0"},
		Log:   LogSettings{Level: "info", Format: "text"},
	}
}

// FromConfig reads settings from cfg and fills the rest from Defaults.
func FromConfig(cfg Config) (Settings, error) {
	s := Settings{
		UploadDir:  cfg.String("upload_dir", ""),
		OutputDir:  cfg.String("output_dir", ""),
		TempDir:    cfg.String("temp_dir", ""),
		Checkpoint: CheckpointSettings{
			Backend:       cfg.String("checkpoint.backend", ""),
			Dir:           cfg.String("checkpoint.dir", ""),
			TTL:           cfg.Duration("checkpoint.ttl", 0),
			SweepInterval: cfg.Duration("checkpoint.sweep_interval", 0),
		},
		Redis: RedisSettings{URL: cfg.String("redis.url", "")},
		OpenAI: OpenAISettings{
			APIKey:  cfg.String("openai.api_key", ""),
			BaseURL: cfg.String("openai.base_url", ""),
			Model:   cfg.String("openai.model", ""),
		},
		Log: LogSettings{
			Level:  cfg.String("log.level", ""),
			Format: cfg.String("log.format", ""),
		},
	}
	if err := mergo.Merge(&s, Defaults()); err != nil {
		return Settings{}, fmt.Errorf("merge defaults: %w", err)
	}
	// mergo treats zero as unset, so an explicit max_retries: 0 is applied after the merge.
	s.MaxRetries = cfg.Int("max_retries", s.MaxRetries)
	return s, nil
}

// ApplyEnv overlays DOCFLOW_* environment variables onto s. Unset variables
// leave the current value alone.
func (s *Settings) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, s); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}
	return nil
}

// Load reads settings from the file at path, or from defaults alone when
// path is empty, then applies the environment and validates the result.
func Load(path string) (Settings, error) {
	cfg := New(nil)
	if path != "" {
		var err error
		if cfg, err = FromFile(path); err != nil {
			return Settings{}, err
		}
	}
	s, err := FromConfig(cfg)
	if err != nil {
		return Settings{}, err
	}
	if err := s.ApplyEnv(); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	if !slices.Contains(backends, s.Checkpoint.Backend) {
		errs = append(errs, fmt.Errorf("checkpoint.backend: unknown backend %q", s.Checkpoint.Backend))
	}
	if s.Checkpoint.TTL <= 0 {
		errs = append(errs, fmt.Errorf("checkpoint.ttl: must be positive, got %s", s.Checkpoint.TTL))
	}
	if s.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries: must not be negative, got %d", s.MaxRetries))
	}
	if s.Checkpoint.Backend == BackendRedis && s.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url: required for the redis backend"))
	}
	return errors.Join(errs...)
}
