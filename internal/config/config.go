package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModeAssistants = "assistants"
	ModeChat       = "chat"
)

const (
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultModel         = "gpt-4o"
	DefaultPollInterval  = 1 * time.Second
	DefaultPollTimeout   = 10 * time.Minute
	DefaultMaxPollErrors = 3
	DefaultDBPath        = "fitcoach.db"
	DefaultLogDir        = "logs"
)

// Config holds application configuration
type Config struct {
	APIKey  string
	BaseURL string
	Mode    string
	Model   string // Overrides every persona's model when set
	Debug   bool

	PollInterval  time.Duration
	PollTimeout   time.Duration
	MaxPollErrors int

	DBPath       string
	LogDir       string
	PersonasFile string // Optional YAML file with persona and task overrides
}

// Default returns a Config populated with defaults only.
func Default() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		Mode:          ModeAssistants,
		PollInterval:  DefaultPollInterval,
		PollTimeout:   DefaultPollTimeout,
		MaxPollErrors: DefaultMaxPollErrors,
		DBPath:        DefaultDBPath,
		LogDir:        DefaultLogDir,
	}
}

// FromEnv returns defaults overlaid with environment variables. A .env file in
// the working directory is loaded first if present; variables already set in
// the process environment win. A .env file that exists but cannot be read or
// parsed is an error.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromLookup(os.Getenv), nil
}

// FromLookup builds a Config from defaults and the given variable lookup.
func FromLookup(getenv func(string) string) Config {
	cfg := Default()

	cfg.APIKey = getenv("OPENAI_API_KEY")
	if cfg.APIKey == "" {
		cfg.APIKey = getenv("OPENAI_KEY")
	}
	if v := getenv("FITCOACH_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := getenv("FITCOACH_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := getenv("FITCOACH_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("FITCOACH_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	return cfg
}

// Validate checks settings that do not depend on the remote credential.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeAssistants, ModeChat:
	default:
		return fmt.Errorf("unknown mode %q (assistants|chat)", c.Mode)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.PollTimeout < 0 {
		return fmt.Errorf("poll timeout must not be negative, got %s", c.PollTimeout)
	}
	if c.MaxPollErrors < 0 {
		return fmt.Errorf("max poll errors must not be negative, got %d", c.MaxPollErrors)
	}
	return nil
}
