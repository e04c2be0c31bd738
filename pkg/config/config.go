package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Responder ResponderConfig `yaml:"responder"`
	LLM       LLMConfig       `yaml:"llm"`
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Server    ServerConfig    `yaml:"server"`
}

// DispatchConfig holds settings for the generation dispatch queue.
type DispatchConfig struct {
	MinDelay         Duration   `yaml:"min_delay"`          // Minimum spacing between backend dispatches
	SettleDelay      Duration   `yaml:"settle_delay"`       // Pause after a successful dispatch
	RetryDelays      []Duration `yaml:"retry_delays"`       // Rate-limit backoff table, indexed by attempt
	ServerRetries    int        `yaml:"server_retries"`     // Cap for transient server-error retries
	ServerRetryDelay Duration   `yaml:"server_retry_delay"` // Fixed delay between server-error retries
}

// SchedulerConfig holds defaults for the autonomous content scheduler.
// Runtime overrides live in the state store and take precedence.
type SchedulerConfig struct {
	MinPostIntervalMinutes    int     `yaml:"min_post_interval_minutes"`
	MaxPostIntervalMinutes    int     `yaml:"max_post_interval_minutes"`
	MinCommentIntervalMinutes int     `yaml:"min_comment_interval_minutes"`
	MaxCommentIntervalMinutes int     `yaml:"max_comment_interval_minutes"`
	ImagePostChance           float64 `yaml:"image_post_chance"`
	CommentChance             float64 `yaml:"comment_chance"`
	AutoStart                 bool    `yaml:"auto_start"`
}

// ResponderConfig holds settings for the conversation responder.
type ResponderConfig struct {
	TypingDelayMin    Duration `yaml:"typing_delay_min"` // Delay before the typing indicator appears
	TypingDelayMax    Duration `yaml:"typing_delay_max"`
	DeliveryDelayMin  Duration `yaml:"delivery_delay_min"` // Clamp range for the simulated typing time
	DeliveryDelayMax  Duration `yaml:"delivery_delay_max"`
	HistoryLimit      int      `yaml:"history_limit"`      // Messages of context passed to the backend
	GenerationTimeout Duration `yaml:"generation_timeout"` // Bound on a single backend call
}

// LLMConfig holds settings for the text-generation backend.
type LLMConfig struct {
	Provider string            `yaml:"provider"` // "gemini", "mock"
	Model    string            `yaml:"model"`    // e.g. "gemini-2.5-flash-lite"
	Key      string            `yaml:"key"`      // API Key
	Profiles map[string]string `yaml:"profiles"` // Map of intent -> model
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server LogSettings `yaml:"server"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Dispatch: DispatchConfig{
			MinDelay:    Duration(3 * time.Second),
			SettleDelay: Duration(1 * time.Second),
			RetryDelays: []Duration{
				Duration(5 * time.Second),
				Duration(15 * time.Second),
				Duration(45 * time.Second),
				Duration(90 * time.Second),
			},
			ServerRetries:    2,
			ServerRetryDelay: Duration(10 * time.Second),
		},
		Scheduler: SchedulerConfig{
			MinPostIntervalMinutes:    20,
			MaxPostIntervalMinutes:    90,
			MinCommentIntervalMinutes: 10,
			MaxCommentIntervalMinutes: 45,
			ImagePostChance:           0.25,
			CommentChance:             0.6,
			AutoStart:                 false,
		},
		Responder: ResponderConfig{
			TypingDelayMin:    Duration(500 * time.Millisecond),
			TypingDelayMax:    Duration(1500 * time.Millisecond),
			DeliveryDelayMin:  Duration(1 * time.Second),
			DeliveryDelayMax:  Duration(8 * time.Second),
			HistoryLimit:      30,
			GenerationTimeout: Duration(120 * time.Second),
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash-lite",
			Key:      "",
			Profiles: map[string]string{
				"post":    "gemini-2.5-flash",
				"comment": "gemini-2.5-flash-lite",
				"reply":   "gemini-2.5-flash",
				"image":   "imagen-3.0-generate-002",
			},
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/menagerie.db",
		},
		Server: ServerConfig{
			Address: "localhost:1921",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT
// save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		// Load from Env if empty (fallback only, never saved back to disk)
		if cfg.LLM.Key == "" {
			if key := os.Getenv("GEMINI_API_KEY"); key != "" {
				cfg.LLM.Key = key
			}
		}

		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Menagerie Configuration
# -----------------------
# Supported Duration units: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault writes the default config to the path, failing if it exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
