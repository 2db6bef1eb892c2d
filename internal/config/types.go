package config

import "time"

// Config represents the complete ctlstudio configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Poll   PollConfig   `yaml:"poll"`
	Log    LogConfig    `yaml:"log"`
	Stub   StubConfig   `yaml:"stub"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// ServerConfig points the client at a controller.
type ServerConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
	// RetryMaxElapsed bounds transport retries of idempotent requests.
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`
}

// PollConfig controls run status polling.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives logs while the terminal UI owns the screen.
	File string `yaml:"file"`
}

// StubConfig configures the local stub controller.
type StubConfig struct {
	Listen string `yaml:"listen"`
	DBPath string `yaml:"db_path"`
	Token  string `yaml:"token"`
}

// Defaults returns a configuration with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			URL:             "http://localhost:8600",
			RetryMaxElapsed: 2 * time.Second,
		},
		Poll: PollConfig{
			Interval: 3 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Stub: StubConfig{
			Listen: "127.0.0.1:8600",
			DBPath: "./data/ctlstudio-stub.db",
		},
	}
}
