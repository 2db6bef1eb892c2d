package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment overrides, applied after the file.
const (
	EnvConfig    = "CTLSTUDIO_CONFIG"
	EnvServerURL = "CTLSTUDIO_SERVER_URL"
	EnvToken     = "CTLSTUDIO_TOKEN"
	EnvLogLevel  = "CTLSTUDIO_LOG_LEVEL"
)

// Load reads configuration from configPath. An empty path falls back to
// discovery; when nothing is found the defaults are used.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = Discover()
	}

	cfg := Defaults()
	if configPath != "" {
		fileCfg, err := loadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = applyConfigDefaults(fileCfg)
		cfg.Path = configPath
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", path)
	}

	// Apply environment variable interpolation
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML %s: %w", path, err)
	}
	return &cfg, nil
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.RetryMaxElapsed == 0 {
		cfg.Server.RetryMaxElapsed = defaults.Server.RetryMaxElapsed
	}
	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = defaults.Poll.Interval
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	if cfg.Stub.Listen == "" {
		cfg.Stub.Listen = defaults.Stub.Listen
	}
	if cfg.Stub.DBPath == "" {
		cfg.Stub.DBPath = defaults.Stub.DBPath
	}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvServerURL)); v != "" {
		cfg.Server.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		cfg.Server.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Server.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("server.url must be an http(s) URL (got %q)", cfg.Server.URL)
	}
	if err := checkUnresolved("server.token", cfg.Server.Token); err != nil {
		return err
	}
	if err := checkUnresolved("stub.token", cfg.Stub.Token); err != nil {
		return err
	}
	if cfg.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative")
	}
	if cfg.Server.RetryMaxElapsed < 0 {
		return fmt.Errorf("server.retry_max_elapsed must not be negative")
	}
	if cfg.Poll.Interval < 100*time.Millisecond {
		return fmt.Errorf("poll.interval must be at least 100ms (got %s)", cfg.Poll.Interval)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text (got %q)", cfg.Log.Format)
	}
	return nil
}

func checkUnresolved(field, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}
