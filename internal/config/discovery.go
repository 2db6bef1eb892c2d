package config

import (
	"os"
	"path/filepath"
)

// Discover returns the first configuration file found in the standard
// locations, or "" when there is none.
// Priority order: $CTLSTUDIO_CONFIG, ~/.config/ctlstudio/config.yaml, ./ctlstudio.yaml
func Discover() string {
	for _, candidate := range candidates() {
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

func candidates() []string {
	var out []string
	if path := os.Getenv(EnvConfig); path != "" {
		out = append(out, path)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(homeDir, ".config", "ctlstudio", "config.yaml"))
	}
	out = append(out, "ctlstudio.yaml")
	return out
}

// DefaultLogFile is where the terminal UI writes logs when log.file is unset.
func DefaultLogFile() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "ctlstudio.log")
		}
		base = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(base, "ctlstudio", "ctlstudio.log")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
