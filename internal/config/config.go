package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/bgshell/internal/tool"
)

// Environment variable overrides, applied after file loading.
const (
	EnvTimeoutSec      = "BGSHELL_TIMEOUT_SEC"
	EnvBackgroundMs    = "BGSHELL_BACKGROUND_MS"
	EnvScopeKey        = "BGSHELL_SCOPE"
	EnvElevatedAllowed = "BGSHELL_ELEVATED_ALLOWED"
)

// Load reads tool configuration from a TOML file. A missing file is not
// an error: defaults are returned. Values absent from the file keep their
// defaults.
func Load(path string) (tool.Config, error) {
	cfg := tool.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return tool.DefaultConfig(), &ParseError{
			Path:    path,
			Message: err.Error(),
			Err:     err,
		}
	}

	return cfg, nil
}

// FromEnv applies environment variable overrides to cfg. Unset and
// malformed values leave the existing setting untouched.
func FromEnv(cfg tool.Config) tool.Config {
	if v := os.Getenv(EnvTimeoutSec); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeoutSec = n
		}
	}
	if v := os.Getenv(EnvBackgroundMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BackgroundMs = n
		}
	}
	if v := os.Getenv(EnvScopeKey); v != "" {
		cfg.ScopeKey = v
	}
	if v := os.Getenv(EnvElevatedAllowed); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Elevated.Allowed = b
		}
	}
	return cfg
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
