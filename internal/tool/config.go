package tool

import "github.com/dshills/bgshell/internal/session"

// Default configuration values.
const (
	// DefaultTimeoutSec is the hard lifetime bound for commands.
	DefaultTimeoutSec = 600

	// DefaultBackgroundMs is the yield threshold before a still-running
	// command is handed off to background tracking.
	DefaultBackgroundMs = 10_000
)

// ElevatedPolicy gates the elevated execution mode.
type ElevatedPolicy struct {
	// Enabled turns the elevation feature on for this adapter.
	Enabled bool `toml:"enabled"`

	// Allowed permits elevated execution when requested.
	Allowed bool `toml:"allowed"`

	// DefaultLevel is "on" or "off": the level used when a call does not
	// request elevation explicitly. A default of "on" with Allowed false
	// silently runs at the normal level; it never errors and never
	// escalates.
	DefaultLevel string `toml:"default_level"`
}

// Permits reports whether an explicit elevation request may proceed.
func (p ElevatedPolicy) Permits() bool {
	return p.Enabled && p.Allowed
}

// DefaultOn reports whether calls without an explicit elevated flag
// should run elevated.
func (p ElevatedPolicy) DefaultOn() bool {
	return p.DefaultLevel == "on" && p.Permits()
}

// Config is the constructor-time configuration bundle shared by the
// paired tool adapters.
type Config struct {
	// TimeoutSec is the hard lifetime bound in seconds.
	TimeoutSec int `toml:"timeout_sec"`

	// BackgroundMs is the default yield threshold in milliseconds.
	BackgroundMs int `toml:"background_ms"`

	// Elevated is the elevation policy.
	Elevated ElevatedPolicy `toml:"elevated"`

	// ScopeKey is the isolation partition for every call through this
	// adapter.
	ScopeKey string `toml:"scope_key"`
}

// DefaultConfig returns the adapter defaults.
func DefaultConfig() Config {
	return Config{
		TimeoutSec:   DefaultTimeoutSec,
		BackgroundMs: DefaultBackgroundMs,
		Elevated: ElevatedPolicy{
			DefaultLevel: "off",
		},
		ScopeKey: session.DefaultScope,
	}
}

// normalize fills zero values with defaults.
func (c Config) normalize() Config {
	if c.TimeoutSec <= 0 {
		c.TimeoutSec = DefaultTimeoutSec
	}
	if c.BackgroundMs <= 0 {
		c.BackgroundMs = DefaultBackgroundMs
	}
	if c.ScopeKey == "" {
		c.ScopeKey = session.DefaultScope
	}
	if c.Elevated.DefaultLevel == "" {
		c.Elevated.DefaultLevel = "off"
	}
	return c
}
