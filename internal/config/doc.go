// Package config loads tool adapter defaults from TOML files and
// environment variables.
package config
