// Package config loads, normalizes, and validates the muse TOML
// configuration.
package config
