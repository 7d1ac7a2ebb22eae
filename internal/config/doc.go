// Package config provides centralized configuration management for the
// QueryMind runtime, loading the JSON configuration file, resolving
// relative paths against the configuration directory, and applying sane
// defaults for every subsystem.
package config
