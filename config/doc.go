// Package config provides configuration loading and validation for dispatch
// applications.
//
// It uses Viper to load configuration from files and environment variables,
// supporting multiple formats (YAML, JSON, TOML) and environment-specific
// overrides.
//
// # Usage
//
//	var cfg MyConfig
//	err := config.LoadConfig("dispatch", &cfg)
//
// Environment variables override file values; SERVER_PORT binds to
// server.port and so on through automatic key expansion.
package config
