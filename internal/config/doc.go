// Package config loads Spyglass configuration from file and environment.
//
// Precedence, lowest to highest: built-in defaults, config file
// (JSON or YAML by extension), SPYGLASS_* environment variables.
package config
