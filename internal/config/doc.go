// Package config loads runtime configuration for the planner service from
// YAML files, environment variables, and CLI flags, with precedence: CLI flags
// > YAML config > Environment variables > Defaults. It also carries the pallet
// presets and the storage backend selection.
package config
