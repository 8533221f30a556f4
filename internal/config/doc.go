// Package config loads, validates, and defaults the shrinkray configuration
// file. Configuration is TOML, found at ~/.config/shrinkray/config.toml or a
// project-local shrinkray.toml, with every field carrying a usable default so
// the tool runs without any file present.
package config
