// Package config loads, normalizes, and validates srmsync configuration data.
//
// It supplies repository defaults rooted in the XDG base directories, expands
// user paths (including tilde shortcuts), reads TOML files, and honours
// environment fallbacks such as STEAM_USER and SRMSYNC_NTFY_TOPIC. The Config
// type centralizes every knob the daemon and CLI need so manifest, cache, and
// marker directories are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
