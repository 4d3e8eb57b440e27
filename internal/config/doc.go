// Package config loads, normalizes, and validates dhis2dupes configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// DHIS2_BASE_URL and DHIS2_API_TOKEN so credentials can stay out of files.
// The Config type centralizes every knob the CLI, exporter and HTTP server
// need.
//
// Always obtain settings through this package so downstream code receives
// sanitized URLs and paths, canonical format names, and clear validation
// errors.
package config
