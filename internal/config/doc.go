// Package config loads the melinda CLI's connection settings.
//
// # Resolution Order
//
// Each setting is taken from the first source that provides it:
//
//  1. Command-line flags (applied by the cli package after Load)
//  2. Environment variables (MELINDA_BASE_URL, MELINDA_USERNAME,
//     MELINDA_PASSWORD, MELINDA_CATALOGER)
//  3. The TOML config file, ~/.config/melinda/config.toml unless --config
//     names another one
//  4. Built-in defaults
//
// A missing config file is not an error. The CLI works from environment
// variables and flags alone.
//
// # TOML Format
//
//	base_url = "https://melinda.example/api/"
//	username = "loader"
//	password = "secret"
//	cataloger = "LOAD"
//	user_agent = "importer/1.0"
//	poll_interval = "3s"
//	timeout = "60s"
//	requests_per_second = 5
//
// Durations use time.ParseDuration syntax. requests_per_second of zero
// disables client-side rate limiting.
package config
