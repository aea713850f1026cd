// Package cli implements the melinda command tree.
//
// Commands are grouped by backend surface:
//
//	melinda record read|create|update|restore
//	melinda bulk create|send|state|set-state|list|poll|watch
//	melinda logs catalogers|get|list|protect|remove
//	melinda version
//
// Connection settings come from flags, then MELINDA_* environment variables,
// then the config file (see package config). When no password is configured
// and stdin is a terminal the user is prompted for one.
//
// Every command renders its result as text, JSON or YAML according to
// --output. With --output json, failures are written to stdout as a JSON
// object carrying the HTTP status of the failing request.
package cli
