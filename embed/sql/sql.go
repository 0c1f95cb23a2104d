// Package embedsql carries the embedded database schema.
package embedsql

import _ "embed"

// Schema is the SQLite schema applied on startup. Every statement is
// idempotent, so re-running it against an existing database is safe.
//
//go:embed schema.sql
var Schema string
