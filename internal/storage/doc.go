// Package storage persists scan runs so watch mode can tell new diagnostics
// from ones it already reported.
//
// Drivers:
//   - file: last run snapshot plus an append-only JSON Lines history
//   - sqlite: SQLite database file (build tag "sqlite")
package storage
