// Package store provides storage backends for the survey flow engine.
//
// This file defines the shared functional options for store construction.
package store

import "strings"

// Opts holds configuration for store backends.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite, a
	// postgres:// URL or key/value string for PostgreSQL.
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType inspects a DSN and reports "postgres" or "sqlite". Postgres
// DSNs are URLs or key/value strings; anything else is treated as a SQLite
// file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
