// Package database provides the PostgreSQL connection pool used to persist
// cache snapshots.
package database
