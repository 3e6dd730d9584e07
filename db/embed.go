// Package db embeds the PostgreSQL schema.
package db

import _ "embed"

// Schema holds the idempotent DDL for every table, index and sequence.
//
//go:embed migrations/001_schema.sql
var Schema string
