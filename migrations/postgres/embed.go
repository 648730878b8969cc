// Package migrations embeds the Postgres schema and applies it.
package migrations

import "embed"

// FS contains the *_up.sql and *_down.sql files of this directory.
//
//go:embed *.sql
var FS embed.FS
