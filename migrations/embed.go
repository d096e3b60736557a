// Package migrations embeds the goose migrations for the PostgreSQL document backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
