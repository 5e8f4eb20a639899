// Package migrations embeds the SQL schema for the Postgres appointment store.
package migrations

import "embed"

// FS holds every *.sql migration, applied in version order by cmd/migrate.
//
//go:embed *.sql
var FS embed.FS
