// Package migrations embeds the schema of the PostgreSQL request registry.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
