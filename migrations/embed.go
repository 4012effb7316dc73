// Package migrations embeds the goose SQL migrations for the SQL ledger
// backends.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
