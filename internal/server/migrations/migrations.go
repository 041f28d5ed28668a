// Package migrations embeds the goose SQL migrations for the rental schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
