// Package db embeds the SQL migrations so production builds carry the
// schema with the binary. Build with -tags embed_migrations to use them.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
