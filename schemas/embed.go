// Package schemas embeds the SQL migrations of the MySQL state store.
package schemas

import "embed"

// MigrationsDir is the directory of Migrations that holds the numbered migration files.
const MigrationsDir = "migrations"

//go:embed migrations/*.sql
var Migrations embed.FS
