// Package db carries the SQL migrations compiled into the binaries.
package db

import "embed"

// Migrations holds goose migration files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS
