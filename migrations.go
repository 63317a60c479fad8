package storyforge

import "embed"

// MigrationsFS carries the SQL schema migrations into the binary.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
