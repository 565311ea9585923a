// Package migrations embeds the linear, versioned goose SQL migration list
// applied at startup (spec.md §4.A).
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS

// Dir is the goose migration directory within FS.
const Dir = "sql"
