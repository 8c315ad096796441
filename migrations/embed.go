// Package migrations provides the embedded database schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
