// Package migrations embeds the ordered SQL files that build the vetflow schema.
package migrations

import "embed"

// Files holds every NNNN_name.sql migration, applied in lexical order.
//
//go:embed *.sql
var Files embed.FS
