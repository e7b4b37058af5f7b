package migrations

import "embed"

// FS holds the goose SQL migrations compiled into the binaries.
//
//go:embed *.sql
var FS embed.FS
