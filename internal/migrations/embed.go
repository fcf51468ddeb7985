// AngelaMos | 2026
// embed.go

package migrations

import "embed"

// FS holds the versioned schema migrations applied at startup.
//
//go:embed *.sql
var FS embed.FS
