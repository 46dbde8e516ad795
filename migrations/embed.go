// Package migrations holds the versioned schema for the products store.
package migrations

import "embed"

// FS contains every *.sql migration, named <version>_<name>.<up|down>.sql.
//
//go:embed *.sql
var FS embed.FS
