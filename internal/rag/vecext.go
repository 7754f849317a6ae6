//go:build sqlite_vec && cgo

package rag

import vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

// Registering sqlite-vec as an auto-loadable extension lets the plain
// mattn/go-sqlite3 driver open vec0 virtual tables without a custom
// driver registration, matching the pattern the retrieval pack's other
// sqlite-vec consumer uses (theRebelliousNerd-codenerd/internal/store).
func init() {
	vec.Auto()
}
