//go:build sqlite_vec && cgo

// Package vectorindex: this file is the cgo-accelerated counterpart to
// vectorindex.go, mirroring the teacher's internal/store/init_vec.go split
// between a pure-Go default and an optional sqlite_vec-extension path.
// Building with -tags sqlite_vec,cgo registers the sqlite-vec extension
// against github.com/mattn/go-sqlite3, exposing the "vec0" virtual table
// and its built-in ANN distance operators to that driver. Open still talks
// to modernc.org/sqlite and the in-process cosine scan in vectorindex.go;
// swapping Open's driver name to "sqlite3" under this same build tag is
// the remaining step to route Search through vec0 instead.
package vectorindex

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	vec.Auto()
}
