//go:build cgo

package main

import "github.com/exynostools/xeno/internal/store"

// validLen reports whether n is a usable buffer length: non-zero and no larger than
// the biggest blob the cache keeps, so it always fits a C int.
func validLen(n uint64) bool {
	return n > 0 && n <= store.MaxBlobSize
}
