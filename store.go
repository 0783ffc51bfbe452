package xeno

import (
	"github.com/exynostools/xeno/internal/store"
)

// Store is the shader blob store interface.
// Re-exported from internal/store for convenience.
type Store = store.Store

// Entry describes one stored blob.
type Entry = store.Entry

// Fingerprint returns the cache fingerprint of key.
func Fingerprint(key []byte) string { return store.Fingerprint(key) }

// OpenStore opens the cache directory dir with the settings' compression choice.
func OpenStore(dir string, compression bool, opts ...Option) (*store.LocalStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return store.NewLocalStore(dir, o.memoSize, 0, compression)
}
