// Package store implements the persistent shader blob cache.
//
// Blobs are addressed by the fingerprint of the key they were produced from
// (typically SPIR-V). The layout is a single flat directory:
//
//	cacheDir/
//	  3f0a...e1.bin   (one file per fingerprint)
//
// The cache is an optimization only. Callers treat every error as a miss.
package store

import (
	"context"
	"iter"
	"time"
)

// MaxBlobSize is the largest blob that is ever read back.
const MaxBlobSize = 256 << 20

// Store handles shader blob storage.
type Store interface {
	// Get returns the blob stored for key.
	Get(key []byte) ([]byte, bool)

	// Put stores blob under key, replacing any previous blob.
	Put(key, blob []byte) error

	// Load returns the blob stored under a fingerprint.
	Load(fingerprint string) ([]byte, error)

	// Store writes blob under a fingerprint.
	Store(fingerprint string, blob []byte) error

	// GetMulti loads several fingerprints in parallel; missing ones are skipped.
	GetMulti(ctx context.Context, fingerprints []string) (map[string][]byte, error)

	// Entries lists stored blobs.
	Entries() iter.Seq2[Entry, error]

	// Remove deletes one fingerprint.
	Remove(fingerprint string) error

	// Path returns the file a fingerprint is stored in.
	Path(fingerprint string) string
}

// Entry describes one stored blob.
type Entry struct {
	Fingerprint string
	Size        int64
	ModTime     time.Time
}
