package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/exynostools/xeno/internal/compression"
)

const (
	blobSuffix = ".bin"

	// DefaultConcurrency bounds GetMulti.
	DefaultConcurrency = 4
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrTooLarge = errors.New("store: blob exceeds maximum size")
)

// LocalStore implements Store on a flat directory.
//
// The directory is created on the first write. Writes go to a temporary file that is
// renamed into place, so concurrent readers see either the old or the new blob.
type LocalStore struct {
	dir         string
	cache       Cache
	compressor  *compression.Compressor
	concurrency int
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(dir string, cacheSize int, compressionLevel int, compressionEnabled bool) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: empty cache directory")
	}

	compressor, err := compression.NewCompressor(compressionLevel, compressionEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	return &LocalStore{
		dir:         dir,
		cache:       NewLRUCache(cacheSize),
		compressor:  compressor,
		concurrency: DefaultConcurrency,
	}, nil
}

// Dir returns the cache directory.
func (s *LocalStore) Dir() string { return s.dir }

// SetConcurrency sets the number of parallel reads in GetMulti.
func (s *LocalStore) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// Get returns the blob stored for key. An empty key, a missing or unreadable file and
// an oversized file are all misses.
func (s *LocalStore) Get(key []byte) ([]byte, bool) {
	if len(key) == 0 {
		return nil, false
	}
	data, err := s.Load(Fingerprint(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores blob under key. Empty inputs are ignored.
func (s *LocalStore) Put(key, blob []byte) error {
	if len(key) == 0 || len(blob) == 0 {
		return nil
	}
	return s.Store(Fingerprint(key), blob)
}

// Load retrieves a blob by fingerprint.
func (s *LocalStore) Load(fingerprint string) ([]byte, error) {
	// 1. Check memory cache
	if data, ok := s.cache.Get(fingerprint); ok {
		return bytes.Clone(data), nil
	}

	// 2. Read from disk
	path := s.Path(fingerprint)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fingerprint)
		}
		return nil, fmt.Errorf("failed to stat blob: %w", err)
	}
	if info.Size() > MaxBlobSize {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrTooLarge, fingerprint, info.Size())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	data, err := s.compressor.Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode blob %s: %w", fingerprint, err)
	}

	// 3. Cache and return; the memo keeps its own copy
	s.cache.Add(fingerprint, bytes.Clone(data))
	return data, nil
}

// Store writes blob under fingerprint, replacing any previous content.
func (s *LocalStore) Store(fingerprint string, blob []byte) error {
	if !ValidFingerprint(fingerprint) {
		return fmt.Errorf("store: invalid fingerprint %q", fingerprint)
	}
	if len(blob) > MaxBlobSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(blob))
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := writeFileAtomic(s.Path(fingerprint), s.compressor.Compress(blob)); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}

	s.cache.Add(fingerprint, bytes.Clone(blob))
	return nil
}

// GetMulti loads several fingerprints in parallel. Missing entries are left out of
// the result.
func (s *LocalStore) GetMulti(ctx context.Context, fingerprints []string) (map[string][]byte, error) {
	var mu sync.Mutex
	result := make(map[string][]byte, len(fingerprints))

	p := pool.New().WithMaxGoroutines(s.concurrency).WithContext(ctx).WithCancelOnError()
	for _, fp := range fingerprints {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := s.Load(fp)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			result[fp] = data
			mu.Unlock()
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Entries lists the blobs in the directory. A missing directory yields nothing.
func (s *LocalStore) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		dirEntries, err := os.ReadDir(s.dir)
		if err != nil {
			if !os.IsNotExist(err) {
				yield(Entry{}, fmt.Errorf("failed to read cache directory: %w", err))
			}
			return
		}

		for _, de := range dirEntries {
			fp, ok := strings.CutSuffix(de.Name(), blobSuffix)
			if !ok || de.IsDir() || !ValidFingerprint(fp) {
				continue
			}
			info, err := de.Info()
			if err != nil {
				// removed since ReadDir
				continue
			}
			if !yield(Entry{Fingerprint: fp, Size: info.Size(), ModTime: info.ModTime()}, nil) {
				return
			}
		}
	}
}

// Remove deletes the blob stored under fingerprint.
func (s *LocalStore) Remove(fingerprint string) error {
	s.cache.Remove(fingerprint)
	if err := os.Remove(s.Path(fingerprint)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, fingerprint)
		}
		return err
	}
	return nil
}

// Path returns the filesystem path for a fingerprint.
func (s *LocalStore) Path(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+blobSuffix)
}

// Close releases the compressor.
func (s *LocalStore) Close() error {
	return s.compressor.Close()
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
