package store

import (
	"errors"
	"slices"
	"time"
)

// Stats summarizes the cache directory.
type Stats struct {
	Entries   int
	TotalSize int64
	Oldest    time.Time
	Newest    time.Time
}

// Stats walks the directory once.
func (s *LocalStore) Stats() (Stats, error) {
	var st Stats
	for e, err := range s.Entries() {
		if err != nil {
			return st, err
		}
		st.Entries++
		st.TotalSize += e.Size
		if st.Oldest.IsZero() || e.ModTime.Before(st.Oldest) {
			st.Oldest = e.ModTime
		}
		if e.ModTime.After(st.Newest) {
			st.Newest = e.ModTime
		}
	}
	return st, nil
}

// Prune removes the least recently written blobs until the directory holds at most
// maxBytes. It returns the number of blobs removed.
func (s *LocalStore) Prune(maxBytes int64) (int, error) {
	var entries []Entry
	var total int64
	for e, err := range s.Entries() {
		if err != nil {
			return 0, err
		}
		entries = append(entries, e)
		total += e.Size
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return a.ModTime.Compare(b.ModTime)
	})

	removed := 0
	for _, e := range entries {
		if total <= maxBytes {
			break
		}
		if err := s.Remove(e.Fingerprint); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, err
		}
		total -= e.Size
		removed++
	}
	return removed, nil
}

// Clear removes every blob and empties the memory cache.
func (s *LocalStore) Clear() (int, error) {
	n, err := s.Prune(-1)
	s.cache.Clear()
	return n, err
}
