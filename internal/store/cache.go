package store

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// memoMaxBlob is the largest blob kept in memory. Larger blobs are always re-read.
const memoMaxBlob = 1 << 20

// Cache provides in-memory caching of blobs by fingerprint.
type Cache interface {
	Get(fingerprint string) ([]byte, bool)
	Add(fingerprint string, blob []byte)
	Remove(fingerprint string)
	Clear()
}

// LRUCache keeps the most recently used blobs in memory.
type LRUCache struct {
	lru *lru.Cache[string, []byte]
}

// NewLRUCache creates an LRU holding at most maxEntries blobs.
// A non-positive size disables memoization.
func NewLRUCache(maxEntries int) Cache {
	c, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nopCache{}
	}
	return &LRUCache{lru: c}
}

func (c *LRUCache) Get(fingerprint string) ([]byte, bool) {
	return c.lru.Get(fingerprint)
}

func (c *LRUCache) Add(fingerprint string, blob []byte) {
	if len(blob) > memoMaxBlob {
		c.lru.Remove(fingerprint)
		return
	}
	c.lru.Add(fingerprint, blob)
}

func (c *LRUCache) Remove(fingerprint string) {
	c.lru.Remove(fingerprint)
}

func (c *LRUCache) Clear() {
	c.lru.Purge()
}

type nopCache struct{}

func (nopCache) Get(string) ([]byte, bool) { return nil, false }
func (nopCache) Add(string, []byte)        {}
func (nopCache) Remove(string)             {}
func (nopCache) Clear()                    {}
