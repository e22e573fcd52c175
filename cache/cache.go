// Package cache memoizes block verdicts by the content of the evaluated
// artifacts, so re-submitting the same screenshot and HTML skips decoding
// and OCR.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"
	"time"

	"github.com/use-agent/stealthshot/models"
)

// ttl is how long a verdict stays valid.
const ttl = time.Hour

// entry holds a cached verdict with its creation timestamp.
type entry struct {
	verdict   *models.Verdict
	createdAt time.Time
}

// Cache is a simple in-memory verdict cache.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict expired entries
// (older than 1 hour).
func New(maxEntries int) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
	}

	go c.cleanupLoop()
	return c
}

// Key derives a cache key from the bytes of the screenshot at
// screenshotPath and the html text. An unreadable or absent screenshot
// hashes as a fixed marker, which matches how the detector skips it.
func Key(screenshotPath, html string) string {
	h := sha256.New()
	if screenshotPath == "" || !hashFile(h, screenshotPath) {
		h.Write([]byte("no-screenshot"))
	}
	h.Write([]byte{0})
	h.Write([]byte(html))
	return hex.EncodeToString(h.Sum(nil))
}

func hashFile(w io.Writer, path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	if info, err := f.Stat(); err != nil || info.IsDir() {
		return false
	}
	w.Write([]byte("screenshot:"))
	_, err = io.Copy(w, f)
	return err == nil
}

// Get returns a copy of the cached verdict for key if it is younger than
// one hour.
func (c *Cache) Get(key string) (*models.Verdict, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > ttl {
		return nil, false
	}
	return clone(e.verdict), true
}

// Set stores a copy of v. If the cache is at capacity, a random entry is
// evicted to make room.
func (c *Cache) Set(key string, v *models.Verdict) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		verdict:   clone(v),
		createdAt: time.Now(),
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func clone(v *models.Verdict) *models.Verdict {
	cp := *v
	cp.Reasons = append([]string{}, v.Reasons...)
	return &cp
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.evictBefore(time.Now().Add(-ttl))
	}
}

func (c *Cache) evictBefore(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
