package research

import (
	"sync"
	"time"
)

// memoryEntry stores the remembered retry step for a host with a TTL.
type memoryEntry struct {
	step      int
	expiresAt time.Time
}

// BlockMemory remembers, per host, how many widened-delay retries the last
// capture needed before it got through. Later runs against the same host
// start at that step instead of being blocked again at step zero.
type BlockMemory struct {
	store sync.Map // host (string) -> *memoryEntry
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once
}

// NewBlockMemory creates a BlockMemory with the given TTL and starts a
// background goroutine that prunes expired entries every hour.
func NewBlockMemory(ttl time.Duration) *BlockMemory {
	m := &BlockMemory{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Step returns the remembered retry step for host, or 0.
func (m *BlockMemory) Step(host string) int {
	val, ok := m.store.Load(host)
	if !ok {
		return 0
	}
	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.store.Delete(host)
		return 0
	}
	return entry.step
}

// Remember records the step at which host let a capture through. Step 0
// clears the entry.
func (m *BlockMemory) Remember(host string, step int) {
	if step <= 0 {
		m.store.Delete(host)
		return
	}
	m.store.Store(host, &memoryEntry{
		step:      step,
		expiresAt: time.Now().Add(m.ttl),
	})
}

// Stop terminates the background cleanup goroutine.
func (m *BlockMemory) Stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *BlockMemory) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.prune(time.Now())
		}
	}
}

func (m *BlockMemory) prune(now time.Time) {
	m.store.Range(func(key, value any) bool {
		if now.After(value.(*memoryEntry).expiresAt) {
			m.store.Delete(key)
		}
		return true
	})
}
