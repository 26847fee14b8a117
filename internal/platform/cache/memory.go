package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryOptions configures a Memory store.
type MemoryOptions struct {
	// Size caps the number of entries; least recently used entries go first.
	// Zero means unbounded.
	Size int
	// MaxTTL is a physical eviction ceiling applied by the backing LRU. Zero
	// disables it; logical expiry still applies per entry.
	MaxTTL time.Duration
	// Now overrides the clock used for logical expiry.
	Now func() time.Time
}

// Memory is a process-local Store. It is safe for concurrent use.
type Memory[V any] struct {
	mu   sync.Mutex
	lru  *expirable.LRU[string, Entry[V]]
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemory constructs an in-process store.
func NewMemory[V any](opts MemoryOptions) *Memory[V] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	size := opts.Size
	if size < 0 {
		size = 0
	}
	return &Memory[V]{
		lru:  expirable.NewLRU[string, Entry[V]](size, nil, opts.MaxTTL),
		now:  now,
		stop: make(chan struct{}),
	}
}

// Get returns the entry for key unless it is absent or logically expired.
// Expired entries are evicted on the way out.
func (m *Memory[V]) Get(_ context.Context, key string) (Entry[V], bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.lru.Get(key)
	if !ok {
		return Entry[V]{}, false, nil
	}
	if entry.Expired(m.now()) {
		m.lru.Remove(key)
		return Entry[V]{}, false, nil
	}
	return entry, true, nil
}

// Set stores entry under key, replacing any previous value.
func (m *Memory[V]) Set(_ context.Context, key string, entry Entry[V]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(key, entry)
	return nil
}

// Delete removes key.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Remove(key)
	return nil
}

// Clear removes every entry.
func (m *Memory[V]) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Purge()
	return nil
}

// Len reports the number of physically present entries, expired or not.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Sweep evicts logically expired entries and returns how many were removed.
func (m *Memory[V]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for _, key := range m.lru.Keys() {
		entry, ok := m.lru.Peek(key)
		if ok && entry.Expired(now) {
			m.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done or Close is called.
func (m *Memory[V]) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Close stops the sweeper.
func (m *Memory[V]) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

var _ Store[struct{}] = (*Memory[struct{}])(nil)
