package tier

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/coveridge/tiercache/utils/heap"
)

type memoryEntry struct {
	key   string
	value []byte

	// Expiry in unix nanoseconds. Checked lazily on access; the optimizer's
	// periodic pass sweeps what reads never touch.
	expiry int64

	lastReadAt int64
	readCount  int64

	// Position in the recency/insertion list. Nil under LFU.
	elem *list.Element
}

// MemoryDriver is the in-process tier: a bounded map whose victim selection
// honors the configured eviction policy. LRU and FIFO share one linked list
// (LRU refreshes positions on access, FIFO never does, so the back is always
// the right victim); LFU uses a min-heap keyed on read count.
type MemoryDriver struct {
	mu         sync.Mutex
	policy     EvictionPolicy
	maxEntries int64
	entries    map[string]*memoryEntry
	order      *list.List
	freq       *heap.MinHeap[*memoryEntry]
	clock      clock.Clock
}

func NewMemoryDriver(maxEntries int64, policy EvictionPolicy) *MemoryDriver {
	return NewMemoryDriverWithClock(maxEntries, policy, clock.New())
}

func NewMemoryDriverWithClock(maxEntries int64, policy EvictionPolicy, clk clock.Clock) *MemoryDriver {
	d := &MemoryDriver{
		policy:     policy,
		maxEntries: maxEntries,
		entries:    make(map[string]*memoryEntry),
		clock:      clk,
	}
	if policy == EvictLFU {
		d.freq = heap.NewMinHeap(func(a, b *memoryEntry) bool {
			if a.readCount != b.readCount {
				return a.readCount < b.readCount
			}
			if a.lastReadAt != b.lastReadAt {
				return a.lastReadAt < b.lastReadAt
			}
			return a.key < b.key
		})
	} else {
		d.order = list.New()
	}
	return d
}

func (d *MemoryDriver) Get(ctx context.Context, key string) ([]byte, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, exists := d.entries[key]
	if !exists {
		return nil, false, nil
	}

	now := d.clock.Now().UnixNano()
	if entry.expiry <= now {
		d.remove(entry)
		return nil, false, nil
	}

	entry.readCount++
	entry.lastReadAt = now
	switch d.policy {
	case EvictLRU:
		d.order.MoveToFront(entry.elem)
	case EvictLFU:
		d.freq.Update(entry)
	}
	return entry.value, true, nil
}

func (d *MemoryDriver) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now().UnixNano()
	if entry, exists := d.entries[key]; exists {
		entry.value = value
		entry.expiry = now + ttl.Nanoseconds()
		entry.readCount++
		entry.lastReadAt = now
		switch d.policy {
		case EvictLRU:
			d.order.MoveToFront(entry.elem)
		case EvictLFU:
			d.freq.Update(entry)
		}
		return nil
	}

	entry := &memoryEntry{
		key:        key,
		value:      value,
		expiry:     now + ttl.Nanoseconds(),
		lastReadAt: now,
		readCount:  1,
	}
	d.entries[key] = entry
	if d.policy == EvictLFU {
		d.freq.Push(entry)
	} else {
		entry.elem = d.order.PushFront(entry)
	}

	for d.maxEntries > 0 && int64(len(d.entries)) > d.maxEntries {
		d.evictOne()
	}
	return nil
}

func (d *MemoryDriver) Delete(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, exists := d.entries[key]
	if !exists {
		return false, nil
	}
	d.remove(entry)
	return true, nil
}

// Keys is a full scan; the in-process tier only knows its own local subset of
// the keyspace. Expired entries are dropped as they are encountered.
func (d *MemoryDriver) Keys(ctx context.Context, pattern string) ([]string, error) {
	matcher, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now().UnixNano()
	var keys []string
	var expired []*memoryEntry
	for key, entry := range d.entries {
		if entry.expiry <= now {
			expired = append(expired, entry)
			continue
		}
		if matcher.MatchString(key) {
			keys = append(keys, key)
		}
	}
	for _, entry := range expired {
		d.remove(entry)
	}
	return keys, nil
}

func (d *MemoryDriver) Size(ctx context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.entries)), nil
}

// CollectExpired sweeps entries whose TTL elapsed without a read touching
// them. Returns the number removed.
func (d *MemoryDriver) CollectExpired() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now().UnixNano()
	var expired []*memoryEntry
	for _, entry := range d.entries {
		if entry.expiry <= now {
			expired = append(expired, entry)
		}
	}
	for _, entry := range expired {
		d.remove(entry)
	}
	return len(expired)
}

func (d *MemoryDriver) remove(entry *memoryEntry) {
	delete(d.entries, entry.key)
	if d.policy == EvictLFU {
		d.freq.Remove(entry)
	} else {
		d.order.Remove(entry.elem)
	}
}

func (d *MemoryDriver) evictOne() {
	if d.policy == EvictLFU {
		entry, ok := d.freq.Pop()
		if !ok {
			return
		}
		delete(d.entries, entry.key)
		return
	}
	victim := d.order.Back()
	if victim == nil {
		return
	}
	d.remove(victim.Value.(*memoryEntry))
}
