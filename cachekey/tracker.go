package cachekey

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/coveridge/tiercache/utils/array"
)

// Info is the per-key metadata the engine keeps for every distinct key it has
// seen: what the key is, how big its payload is, and how hot it runs. The
// warming scheduler ranks keys by AccessCount to decide what to re-warm.
type Info struct {
	Key          string    `json:"key"`
	Category     Category  `json:"category"`
	Pattern      string    `json:"pattern"`
	SizeBytes    int64     `json:"size_bytes"`
	AccessCount  int64     `json:"access_count"`
	LastAccessed time.Time `json:"last_accessed"`
	Dependencies []string  `json:"dependencies,omitempty"`
}

// Tracker is a bounded registry of key metadata. Capacity is enforced with
// least-recently-touched eviction so memory stays predictable no matter how
// many distinct keys pass through the cache.
type Tracker struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	clock    clock.Clock
}

func NewTracker(capacity int) *Tracker {
	return NewTrackerWithClock(capacity, clock.New())
}

func NewTrackerWithClock(capacity int, clk clock.Clock) *Tracker {
	if capacity <= 0 {
		capacity = 1
	}
	return &Tracker{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		clock:    clk,
	}
}

// Touch records one access to key, creating the tracking entry on first sight.
// A non-positive size leaves the previous size estimate untouched.
func (t *Tracker) Touch(key string, size int64) *Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if elem, ok := t.entries[key]; ok {
		info := elem.Value.(*Info)
		info.AccessCount++
		info.LastAccessed = now
		if size > 0 {
			info.SizeBytes = size
		}
		t.order.MoveToFront(elem)
		return snapshot(info)
	}

	info := &Info{
		Key:          key,
		Category:     Categorize(key),
		Pattern:      ExtractPattern(key),
		SizeBytes:    size,
		AccessCount:  1,
		LastAccessed: now,
	}
	t.entries[key] = t.order.PushFront(info)

	for t.order.Len() > t.capacity {
		oldest := t.order.Back()
		t.order.Remove(oldest)
		delete(t.entries, oldest.Value.(*Info).Key)
	}
	return snapshot(info)
}

// Lookup returns the tracking entry for key without counting an access.
func (t *Tracker) Lookup(key string) (*Info, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elem, ok := t.entries[key]
	if !ok {
		return nil, false
	}
	return snapshot(elem.Value.(*Info)), true
}

// AddDependency links key to a dependent key so dependency-triggered
// invalidation rules can be documented against tracked state.
func (t *Tracker) AddDependency(key string, dependsOn string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elem, ok := t.entries[key]
	if !ok {
		return
	}
	info := elem.Value.(*Info)
	if array.Contains(info.Dependencies, dependsOn) {
		return
	}
	info.Dependencies = append(info.Dependencies, dependsOn)
}

// Remove drops the tracking entry for key, typically after invalidation.
func (t *Tracker) Remove(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	elem, ok := t.entries[key]
	if !ok {
		return false
	}
	t.order.Remove(elem)
	delete(t.entries, key)
	return true
}

// TopByFrequency returns up to n tracked keys ordered by access count
// descending, most recently touched first among ties.
func (t *Tracker) TopByFrequency(n int) []*Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	infos := make([]*Info, 0, len(t.entries))
	for _, elem := range t.entries {
		infos = append(infos, snapshot(elem.Value.(*Info)))
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].AccessCount != infos[j].AccessCount {
			return infos[i].AccessCount > infos[j].AccessCount
		}
		return infos[i].LastAccessed.After(infos[j].LastAccessed)
	})
	if n < len(infos) {
		infos = infos[:n]
	}
	return infos
}

// Keys returns every tracked key matching the given compiled matcher.
func (t *Tracker) Keys(match func(string) bool) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var keys []string
	for key := range t.entries {
		if match(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func snapshot(info *Info) *Info {
	copied := *info
	if info.Dependencies != nil {
		copied.Dependencies = append([]string(nil), info.Dependencies...)
	}
	return &copied
}
