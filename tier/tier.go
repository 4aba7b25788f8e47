package tier

import (
	"context"
	"sync/atomic"
	"time"
)

// Kind tags the physical medium behind a tier. An unimplemented medium is a
// visible variant (KindEdge with the no-op driver) rather than a nil field.
type Kind string

const (
	// KindMemory is an in-process bounded map.
	KindMemory Kind = "memory"

	// KindRemote is a networked key-value store with native expiring keys.
	KindRemote Kind = "remote"

	// KindEdge is a CDN/edge cache. Ships as a no-op stub until an edge
	// integration is configured.
	KindEdge Kind = "edge"
)

// EvictionPolicy selects the data structure a capacity-bounded memory tier
// uses to pick a victim when full.
type EvictionPolicy string

const (
	EvictLRU  EvictionPolicy = "lru"
	EvictLFU  EvictionPolicy = "lfu"
	EvictFIFO EvictionPolicy = "fifo"
)

// Config describes one tier inside a strategy.
type Config struct {
	Name       string         `yaml:"name" json:"name"`
	Kind       Kind           `yaml:"kind" json:"kind"`
	TTL        time.Duration  `yaml:"ttl" json:"ttl"`
	MaxEntries int64          `yaml:"max_entries" json:"max_entries"`
	Eviction   EvictionPolicy `yaml:"eviction" json:"eviction"`
	Enabled    bool           `yaml:"enabled" json:"enabled"`

	// Priority orders tiers within a strategy; lower means faster and is
	// probed first.
	Priority int `yaml:"priority" json:"priority"`
}

// Driver is the uniform read/write/delete contract over one storage medium.
// A miss is (nil, false, nil); errors are reserved for medium failures.
type Driver interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)

	// Keys enumerates stored keys matching a glob pattern. Media that cannot
	// enumerate (edge) return an empty slice.
	Keys(ctx context.Context, pattern string) ([]string, error)

	Size(ctx context.Context) (int64, error)
}

// Tier binds a driver into a strategy together with its cumulative counters.
// Counters are atomics: approximate consistency under concurrent traffic is
// acceptable, torn state is not.
type Tier struct {
	Config

	driver Driver

	hits         atomic.Int64
	misses       atomic.Int64
	sets         atomic.Int64
	setDurations atomic.Int64 // nanoseconds
}

func New(config Config, driver Driver) *Tier {
	return &Tier{Config: config, driver: driver}
}

func (t *Tier) Driver() Driver { return t.driver }

func (t *Tier) RecordHit()  { t.hits.Add(1) }
func (t *Tier) RecordMiss() { t.misses.Add(1) }

func (t *Tier) RecordSet(elapsed time.Duration) {
	t.sets.Add(1)
	t.setDurations.Add(elapsed.Nanoseconds())
}

func (t *Tier) Hits() int64   { return t.hits.Load() }
func (t *Tier) Misses() int64 { return t.misses.Load() }

func (t *Tier) HitRate() float64 {
	hits := t.hits.Load()
	total := hits + t.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// AverageSetLatency reports mean write latency across every recorded set.
func (t *Tier) AverageSetLatency() time.Duration {
	sets := t.sets.Load()
	if sets == 0 {
		return 0
	}
	return time.Duration(t.setDurations.Load() / sets)
}

// EffectiveTTL resolves the TTL a write to this tier should carry: the
// caller's explicit TTL when given, the tier's own otherwise.
func (t *Tier) EffectiveTTL(explicit time.Duration) time.Duration {
	if explicit > 0 {
		return explicit
	}
	return t.TTL
}
