package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coveridge/tiercache/tier"
)

// InvalidationEvent describes one completed invalidation pass.
type InvalidationEvent struct {
	ID      string    `json:"id"`
	Pattern string    `json:"pattern"`
	Reason  string    `json:"reason"`
	Removed int       `json:"removed"`
	At      time.Time `json:"at"`
}

// Observer receives invalidation events. Callbacks run synchronously on the
// invalidating goroutine, so observers must not block.
type Observer interface {
	CacheInvalidated(event InvalidationEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(event InvalidationEvent)

func (f ObserverFunc) CacheInvalidated(event InvalidationEvent) { f(event) }

// Subscribe registers an observer for invalidation events.
func (e *Engine) Subscribe(observer Observer) {
	e.observersMu.Lock()
	defer e.observersMu.Unlock()
	e.observers = append(e.observers, observer)
}

func (e *Engine) notifyInvalidated(event InvalidationEvent) {
	e.observersMu.RLock()
	observers := append([]Observer(nil), e.observers...)
	e.observersMu.RUnlock()

	for _, observer := range observers {
		observer.CacheInvalidated(event)
	}
}

// Invalidate removes every entry matching pattern from every enabled tier of
// every registered strategy and reports how many tier entries were removed.
// The pattern is validated before anything is deleted; a literal key skips
// enumeration entirely. Per-tier failures are logged and skipped so one
// unreachable medium cannot veto the rest.
func (e *Engine) Invalidate(ctx context.Context, pattern, reason string) (int, error) {
	if err := tier.ValidatePattern(pattern); err != nil {
		return 0, err
	}

	strategies := e.registry.Snapshot()

	keys := make(map[string]struct{})
	if !tier.HasWildcard(pattern) {
		keys[pattern] = struct{}{}
	} else {
		for category, s := range strategies {
			for _, t := range s.EnabledTiers() {
				matched, err := e.tierKeys(ctx, t, pattern)
				if err != nil {
					e.logger.Warnw("Tier key enumeration failed",
						"tier", t.Name, "strategy", category, "pattern", pattern, "error", err)
					continue
				}
				for _, key := range matched {
					keys[key] = struct{}{}
				}
			}
		}
	}

	removed := 0
	for key := range keys {
		for category, s := range strategies {
			for _, t := range s.EnabledTiers() {
				deleted, err := e.tierDelete(ctx, t, key)
				if err != nil {
					e.logger.Warnw("Tier delete failed",
						"tier", t.Name, "strategy", category, "key", key, "error", err)
					continue
				}
				if deleted {
					removed++
				}
			}
		}
		e.tracker.Remove(key)
	}

	e.monitor.RecordInvalidation(removed)
	e.monitor.SetTrackedKeys(e.tracker.Len())

	event := InvalidationEvent{
		ID:      uuid.NewString(),
		Pattern: pattern,
		Reason:  reason,
		Removed: removed,
		At:      e.clock.Now(),
	}
	e.notifyInvalidated(event)

	e.logger.Infow("Cache invalidated",
		"pattern", pattern, "reason", reason, "removed", removed, "keys", len(keys))
	return removed, nil
}
