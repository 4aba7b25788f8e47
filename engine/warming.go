package engine

import (
	"context"

	"github.com/coveridge/tiercache/cachekey"
	"github.com/coveridge/tiercache/tier"
)

// Loader produces the source-of-truth value for a cache key during warming.
type Loader interface {
	Load(ctx context.Context, key string) (any, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, key string) (any, error)

func (f LoaderFunc) Load(ctx context.Context, key string) (any, error) { return f(ctx, key) }

// RegisterLoader makes a named loader available to warming specs.
func (e *Engine) RegisterLoader(name string, loader Loader) {
	e.loadersMu.Lock()
	defer e.loadersMu.Unlock()
	e.loaders[name] = loader
}

func (e *Engine) loader(name string) Loader {
	e.loadersMu.RLock()
	defer e.loadersMu.RUnlock()
	return e.loaders[name]
}

// WarmCache triggers one warming pass immediately, outside the schedule.
func (e *Engine) WarmCache(ctx context.Context) int {
	return e.warm(ctx)
}

func (e *Engine) warmingLoop() {
	defer e.wg.Done()
	ticker := e.clock.Ticker(e.warmingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.warm(context.Background())
		}
	}
}

// warm runs one pass: proactive specs first (critical and high priority with
// a registered loader), then a refresh of the hottest tracked keys. Loader
// failures skip the key and never abort the pass.
func (e *Engine) warm(ctx context.Context) int {
	warmed := 0

	for category, s := range e.registry.Snapshot() {
		for _, spec := range s.WarmingSpecs() {
			if !spec.Enabled || !spec.Priority.Proactive() {
				continue
			}
			loader := e.loader(spec.Loader)
			if loader == nil {
				e.logger.Warnw("Warming loader not registered",
					"strategy", category, "spec", spec.Name, "loader", spec.Loader)
				continue
			}
			for _, pattern := range spec.Patterns {
				for _, key := range e.expandPattern(pattern) {
					value, err := loader.Load(ctx, key)
					if err != nil {
						e.logger.Warnw("Warming loader failed",
							"strategy", category, "spec", spec.Name, "key", key, "error", err)
						continue
					}
					if err := e.setAs(ctx, key, category, value, 0); err != nil {
						e.logger.Warnw("Warming write failed",
							"strategy", category, "key", key, "error", err)
						continue
					}
					warmed++
				}
			}
		}
	}

	for _, info := range e.tracker.TopByFrequency(e.topWarmKeys) {
		if e.refresh(ctx, info) {
			warmed++
		}
	}

	e.monitor.RecordWarmedKeys(warmed)
	e.logger.Infow("Cache warming pass complete", "keys", warmed)
	return warmed
}

// expandPattern resolves a warming glob to concrete keys using the access
// tracker; keys never seen by the engine cannot be expanded. A literal
// pattern is its own expansion.
func (e *Engine) expandPattern(pattern string) []string {
	if !tier.HasWildcard(pattern) {
		return []string{pattern}
	}
	matcher, err := tier.CompilePattern(pattern)
	if err != nil {
		e.logger.Warnw("Invalid warming pattern", "pattern", pattern, "error", err)
		return nil
	}
	return e.tracker.Keys(matcher.MatchString)
}

// refresh re-reads one hot key so read propagation pulls it back into the
// fast tiers. On a total miss it falls back to the strategy's enabled
// loaders to repopulate from source.
func (e *Engine) refresh(ctx context.Context, info *cachekey.Info) bool {
	s, ok := e.registry.Resolve(info.Category)
	if !ok {
		return false
	}

	found, err := e.getAs(ctx, info.Key, info.Category, nil)
	if err != nil {
		e.logger.Warnw("Warming refresh failed", "key", info.Key, "error", err)
		return false
	}
	if found {
		return true
	}

	for _, spec := range s.WarmingSpecs() {
		if !spec.Enabled {
			continue
		}
		loader := e.loader(spec.Loader)
		if loader == nil {
			continue
		}
		value, err := loader.Load(ctx, info.Key)
		if err != nil {
			e.logger.Warnw("Warming loader failed",
				"spec", spec.Name, "key", info.Key, "error", err)
			continue
		}
		if err := e.setAs(ctx, info.Key, info.Category, value, 0); err == nil {
			return true
		}
	}
	return false
}
