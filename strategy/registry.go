package strategy

import (
	"sync"

	"go.uber.org/zap"

	"github.com/coveridge/tiercache/cachekey"
)

// Registry maps key categories to strategies. Resolution runs on every cache
// operation while registration happens at startup or the rare dynamic
// registration call, so reads take the shared lock. Registration replaces a
// category's strategy wholesale.
type Registry struct {
	mu         sync.RWMutex
	logger     *zap.SugaredLogger
	strategies map[cachekey.Category]*Strategy
	fallback   cachekey.Category
}

func NewRegistry(logger *zap.SugaredLogger) *Registry {
	return &Registry{
		logger:     logger,
		strategies: make(map[cachekey.Category]*Strategy),
		fallback:   cachekey.CategoryAPIResponse,
	}
}

func (r *Registry) Register(category cachekey.Category, s *Strategy) {
	r.mu.Lock()
	_, replaced := r.strategies[category]
	r.strategies[category] = s
	r.mu.Unlock()

	r.logger.Infow("Registered cache strategy",
		"category", category,
		"tiers", len(s.Tiers()),
		"replaced", replaced)
}

// Resolve returns the strategy for a category, falling back to the generic
// API-response strategy so the category → strategy mapping is total.
func (r *Registry) Resolve(category cachekey.Category) (*Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.strategies[category]; ok {
		return s, true
	}
	s, ok := r.strategies[r.fallback]
	return s, ok
}

// ResolveExact returns the strategy registered for exactly this category,
// with no fallback. Callers overriding classification use it to surface
// typos instead of silently caching under the generic strategy.
func (r *Registry) ResolveExact(category cachekey.Category) (*Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[category]
	return s, ok
}

// Detect classifies the key and resolves its strategy in one step.
func (r *Registry) Detect(key string) (cachekey.Category, *Strategy, bool) {
	category := cachekey.Categorize(key)
	s, ok := r.Resolve(category)
	return category, s, ok
}

// Snapshot copies the current category → strategy mapping for iteration
// outside the lock.
func (r *Registry) Snapshot() map[cachekey.Category]*Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	copied := make(map[cachekey.Category]*Strategy, len(r.strategies))
	for category, s := range r.strategies {
		copied[category] = s
	}
	return copied
}
