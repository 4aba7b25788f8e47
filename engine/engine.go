package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/coveridge/tiercache/cachekey"
	"github.com/coveridge/tiercache/monitoring"
	"github.com/coveridge/tiercache/strategy"
	"github.com/coveridge/tiercache/tier"
)

// ErrUnknownStrategy rejects an explicit strategy override naming a category
// nothing was registered for.
var ErrUnknownStrategy = errors.New("unknown strategy category")

const (
	defaultOperationTimeout = 2 * time.Second
	defaultWarmingInterval  = 5 * time.Minute
	defaultOptimizeInterval = time.Hour
	defaultTopWarmKeys      = 50
	defaultTrackerCapacity  = 10000
)

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	// Monitor receives per-operation counters; nil disables export.
	Monitor *monitoring.CacheMonitor

	// OperationTimeout bounds every individual tier call so one slow medium
	// cannot stall a whole get or set.
	OperationTimeout time.Duration

	WarmingInterval  time.Duration
	OptimizeInterval time.Duration

	// TopWarmKeys is how many of the hottest tracked keys each warming pass
	// refreshes.
	TopWarmKeys int

	// TrackerCapacity bounds the per-key metadata map.
	TrackerCapacity int
}

// Engine is the multi-tier cache orchestrator. One instance is constructed at
// process start and shared by reference; it owns the strategy registry
// handle, the key tracker, and the two background schedulers.
type Engine struct {
	logger   *zap.SugaredLogger
	clock    clock.Clock
	registry *strategy.Registry
	tracker  *cachekey.Tracker
	monitor  *monitoring.CacheMonitor

	opTimeout        time.Duration
	warmingInterval  time.Duration
	optimizeInterval time.Duration
	topWarmKeys      int

	loadersMu sync.RWMutex
	loaders   map[string]Loader

	observersMu sync.RWMutex
	observers   []Observer

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(registry *strategy.Registry, logger *zap.SugaredLogger, opts Options) *Engine {
	return newEngineWithClock(registry, logger, opts, clock.New())
}

func newEngineWithClock(registry *strategy.Registry, logger *zap.SugaredLogger, opts Options, clk clock.Clock) *Engine {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = defaultOperationTimeout
	}
	if opts.WarmingInterval <= 0 {
		opts.WarmingInterval = defaultWarmingInterval
	}
	if opts.OptimizeInterval <= 0 {
		opts.OptimizeInterval = defaultOptimizeInterval
	}
	if opts.TopWarmKeys <= 0 {
		opts.TopWarmKeys = defaultTopWarmKeys
	}
	if opts.TrackerCapacity <= 0 {
		opts.TrackerCapacity = defaultTrackerCapacity
	}

	e := &Engine{
		logger:           logger,
		clock:            clk,
		registry:         registry,
		tracker:          cachekey.NewTrackerWithClock(opts.TrackerCapacity, clk),
		monitor:          opts.Monitor,
		opTimeout:        opts.OperationTimeout,
		warmingInterval:  opts.WarmingInterval,
		optimizeInterval: opts.OptimizeInterval,
		topWarmKeys:      opts.TopWarmKeys,
		loaders:          make(map[string]Loader),
		stop:             make(chan struct{}),
	}

	e.wg.Add(2)
	go e.warmingLoop()
	go e.optimizeLoop()
	return e
}

// Stop cancels the background schedulers and waits for them to drain.
// In-flight caller operations are unaffected.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
	e.wg.Wait()
}

// RegisterStrategy installs or replaces the strategy for a category.
func (e *Engine) RegisterStrategy(category cachekey.Category, s *strategy.Strategy) {
	e.registry.Register(category, s)
}

// Get reads key through its classified strategy, decoding the cached payload
// into dest. Returns false on a total miss; tier failures degrade to misses
// and never surface.
func (e *Engine) Get(ctx context.Context, key string, dest any) (bool, error) {
	return e.getAs(ctx, key, cachekey.Categorize(key), dest)
}

// GetWithStrategy overrides classification with an explicitly registered
// category.
func (e *Engine) GetWithStrategy(ctx context.Context, key string, category cachekey.Category, dest any) (bool, error) {
	if _, ok := e.registry.ResolveExact(category); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownStrategy, category)
	}
	return e.getAs(ctx, key, category, dest)
}

func (e *Engine) getAs(ctx context.Context, key string, category cachekey.Category, dest any) (bool, error) {
	s, ok := e.registry.Resolve(category)
	if !ok {
		e.logger.Warnw("No strategy registered for category", "category", category, "key", key)
		return false, nil
	}

	tiers := s.EnabledTiers()
	for i, t := range tiers {
		payload, found, err := e.tierGet(ctx, t, key)
		if err != nil {
			e.logger.Warnw("Tier read failed, treating as miss",
				"tier", t.Name, "strategy", category, "key", key, "error", err)
		}
		if err != nil || !found {
			t.RecordMiss()
			e.monitor.RecordMiss(string(category), t.Name)
			continue
		}

		t.RecordHit()
		e.monitor.RecordHit(string(category), t.Name)
		e.propagate(ctx, category, tiers[:i], key, payload)
		e.tracker.Touch(key, int64(len(payload)))

		if dest == nil {
			return true, nil
		}
		if err := json.Unmarshal(payload, dest); err != nil {
			return false, fmt.Errorf("failed to decode cached value for %q: %v", key, err)
		}
		return true, nil
	}
	return false, nil
}

// propagate copies a value found in a slower tier into every strictly faster
// tier, each with its own TTL, so the next read is served closer to the
// caller. Failures are logged and never fail the read that discovered the
// value.
func (e *Engine) propagate(ctx context.Context, category cachekey.Category, faster []*tier.Tier, key string, payload []byte) {
	for _, t := range faster {
		if err := e.tierSet(ctx, t, key, payload, t.TTL); err != nil {
			e.logger.Warnw("Propagation write failed",
				"tier", t.Name, "strategy", category, "key", key, "error", err)
		}
	}
}

// Set writes key to every enabled tier of its classified strategy. An
// explicit positive ttl applies everywhere; otherwise each tier keeps its own
// configured TTL. Per-tier failures are logged individually and do not fail
// the call.
func (e *Engine) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return e.setAs(ctx, key, cachekey.Categorize(key), value, ttl)
}

// SetWithStrategy overrides classification with an explicitly registered
// category.
func (e *Engine) SetWithStrategy(ctx context.Context, key string, category cachekey.Category, value any, ttl time.Duration) error {
	if _, ok := e.registry.ResolveExact(category); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStrategy, category)
	}
	return e.setAs(ctx, key, category, value, ttl)
}

func (e *Engine) setAs(ctx context.Context, key string, category cachekey.Category, value any, ttl time.Duration) error {
	s, ok := e.registry.Resolve(category)
	if !ok {
		return fmt.Errorf("%w: no strategy registered for %s", ErrUnknownStrategy, category)
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %v", key, err)
	}

	var wg sync.WaitGroup
	for _, t := range s.EnabledTiers() {
		wg.Add(1)
		go func(t *tier.Tier) {
			defer wg.Done()
			start := e.clock.Now()
			if err := e.tierSet(ctx, t, key, payload, t.EffectiveTTL(ttl)); err != nil {
				e.logger.Warnw("Tier write failed",
					"tier", t.Name, "strategy", category, "key", key, "error", err)
				return
			}
			elapsed := e.clock.Now().Sub(start)
			t.RecordSet(elapsed)
			e.monitor.RecordSet(string(category), t.Name, elapsed)
		}(t)
	}
	wg.Wait()

	e.tracker.Touch(key, int64(len(payload)))
	e.monitor.SetTrackedKeys(e.tracker.Len())
	return nil
}

// Tracker exposes the key metadata registry for inspection.
func (e *Engine) Tracker() *cachekey.Tracker { return e.tracker }

func (e *Engine) tierGet(ctx context.Context, t *tier.Tier, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()
	return t.Driver().Get(ctx, key)
}

func (e *Engine) tierSet(ctx context.Context, t *tier.Tier, key string, payload []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()
	return t.Driver().Set(ctx, key, payload, ttl)
}

func (e *Engine) tierDelete(ctx context.Context, t *tier.Tier, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()
	return t.Driver().Delete(ctx, key)
}

func (e *Engine) tierKeys(ctx context.Context, t *tier.Tier, pattern string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()
	return t.Driver().Keys(ctx, pattern)
}
