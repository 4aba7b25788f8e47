package strategy

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/coveridge/tiercache/cachekey"
	"github.com/coveridge/tiercache/tier"
)

// DefaultFastTierEntries is the total in-process entry budget split across
// the built-in strategies.
const DefaultFastTierEntries = 10000

// BuiltinDeps carries the shared pieces every built-in strategy binds to: the
// networked store behind each durable tier, an optional edge driver, and the
// clock for the in-process tiers.
type BuiltinDeps struct {
	Remote tier.Driver
	Edge   tier.Driver
	Clock  clock.Clock

	// FastTierEntries is the total fast-tier budget; zero means
	// DefaultFastTierEntries.
	FastTierEntries int64
}

type builtinProfile struct {
	category   cachekey.Category
	fastTTL    time.Duration
	fastShare  float64
	eviction   tier.EvictionPolicy
	durableTTL time.Duration
	edge       bool
}

// Budget shares reflect observed traffic mix: generic API responses dominate,
// static assets are few but long-lived.
var builtinProfiles = []builtinProfile{
	{cachekey.CategoryUserData, 1800 * time.Second, 0.30, tier.EvictLRU, 3600 * time.Second, false},
	{cachekey.CategoryAnalytics, 300 * time.Second, 0.20, tier.EvictLFU, 900 * time.Second, false},
	{cachekey.CategoryAPIResponse, 600 * time.Second, 0.40, tier.EvictLRU, 1800 * time.Second, false},
	{cachekey.CategoryStatic, 7200 * time.Second, 0.10, tier.EvictFIFO, 86400 * time.Second, true},
}

// RegisterBuiltins installs the four pre-configured category strategies.
// Computed keys intentionally have no dedicated strategy and resolve through
// the generic API-response fallback.
func RegisterBuiltins(r *Registry, deps BuiltinDeps) {
	budget := deps.FastTierEntries
	if budget <= 0 {
		budget = DefaultFastTierEntries
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	edge := deps.Edge
	if edge == nil {
		edge = tier.NewEdgeDriver()
	}

	for _, profile := range builtinProfiles {
		fast := tier.New(tier.Config{
			Name:       "memory",
			Kind:       tier.KindMemory,
			TTL:        profile.fastTTL,
			MaxEntries: int64(float64(budget) * profile.fastShare),
			Eviction:   profile.eviction,
			Enabled:    true,
			Priority:   1,
		}, tier.NewMemoryDriverWithClock(int64(float64(budget)*profile.fastShare), profile.eviction, clk))

		durable := tier.New(tier.Config{
			Name:     "valkey",
			Kind:     tier.KindRemote,
			TTL:      profile.durableTTL,
			Enabled:  deps.Remote != nil,
			Priority: 2,
		}, deps.Remote)

		tiers := []*tier.Tier{fast, durable}
		if profile.edge {
			tiers = append(tiers, tier.New(tier.Config{
				Name:     "edge",
				Kind:     tier.KindEdge,
				TTL:      profile.durableTTL,
				Enabled:  true,
				Priority: 3,
			}, edge))
		}

		s := New(tiers).WithInvalidation(builtinInvalidation(profile.category)...)
		s = s.WithWarming(builtinWarming(profile.category)...)
		r.Register(profile.category, s)
	}
}

func builtinInvalidation(category cachekey.Category) []InvalidationRule {
	switch category {
	case cachekey.CategoryUserData:
		return []InvalidationRule{{Pattern: "user:*", Trigger: TriggerEvent}}
	case cachekey.CategoryAnalytics:
		return []InvalidationRule{{Pattern: "analytics:*", Trigger: TriggerTTL, TTLOverride: 900 * time.Second}}
	case cachekey.CategoryStatic:
		return []InvalidationRule{{Pattern: "static:*", Trigger: TriggerEvent}}
	default:
		return []InvalidationRule{{Pattern: "*", Trigger: TriggerTTL}}
	}
}

// Built-in warming specs ship disabled; operators enable them once the named
// loader is registered with the engine.
func builtinWarming(category cachekey.Category) []WarmingSpec {
	switch category {
	case cachekey.CategoryUserData:
		return []WarmingSpec{{
			Name:     "active-users",
			Patterns: []string{"user:*"},
			Priority: WarmHigh,
			Loader:   "user_loader",
		}}
	case cachekey.CategoryAnalytics:
		return []WarmingSpec{{
			Name:     "dashboards",
			Patterns: []string{"analytics:dashboard"},
			Priority: WarmCritical,
			Loader:   "analytics_loader",
		}}
	default:
		return nil
	}
}
