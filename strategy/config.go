package strategy

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/coveridge/tiercache/tier"
)

// TierConfig is the declarative (yaml/json) form of one tier. Durations are
// strings ("30m", "2h") so the same shape works in config files and the admin
// API.
type TierConfig struct {
	Name       string `yaml:"name" json:"name"`
	Kind       string `yaml:"kind" json:"kind"`
	TTL        string `yaml:"ttl" json:"ttl"`
	MaxEntries int64  `yaml:"max_entries" json:"max_entries"`
	Eviction   string `yaml:"eviction" json:"eviction"`
	Priority   int    `yaml:"priority" json:"priority"`
	Disabled   bool   `yaml:"disabled" json:"disabled"`
}

type WarmingConfig struct {
	Name     string   `yaml:"name" json:"name"`
	Patterns []string `yaml:"patterns" json:"patterns"`
	Priority string   `yaml:"priority" json:"priority"`
	Loader   string   `yaml:"loader" json:"loader"`
	Enabled  bool     `yaml:"enabled" json:"enabled"`
}

type InvalidationConfig struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Trigger     string `yaml:"trigger" json:"trigger"`
	TTLOverride string `yaml:"ttl_override" json:"ttl_override,omitempty"`
}

// Config declares a whole strategy.
type Config struct {
	Tiers        []TierConfig         `yaml:"tiers" json:"tiers"`
	Warming      []WarmingConfig      `yaml:"warming" json:"warming,omitempty"`
	Invalidation []InvalidationConfig `yaml:"invalidation" json:"invalidation,omitempty"`
}

// Drivers supplies the runtime pieces a declarative config cannot express.
type Drivers struct {
	Remote tier.Driver
	Edge   tier.Driver
	Clock  clock.Clock
}

// Build materializes a declared strategy against the available drivers.
func Build(cfg Config, deps Drivers) (*Strategy, error) {
	if len(cfg.Tiers) == 0 {
		return nil, fmt.Errorf("strategy declares no tiers")
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}

	tiers := make([]*tier.Tier, 0, len(cfg.Tiers))
	for i, tc := range cfg.Tiers {
		ttl, err := time.ParseDuration(tc.TTL)
		if err != nil {
			return nil, fmt.Errorf("tier %d (%s): bad ttl %q: %v", i, tc.Name, tc.TTL, err)
		}

		eviction, err := parseEviction(tc.Eviction)
		if err != nil {
			return nil, fmt.Errorf("tier %d (%s): %v", i, tc.Name, err)
		}

		config := tier.Config{
			Name:       tc.Name,
			TTL:        ttl,
			MaxEntries: tc.MaxEntries,
			Eviction:   eviction,
			Enabled:    !tc.Disabled,
			Priority:   tc.Priority,
		}

		var driver tier.Driver
		switch tier.Kind(tc.Kind) {
		case tier.KindMemory:
			config.Kind = tier.KindMemory
			driver = tier.NewMemoryDriverWithClock(tc.MaxEntries, eviction, clk)
		case tier.KindRemote:
			if deps.Remote == nil {
				return nil, fmt.Errorf("tier %d (%s): remote tier declared but no remote store is configured", i, tc.Name)
			}
			config.Kind = tier.KindRemote
			driver = deps.Remote
		case tier.KindEdge:
			config.Kind = tier.KindEdge
			driver = deps.Edge
			if driver == nil {
				driver = tier.NewEdgeDriver()
			}
		default:
			return nil, fmt.Errorf("tier %d (%s): unknown kind %q", i, tc.Name, tc.Kind)
		}

		tiers = append(tiers, tier.New(config, driver))
	}

	s := New(tiers)
	for _, wc := range cfg.Warming {
		s = s.WithWarming(WarmingSpec{
			Name:     wc.Name,
			Patterns: wc.Patterns,
			Priority: WarmingPriority(wc.Priority),
			Loader:   wc.Loader,
			Enabled:  wc.Enabled,
		})
	}
	for _, ic := range cfg.Invalidation {
		rule := InvalidationRule{
			Pattern: ic.Pattern,
			Trigger: TriggerKind(ic.Trigger),
		}
		if ic.TTLOverride != "" {
			override, err := time.ParseDuration(ic.TTLOverride)
			if err != nil {
				return nil, fmt.Errorf("invalidation rule %q: bad ttl_override: %v", ic.Pattern, err)
			}
			rule.TTLOverride = override
		}
		s = s.WithInvalidation(rule)
	}
	return s, nil
}

func parseEviction(name string) (tier.EvictionPolicy, error) {
	switch tier.EvictionPolicy(name) {
	case tier.EvictLRU, tier.EvictLFU, tier.EvictFIFO:
		return tier.EvictionPolicy(name), nil
	case "":
		return tier.EvictLRU, nil
	default:
		return "", fmt.Errorf("unknown eviction policy %q", name)
	}
}
