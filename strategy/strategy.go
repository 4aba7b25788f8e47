package strategy

import (
	"sort"
	"time"

	"github.com/coveridge/tiercache/tier"
)

// TriggerKind classifies why an invalidation rule fires. Rules are
// declarative: they document and drive tuning, while actual deletion always
// goes through the invalidation engine.
type TriggerKind string

const (
	TriggerTTL        TriggerKind = "ttl"
	TriggerEvent      TriggerKind = "event"
	TriggerDependency TriggerKind = "dependency"
)

// InvalidationRule binds a key pattern to its trigger. Immutable once
// attached to a strategy.
type InvalidationRule struct {
	Pattern     string        `json:"pattern"`
	Trigger     TriggerKind   `json:"trigger"`
	TTLOverride time.Duration `json:"ttl_override,omitempty"`
}

// WarmingPriority ranks how aggressively the scheduler pre-populates a spec's
// keys. Only critical and high run proactively.
type WarmingPriority string

const (
	WarmCritical WarmingPriority = "critical"
	WarmHigh     WarmingPriority = "high"
	WarmMedium   WarmingPriority = "medium"
	WarmLow      WarmingPriority = "low"
)

func (p WarmingPriority) Proactive() bool {
	return p == WarmCritical || p == WarmHigh
}

// WarmingSpec names a set of key globs and the registered loader that can
// produce their values ahead of caller demand.
type WarmingSpec struct {
	Name     string          `json:"name"`
	Patterns []string        `json:"patterns"`
	Priority WarmingPriority `json:"priority"`
	Loader   string          `json:"loader"`
	Enabled  bool            `json:"enabled"`
}

// Strategy is the policy bundle for one key category: its tiers in probe
// order plus the invalidation and warming policy attached to them.
type Strategy struct {
	tiers        []*tier.Tier
	invalidation []InvalidationRule
	warming      []WarmingSpec
}

func New(tiers []*tier.Tier) *Strategy {
	sorted := append([]*tier.Tier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &Strategy{tiers: sorted}
}

func (s *Strategy) WithInvalidation(rules ...InvalidationRule) *Strategy {
	s.invalidation = append(s.invalidation, rules...)
	return s
}

func (s *Strategy) WithWarming(specs ...WarmingSpec) *Strategy {
	s.warming = append(s.warming, specs...)
	return s
}

// Tiers returns every tier in ascending priority order.
func (s *Strategy) Tiers() []*tier.Tier { return s.tiers }

// EnabledTiers returns the tiers the orchestrator actually probes, fastest
// first.
func (s *Strategy) EnabledTiers() []*tier.Tier {
	enabled := make([]*tier.Tier, 0, len(s.tiers))
	for _, t := range s.tiers {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}
	return enabled
}

func (s *Strategy) InvalidationRules() []InvalidationRule { return s.invalidation }

func (s *Strategy) WarmingSpecs() []WarmingSpec { return s.warming }
