package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/coveridge/tiercache/cachekey"
	"github.com/coveridge/tiercache/tier"
)

// TierMetrics is one tier's operational snapshot within one strategy.
type TierMetrics struct {
	Strategy      string              `json:"strategy"`
	Tier          string              `json:"tier"`
	Kind          tier.Kind           `json:"kind"`
	Hits          int64               `json:"hits"`
	Misses        int64               `json:"misses"`
	HitRate       float64             `json:"hit_rate"`
	Entries       int64               `json:"entries"`
	AvgSetLatency time.Duration       `json:"avg_set_latency_ns"`
	TTL           time.Duration       `json:"ttl_ns"`
	Eviction      tier.EvictionPolicy `json:"eviction"`
}

// HitRateReport aggregates hit rates across every registered strategy.
// Overall is total hits over total lookups; ByTier keys are
// "<strategy>/<tier>".
type HitRateReport struct {
	Overall float64            `json:"overall"`
	Lookups int64              `json:"lookups"`
	ByTier  map[string]float64 `json:"by_tier"`
}

// Recommendation is one tuning suggestion derived from observed traffic.
type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Target   string `json:"target"`
	Message  string `json:"message"`
}

// expirable is implemented by drivers that can drop expired entries eagerly.
type expirable interface {
	CollectExpired() int
}

// Metrics snapshots every tier of every registered strategy, ordered by
// strategy then tier priority.
func (e *Engine) Metrics(ctx context.Context) []TierMetrics {
	strategies := e.registry.Snapshot()

	categories := make([]cachekey.Category, 0, len(strategies))
	for category := range strategies {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	var metrics []TierMetrics
	for _, category := range categories {
		for _, t := range strategies[category].EnabledTiers() {
			entries, err := t.Driver().Size(ctx)
			if err != nil {
				e.logger.Warnw("Tier size probe failed",
					"tier", t.Name, "strategy", category, "error", err)
				entries = -1
			}
			metrics = append(metrics, TierMetrics{
				Strategy:      string(category),
				Tier:          t.Name,
				Kind:          t.Kind,
				Hits:          t.Hits(),
				Misses:        t.Misses(),
				HitRate:       t.HitRate(),
				Entries:       entries,
				AvgSetLatency: t.AverageSetLatency(),
				TTL:           t.TTL,
				Eviction:      t.Eviction,
			})
		}
	}
	return metrics
}

// HitRates recomputes the report from live counters on every call.
func (e *Engine) HitRates(ctx context.Context) HitRateReport {
	report := HitRateReport{ByTier: make(map[string]float64)}

	var hits, lookups int64
	for category, s := range e.registry.Snapshot() {
		for _, t := range s.EnabledTiers() {
			hits += t.Hits()
			lookups += t.Hits() + t.Misses()
			report.ByTier[fmt.Sprintf("%s/%s", category, t.Name)] = t.HitRate()
		}
	}
	report.Lookups = lookups
	if lookups > 0 {
		report.Overall = float64(hits) / float64(lookups)
	}
	return report
}

const (
	overallHitRateFloor  = 0.70
	fastTierHitRateFloor = 0.60
	fastTierTTLCeiling   = time.Hour
)

// Recommendations derives tuning advice from the current counters. Tiers
// with no traffic yet produce no advice.
func (e *Engine) Recommendations(ctx context.Context) []Recommendation {
	var recommendations []Recommendation

	report := e.HitRates(ctx)
	if report.Lookups > 0 && report.Overall < overallHitRateFloor {
		recommendations = append(recommendations, Recommendation{
			Type:     "hit_rate",
			Priority: "high",
			Target:   "engine",
			Message: fmt.Sprintf("overall hit rate %.2f is below %.2f; review key patterns and TTLs",
				report.Overall, overallHitRateFloor),
		})
	}

	strategies := e.registry.Snapshot()
	categories := make([]cachekey.Category, 0, len(strategies))
	for category := range strategies {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	for _, category := range categories {
		for _, t := range strategies[category].EnabledTiers() {
			if t.Kind != tier.KindMemory {
				continue
			}
			target := fmt.Sprintf("%s/%s", category, t.Name)
			if t.Hits()+t.Misses() > 0 && t.HitRate() < fastTierHitRateFloor && t.Eviction != tier.EvictLFU {
				recommendations = append(recommendations, Recommendation{
					Type:     "eviction",
					Priority: "medium",
					Target:   target,
					Message: fmt.Sprintf("fast tier hit rate %.2f is below %.2f; consider switching eviction from %s to %s",
						t.HitRate(), fastTierHitRateFloor, t.Eviction, tier.EvictLFU),
				})
			}
			if t.TTL > fastTierTTLCeiling {
				recommendations = append(recommendations, Recommendation{
					Type:     "ttl",
					Priority: "low",
					Target:   target,
					Message: fmt.Sprintf("fast tier TTL %s exceeds %s; shorter TTLs keep the fast tier fresh",
						t.TTL, fastTierTTLCeiling),
				})
			}
		}
	}
	return recommendations
}

func (e *Engine) optimizeLoop() {
	defer e.wg.Done()
	ticker := e.clock.Ticker(e.optimizeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.optimize(context.Background())
		}
	}
}

// optimize runs one maintenance pass: collect expired entries from drivers
// that support it, refresh the exported gauges, and log outstanding advice.
func (e *Engine) optimize(ctx context.Context) {
	collected := 0
	seen := make(map[tier.Driver]bool)
	for _, s := range e.registry.Snapshot() {
		for _, t := range s.EnabledTiers() {
			driver := t.Driver()
			if seen[driver] {
				continue
			}
			seen[driver] = true
			if collector, ok := driver.(expirable); ok {
				collected += collector.CollectExpired()
			}
		}
	}

	for _, m := range e.Metrics(ctx) {
		if m.Entries >= 0 {
			e.monitor.SetTierEntries(m.Strategy, m.Tier, m.Entries)
		}
	}

	recommendations := e.Recommendations(ctx)
	e.logger.Infow("Cache optimization pass complete",
		"expired_collected", collected,
		"recommendations", len(recommendations))
	for _, r := range recommendations {
		e.logger.Infow("Cache tuning recommendation",
			"type", r.Type, "priority", r.Priority, "target", r.Target, "message", r.Message)
	}
}
