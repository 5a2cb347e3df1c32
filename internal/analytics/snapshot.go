// Package analytics bundles every value derived from one dataset generation
// and caches it until the dataset changes.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/lamim/segmentiq/internal/dataset"
	"github.com/lamim/segmentiq/internal/metrics"
	"github.com/lamim/segmentiq/internal/segment"
)

// Snapshot is the full set of derived data behind one dashboard render.
type Snapshot struct {
	Generation   uint64                  `json:"generation"`
	ComputedAt   time.Time               `json:"computed_at"`
	Overview     metrics.Overview        `json:"overview"`
	Segments     segment.Counts          `json:"segments"`
	TenureTrend  []metrics.TenurePoint   `json:"tenure_trend"`
	Contracts    []metrics.ContractCount `json:"contracts"`
	Churn        []metrics.ChurnCount    `json:"churn"`
	GeoAvailable bool                    `json:"geo_available"`
	Cities       []metrics.CityStat      `json:"cities,omitempty"`
}

// Build computes a snapshot from the table. City aggregates are only computed
// when the geo columns are present.
func Build(t *dataset.Table, generation uint64) *Snapshot {
	s := &Snapshot{
		Generation:   generation,
		ComputedAt:   time.Now(),
		Overview:     metrics.Summarize(t),
		Segments:     segment.Classify(t),
		TenureTrend:  metrics.TenureTrendPoints(t),
		Contracts:    metrics.ContractBreakdown(t),
		Churn:        metrics.ChurnDistribution(t),
		GeoAvailable: t != nil && t.HasGeoColumns(),
	}
	if s.GeoAvailable {
		s.Cities = metrics.CityAggregate(t)
	}
	return s
}

// TableSource yields the current table and its generation.
type TableSource interface {
	Current(ctx context.Context) (*dataset.Table, uint64)
}

// Cache recomputes the snapshot only when the source generation moves.
type Cache struct {
	src      TableSource
	onBuild  func(d time.Duration)
	mu       sync.Mutex
	snapshot *Snapshot
}

// NewCache creates a cache over src. onBuild, if non-nil, observes how long
// each recomputation took.
func NewCache(src TableSource, onBuild func(d time.Duration)) *Cache {
	return &Cache{src: src, onBuild: onBuild}
}

// Get returns the snapshot for the current generation.
func (c *Cache) Get(ctx context.Context) *Snapshot {
	table, gen := c.src.Current(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot != nil && c.snapshot.Generation == gen {
		return c.snapshot
	}

	start := time.Now()
	c.snapshot = Build(table, gen)
	if c.onBuild != nil {
		c.onBuild(time.Since(start))
	}
	return c.snapshot
}
