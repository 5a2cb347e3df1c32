// Package segment partitions customers into named, possibly overlapping
// cohorts using fixed predicates.
package segment

import (
	"math"
	"sort"

	"github.com/lamim/segmentiq/internal/dataset"
)

// Cohort thresholds.
const (
	ChampionQuantile     = 0.75 // revenue strictly above this quantile
	EmergingMaxTenure    = 6    // tenure strictly below
	InactiveMinTenure    = 24   // tenure strictly above
	VulnerableChurnValue = 1
)

// Name identifies a cohort.
type Name string

const (
	Champions  Name = "Champions"
	Emerging   Name = "Emerging"
	Vulnerable Name = "Vulnerable"
	Inactive   Name = "Inactive"
)

// Names lists the cohorts in display order.
var Names = []Name{Champions, Emerging, Vulnerable, Inactive}

// Counts holds membership counts for each cohort.
type Counts struct {
	Champions  int `json:"champions"`
	Emerging   int `json:"emerging"`
	Vulnerable int `json:"vulnerable"`
	Inactive   int `json:"inactive"`

	// ChampionThreshold is the revenue quantile the Champions predicate used.
	ChampionThreshold float64 `json:"champion_threshold"`
}

// Get returns the count for a cohort by name.
func (c Counts) Get(n Name) int {
	switch n {
	case Champions:
		return c.Champions
	case Emerging:
		return c.Emerging
	case Vulnerable:
		return c.Vulnerable
	case Inactive:
		return c.Inactive
	default:
		return 0
	}
}

// Classify evaluates every cohort predicate independently over the table.
func Classify(t *dataset.Table) Counts {
	if t == nil || t.Len() == 0 {
		return Counts{}
	}
	rows := t.Rows()

	revenue := make([]float64, len(rows))
	for i, c := range rows {
		revenue[i] = c.TotalRevenue
	}
	threshold := Quantile(revenue, ChampionQuantile)

	counts := Counts{ChampionThreshold: threshold}
	for _, c := range rows {
		if c.TotalRevenue > threshold {
			counts.Champions++
		}
		if c.TenureMonths < EmergingMaxTenure {
			counts.Emerging++
		}
		if c.ChurnValue == VulnerableChurnValue {
			counts.Vulnerable++
		}
		if c.TenureMonths > InactiveMinTenure {
			counts.Inactive++
		}
	}
	return counts
}

// Quantile returns the q-th quantile of values using linear interpolation
// between the two closest ranks: position (n-1)*q in the sorted data. values is
// not modified. An empty input yields NaN.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := float64(len(sorted)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
