// Package metrics computes summary statistics and grouped aggregates over the
// customer table.
package metrics

import (
	"iter"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lamim/segmentiq/internal/dataset"
)

// Overview holds the headline numbers shown on the dashboard and in reports.
type Overview struct {
	TotalCustomers int     `json:"total_customers"`
	RetentionRate  float64 `json:"retention_rate"`  // percent, 2 decimals
	AverageRevenue int64   `json:"average_revenue"` // mean Total Revenue, whole currency units
	AtRiskCount    int     `json:"at_risk_count"`
}

// Summarize computes every Overview field in one pass over the table.
func Summarize(t *dataset.Table) Overview {
	return Overview{
		TotalCustomers: TotalCount(t),
		RetentionRate:  RetentionRate(t),
		AverageRevenue: AverageRevenue(t),
		AtRiskCount:    AtRiskCount(t),
	}
}

// TotalCount returns the number of customers.
func TotalCount(t *dataset.Table) int {
	if t == nil {
		return 0
	}
	return t.Len()
}

// RetentionRate returns (1 - mean churn) as a percentage rounded to 2 decimals.
// An empty table yields 0.
func RetentionRate(t *dataset.Table) float64 {
	churn := churnValues(t)
	if len(churn) == 0 {
		return 0
	}
	return round(100*(1-stat.Mean(churn, nil)), 2)
}

// AverageRevenue returns mean Total Revenue rounded to the nearest integer.
func AverageRevenue(t *dataset.Table) int64 {
	if TotalCount(t) == 0 {
		return 0
	}
	revenue := make([]float64, 0, t.Len())
	for _, c := range t.Rows() {
		revenue = append(revenue, c.TotalRevenue)
	}
	return int64(round(stat.Mean(revenue, nil), 0))
}

// AtRiskCount returns the sum of churn flags.
func AtRiskCount(t *dataset.Table) int {
	if t == nil {
		return 0
	}
	n := 0
	for _, c := range t.Rows() {
		n += c.ChurnValue
	}
	return n
}

// TenurePoint is the mean churn flag for one tenure value.
type TenurePoint struct {
	TenureMonths int     `json:"tenure_months"`
	ChurnRate    float64 `json:"churn_rate"`
}

// TenureTrendPoints groups by tenure and returns mean churn per tenure,
// ordered by tenure ascending.
func TenureTrendPoints(t *dataset.Table) []TenurePoint {
	if t == nil {
		return nil
	}
	type acc struct{ churned, total int }
	groups := make(map[int]*acc)
	for _, c := range t.Rows() {
		g, ok := groups[c.TenureMonths]
		if !ok {
			g = &acc{}
			groups[c.TenureMonths] = g
		}
		g.churned += c.ChurnValue
		g.total++
	}

	points := make([]TenurePoint, 0, len(groups))
	for tenure, g := range groups {
		points = append(points, TenurePoint{
			TenureMonths: tenure,
			ChurnRate:    float64(g.churned) / float64(g.total),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].TenureMonths < points[j].TenureMonths
	})
	return points
}

// TenureTrend yields (tenure, churn rate) pairs in ascending tenure order. The
// sequence is finite and may be ranged over any number of times.
func TenureTrend(t *dataset.Table) iter.Seq2[int, float64] {
	points := TenureTrendPoints(t)
	return func(yield func(int, float64) bool) {
		for _, p := range points {
			if !yield(p.TenureMonths, p.ChurnRate) {
				return
			}
		}
	}
}

// RGB is a fill colour for map markers.
type RGB [3]uint8

// Marker colours for the geo view.
var (
	HighChurnColor = RGB{255, 80, 80}
	LowChurnColor  = RGB{0, 150, 255}
)

// HighChurnThreshold is the churn rate above which a city is drawn in
// HighChurnColor. A rate equal to the threshold stays LowChurnColor.
const HighChurnThreshold = 0.5

// RadiusPerPercent converts a churn percentage into a marker radius in metres.
const RadiusPerPercent = 200.0

// CityStat is the per-city aggregate backing the geo view.
type CityStat struct {
	City         string  `json:"city"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ChurnRate    float64 `json:"churn_rate"`     // mean churn flag, 0..1
	ChurnRatePct float64 `json:"churn_rate_pct"` // ChurnRate * 100
	TotalRevenue float64 `json:"total_revenue"`
	Customers    int     `json:"customers"`
	Color        RGB     `json:"color"`
	Radius       float64 `json:"radius"`
}

// ColorFor maps a churn rate (0..1) to a marker colour.
func ColorFor(churnRate float64) RGB {
	if churnRate > HighChurnThreshold {
		return HighChurnColor
	}
	return LowChurnColor
}

// RadiusFor maps a churn rate (0..1) to a marker radius. It is linear and
// deliberately unclamped.
func RadiusFor(churnRate float64) float64 {
	return churnRate * 100 * RadiusPerPercent
}

// CityAggregate groups by City. The caller must check HasGeoColumns first;
// rows with an empty City are skipped. Results are sorted by city name.
func CityAggregate(t *dataset.Table) []CityStat {
	if t == nil {
		return nil
	}
	type acc struct {
		lat, lon, revenue []float64
		churned           int
	}
	groups := make(map[string]*acc)
	for _, c := range t.Rows() {
		if c.City == "" {
			continue
		}
		g, ok := groups[c.City]
		if !ok {
			g = &acc{}
			groups[c.City] = g
		}
		g.lat = append(g.lat, c.Latitude)
		g.lon = append(g.lon, c.Longitude)
		g.revenue = append(g.revenue, c.TotalRevenue)
		g.churned += c.ChurnValue
	}

	stats := make([]CityStat, 0, len(groups))
	for city, g := range groups {
		n := len(g.lat)
		rate := float64(g.churned) / float64(n)
		stats = append(stats, CityStat{
			City:         city,
			Latitude:     stat.Mean(g.lat, nil),
			Longitude:    stat.Mean(g.lon, nil),
			ChurnRate:    rate,
			ChurnRatePct: rate * 100,
			TotalRevenue: sum(g.revenue),
			Customers:    n,
			Color:        ColorFor(rate),
			Radius:       RadiusFor(rate),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].City < stats[j].City })
	return stats
}

// ContractCount splits one contract type's customers by churn flag.
type ContractCount struct {
	Contract string `json:"contract"`
	Retained int    `json:"retained"`
	Churned  int    `json:"churned"`
}

// ContractBreakdown counts customers per contract type and churn flag.
// Contracts appear in first-seen order.
func ContractBreakdown(t *dataset.Table) []ContractCount {
	if t == nil {
		return nil
	}
	index := make(map[string]int)
	var out []ContractCount
	for _, c := range t.Rows() {
		i, ok := index[c.Contract]
		if !ok {
			i = len(out)
			index[c.Contract] = i
			out = append(out, ContractCount{Contract: c.Contract})
		}
		if c.Churned() {
			out[i].Churned++
		} else {
			out[i].Retained++
		}
	}
	return out
}

// ChurnCount is the number of customers carrying one churn flag value.
type ChurnCount struct {
	ChurnValue int `json:"churn_value"`
	Count      int `json:"count"`
}

// ChurnDistribution counts customers per churn flag value, omitting values
// with no customers.
func ChurnDistribution(t *dataset.Table) []ChurnCount {
	var counts [2]int
	if t != nil {
		for _, c := range t.Rows() {
			counts[c.ChurnValue]++
		}
	}
	var out []ChurnCount
	for v, n := range counts {
		if n > 0 {
			out = append(out, ChurnCount{ChurnValue: v, Count: n})
		}
	}
	return out
}

func churnValues(t *dataset.Table) []float64 {
	if t == nil {
		return nil
	}
	values := make([]float64, 0, t.Len())
	for _, c := range t.Rows() {
		values = append(values, float64(c.ChurnValue))
	}
	return values
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// round rounds half to even at the given number of decimals.
func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.RoundToEven(v*p) / p
}
