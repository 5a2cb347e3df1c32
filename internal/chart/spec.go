// Package chart maps aggregated customer data to declarative chart
// descriptions. Specs serialise to Chart.js configurations; the geo view
// serialises to a deck.gl ScatterplotLayer description.
package chart

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/lamim/segmentiq/internal/metrics"
)

// Blues is the sequential palette used for categorical slices.
var Blues = []string{
	"rgb(247,251,255)", "rgb(222,235,247)", "rgb(198,219,239)",
	"rgb(158,202,225)", "rgb(107,174,214)", "rgb(66,146,198)",
	"rgb(33,113,181)", "rgb(8,81,156)", "rgb(8,48,107)",
}

// Colours for the churn split in grouped charts.
const (
	RetainedColor = "rgb(66,146,198)"
	ChurnedColor  = "rgb(239,85,59)"
)

// Spec is a Chart.js chart configuration plus an identifier and title.
type Spec struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Type    string         `json:"type"`
	Data    Data           `json:"data"`
	Options map[string]any `json:"options,omitempty"`
}

// Data is the Chart.js data block.
type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one Chart.js series.
type Dataset struct {
	Label           string    `json:"label,omitempty"`
	Data            []float64 `json:"data"`
	BackgroundColor any       `json:"backgroundColor,omitempty"`
	BorderColor     string    `json:"borderColor,omitempty"`
	Fill            bool      `json:"fill"`
	Tension         float64   `json:"tension,omitempty"`
}

// ChurnPie is a donut over churn flag categories.
func ChurnPie(dist []metrics.ChurnCount) Spec {
	labels := make([]string, 0, len(dist))
	values := make([]float64, 0, len(dist))
	colors := make([]string, 0, len(dist))
	for i, d := range dist {
		labels = append(labels, strconv.Itoa(d.ChurnValue))
		values = append(values, float64(d.Count))
		colors = append(colors, Blues[(i*4+4)%len(Blues)])
	}
	return Spec{
		ID:    "churnChart",
		Title: "Churn Value",
		Type:  "doughnut",
		Data: Data{
			Labels:   labels,
			Datasets: []Dataset{{Label: "Churn Value", Data: values, BackgroundColor: colors}},
		},
		Options: map[string]any{
			"cutout":              "50%",
			"maintainAspectRatio": false,
		},
	}
}

// TenureLine plots churn rate against tenure.
func TenureLine(points []metrics.TenurePoint) Spec {
	labels := make([]string, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		labels[i] = strconv.Itoa(p.TenureMonths)
		values[i] = p.ChurnRate
	}
	return Spec{
		ID:    "tenureChart",
		Title: "Churn Rate by Tenure in Months",
		Type:  "line",
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{{
				Label:       "Churn Value",
				Data:        values,
				BorderColor: Blues[6],
				Tension:     0.1,
			}},
		},
		Options: map[string]any{
			"maintainAspectRatio": false,
			"scales": map[string]any{
				"x": map[string]any{"title": map[string]any{"display": true, "text": "Tenure in Months"}},
				"y": map[string]any{"title": map[string]any{"display": true, "text": "Churn Value"}, "min": 0},
			},
		},
	}
}

// ContractHistogram groups customer counts by contract, one bar per churn flag.
func ContractHistogram(counts []metrics.ContractCount) Spec {
	labels := make([]string, len(counts))
	retained := make([]float64, len(counts))
	churned := make([]float64, len(counts))
	for i, c := range counts {
		labels[i] = c.Contract
		retained[i] = float64(c.Retained)
		churned[i] = float64(c.Churned)
	}
	return Spec{
		ID:    "contractChart",
		Title: "Customers by Contract",
		Type:  "bar",
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{
				{Label: "Churn Value 0", Data: retained, BackgroundColor: RetainedColor},
				{Label: "Churn Value 1", Data: churned, BackgroundColor: ChurnedColor},
			},
		},
		Options: map[string]any{
			"maintainAspectRatio": false,
			"scales": map[string]any{
				"x": map[string]any{"title": map[string]any{"display": true, "text": "Contract"}},
				"y": map[string]any{"title": map[string]any{"display": true, "text": "count"}, "beginAtZero": true},
			},
		},
	}
}

// GeoPoint is one city marker.
type GeoPoint struct {
	City         string      `json:"city"`
	Position     [2]float64  `json:"position"` // [longitude, latitude]
	Color        metrics.RGB `json:"color"`
	Radius       float64     `json:"radius"`
	ChurnRatePct float64     `json:"churn_rate"`
	TotalRevenue float64     `json:"total_revenue"`
}

// ViewState is the initial camera of the map.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
}

// GeoSpec describes a deck.gl scatterplot over a base map.
type GeoSpec struct {
	Layer    string     `json:"layer"`
	MapStyle string     `json:"map_style"`
	View     ViewState  `json:"initial_view_state"`
	Pickable bool       `json:"pickable"`
	Tooltip  string     `json:"tooltip"`
	Points   []GeoPoint `json:"data"`
}

// TooltipTemplate uses deck.gl {field} placeholders.
const TooltipTemplate = `<b>City:</b> {city}<br/><b>Churn Rate:</b> {churn_rate}%<br/><b>Total Revenue:</b> ${total_revenue}`

// DefaultZoom is the initial map zoom.
const DefaultZoom = 4

// GeoScatter places one marker per city at its mean coordinates, centred on
// the mean of the city centroids.
func GeoScatter(cities []metrics.CityStat, mapStyle string) GeoSpec {
	spec := GeoSpec{
		Layer:    "ScatterplotLayer",
		MapStyle: mapStyle,
		Pickable: true,
		Tooltip:  TooltipTemplate,
		View:     ViewState{Zoom: DefaultZoom},
		Points:   make([]GeoPoint, 0, len(cities)),
	}
	if len(cities) == 0 {
		return spec
	}

	lats := make([]float64, len(cities))
	lons := make([]float64, len(cities))
	for i, c := range cities {
		lats[i] = c.Latitude
		lons[i] = c.Longitude
		spec.Points = append(spec.Points, GeoPoint{
			City:         c.City,
			Position:     [2]float64{c.Longitude, c.Latitude},
			Color:        c.Color,
			Radius:       c.Radius,
			ChurnRatePct: c.ChurnRatePct,
			TotalRevenue: c.TotalRevenue,
		})
	}
	spec.View.Latitude = stat.Mean(lats, nil)
	spec.View.Longitude = stat.Mean(lons, nil)
	return spec
}

// Tooltip renders the tooltip text for a point without markup.
func Tooltip(p GeoPoint) string {
	return fmt.Sprintf("City: %s | Churn Rate: %s%% | Total Revenue: $%s",
		p.City,
		strconv.FormatFloat(p.ChurnRatePct, 'f', -1, 64),
		strconv.FormatFloat(p.TotalRevenue, 'f', -1, 64))
}
