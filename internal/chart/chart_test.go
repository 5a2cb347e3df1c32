package chart

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/lamim/segmentiq/internal/analytics"
	"github.com/lamim/segmentiq/internal/dataset"
	"github.com/lamim/segmentiq/internal/metrics"
)

func sampleSnapshot(withGeo bool) *analytics.Snapshot {
	rows := []dataset.Customer{
		{City: "Austin", Latitude: 30, Longitude: -98, TenureMonths: 1, Contract: "Month-to-Month", TotalRevenue: 50, ChurnValue: 1},
		{City: "Austin", Latitude: 31, Longitude: -97, TenureMonths: 1, Contract: "Month-to-Month", TotalRevenue: 70, ChurnValue: 0},
		{City: "Boston", Latitude: 42, Longitude: -71, TenureMonths: 40, Contract: "Two Year", TotalRevenue: 4000, ChurnValue: 0},
	}
	cols := []string(nil)
	if !withGeo {
		cols = dataset.RequiredColumns
	}
	return analytics.Build(dataset.NewTable(rows, cols), 1)
}

func TestChurnPie(t *testing.T) {
	spec := ChurnPie([]metrics.ChurnCount{{ChurnValue: 0, Count: 7}, {ChurnValue: 1, Count: 3}})

	if spec.Type != "doughnut" {
		t.Errorf("expected doughnut, got %s", spec.Type)
	}
	if spec.Options["cutout"] != "50%" {
		t.Errorf("expected 50%% hole, got %v", spec.Options["cutout"])
	}
	if got := strings.Join(spec.Data.Labels, ","); got != "0,1" {
		t.Errorf("unexpected labels %q", got)
	}
	if d := spec.Data.Datasets[0].Data; d[0] != 7 || d[1] != 3 {
		t.Errorf("unexpected values %v", d)
	}

	raw, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"type":"doughnut"`)) {
		t.Errorf("marshalled spec missing chart type: %s", raw)
	}
}

func TestTenureLine(t *testing.T) {
	spec := TenureLine([]metrics.TenurePoint{{TenureMonths: 1, ChurnRate: 0.5}, {TenureMonths: 40, ChurnRate: 0}})
	if spec.Type != "line" {
		t.Errorf("expected line, got %s", spec.Type)
	}
	if got := strings.Join(spec.Data.Labels, ","); got != "1,40" {
		t.Errorf("unexpected labels %q", got)
	}
	if d := spec.Data.Datasets[0].Data; d[0] != 0.5 || d[1] != 0 {
		t.Errorf("unexpected values %v", d)
	}
}

func TestContractHistogram(t *testing.T) {
	spec := ContractHistogram([]metrics.ContractCount{
		{Contract: "Month-to-Month", Retained: 1, Churned: 1},
		{Contract: "Two Year", Retained: 1},
	})
	if len(spec.Data.Datasets) != 2 {
		t.Fatalf("expected one dataset per churn flag, got %d", len(spec.Data.Datasets))
	}
	if spec.Data.Datasets[1].Data[0] != 1 || spec.Data.Datasets[1].Data[1] != 0 {
		t.Errorf("unexpected churned series %v", spec.Data.Datasets[1].Data)
	}
}

func TestGeoScatter(t *testing.T) {
	s := sampleSnapshot(true)
	spec := GeoScatter(s.Cities, "mapbox://styles/mapbox/light-v10")

	if spec.Layer != "ScatterplotLayer" || !spec.Pickable {
		t.Errorf("unexpected layer config %+v", spec)
	}
	if len(spec.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(spec.Points))
	}

	austin := spec.Points[0]
	if austin.City != "Austin" || austin.Position != [2]float64{-97.5, 30.5} {
		t.Errorf("unexpected austin point %+v", austin)
	}
	if austin.Color != metrics.LowChurnColor {
		t.Errorf("a 50%% churn rate is not above the threshold, got %v", austin.Color)
	}
	if austin.Radius != 10000 {
		t.Errorf("expected radius 10000, got %v", austin.Radius)
	}

	wantLat := (30.5 + 42) / 2
	if math.Abs(spec.View.Latitude-wantLat) > 1e-9 || spec.View.Zoom != DefaultZoom {
		t.Errorf("unexpected view %+v", spec.View)
	}

	tip := Tooltip(austin)
	for _, want := range []string{"City: Austin", "Churn Rate: 50%", "Total Revenue: $120"} {
		if !strings.Contains(tip, want) {
			t.Errorf("tooltip %q missing %q", tip, want)
		}
	}
}

func TestGeoScatter_Empty(t *testing.T) {
	spec := GeoScatter(nil, "style")
	if len(spec.Points) != 0 || spec.View.Latitude != 0 {
		t.Errorf("expected an empty spec, got %+v", spec)
	}
}

func TestRenderPNG(t *testing.T) {
	s := sampleSnapshot(true)
	pngMagic := []byte("\x89PNG")

	for _, name := range Names {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RenderPNG(name, s, &buf); err != nil {
				t.Fatalf("RenderPNG: %v", err)
			}
			if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
				t.Errorf("output is not a PNG")
			}
		})
	}
}

func TestRenderPNG_Errors(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPNG("pie", sampleSnapshot(true), &buf); !errors.Is(err, ErrUnknownChart) {
		t.Errorf("expected ErrUnknownChart, got %v", err)
	}
	if err := RenderPNG(NameGeo, sampleSnapshot(false), &buf); !errors.Is(err, ErrNoGeoData) {
		t.Errorf("expected ErrNoGeoData, got %v", err)
	}
}
