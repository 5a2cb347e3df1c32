package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/lamim/segmentiq/internal/analytics"
	"github.com/lamim/segmentiq/internal/metrics"
)

// Names of the charts that can be rendered as images.
const (
	NameChurn    = "churn"
	NameTenure   = "tenure"
	NameContract = "contract"
	NameGeo      = "geo"
)

// Names lists the renderable charts.
var Names = []string{NameChurn, NameTenure, NameContract, NameGeo}

// ErrUnknownChart is returned for a name not in Names.
var ErrUnknownChart = errors.New("unknown chart")

// ErrNoGeoData is returned when the geo chart is requested for a snapshot
// without geo columns.
var ErrNoGeoData = errors.New("geo columns not available")

// Image dimensions.
const (
	ImageWidth  = 8 * vg.Inch
	ImageHeight = 5 * vg.Inch
)

// geoRadiusScale converts map radius units to glyph points.
const geoRadiusScale = 1000

var (
	retainedRGBA = color.RGBA{R: 66, G: 146, B: 198, A: 255}
	churnedRGBA  = color.RGBA{R: 239, G: 85, B: 59, A: 255}
)

// RenderPNG draws the named chart for the snapshot and writes a PNG to w.
func RenderPNG(name string, s *analytics.Snapshot, w io.Writer) error {
	var (
		p   *plot.Plot
		err error
	)
	switch name {
	case NameChurn:
		p, err = churnPlot(s.Churn)
	case NameTenure:
		p, err = tenurePlot(s.TenureTrend)
	case NameContract:
		p, err = contractPlot(s.Contracts)
	case NameGeo:
		if !s.GeoAvailable {
			return ErrNoGeoData
		}
		p, err = geoPlot(s.Cities)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}
	if err != nil {
		return fmt.Errorf("build %s chart: %w", name, err)
	}

	wt, err := p.WriterTo(ImageWidth, ImageHeight, "png")
	if err != nil {
		return fmt.Errorf("encode %s chart: %w", name, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write %s chart: %w", name, err)
	}
	return nil
}

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = x
	p.Y.Label.Text = y
	return p
}

func churnPlot(dist []metrics.ChurnCount) (*plot.Plot, error) {
	p := newPlot("Churn Value", "Churn Value", "count")
	values := make(plotter.Values, len(dist))
	labels := make([]string, len(dist))
	for i, d := range dist {
		values[i] = float64(d.Count)
		labels[i] = strconv.Itoa(d.ChurnValue)
	}
	if len(values) == 0 {
		return p, nil
	}

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, err
	}
	bars.Color = retainedRGBA
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)
	return p, nil
}

func tenurePlot(points []metrics.TenurePoint) (*plot.Plot, error) {
	p := newPlot("Churn Rate by Tenure in Months", "Tenure in Months", "Churn Value")
	if len(points) == 0 {
		return p, nil
	}
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(pt.TenureMonths)
		xys[i].Y = pt.ChurnRate
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.Color = retainedRGBA
	line.Width = vg.Points(2)
	p.Add(plotter.NewGrid(), line)
	p.Y.Min = 0
	return p, nil
}

func contractPlot(counts []metrics.ContractCount) (*plot.Plot, error) {
	p := newPlot("Customers by Contract", "Contract", "count")
	if len(counts) == 0 {
		return p, nil
	}
	retained := make(plotter.Values, len(counts))
	churned := make(plotter.Values, len(counts))
	labels := make([]string, len(counts))
	for i, c := range counts {
		retained[i] = float64(c.Retained)
		churned[i] = float64(c.Churned)
		labels[i] = c.Contract
	}

	width := vg.Points(24)
	r, err := plotter.NewBarChart(retained, width)
	if err != nil {
		return nil, err
	}
	r.Color = retainedRGBA
	r.LineStyle.Width = vg.Length(0)
	r.Offset = -width / 2

	c, err := plotter.NewBarChart(churned, width)
	if err != nil {
		return nil, err
	}
	c.Color = churnedRGBA
	c.LineStyle.Width = vg.Length(0)
	c.Offset = width / 2

	p.Add(r, c)
	p.Legend.Add("Churn Value 0", r)
	p.Legend.Add("Churn Value 1", c)
	p.Legend.Top = true
	p.NominalX(labels...)
	return p, nil
}

func geoPlot(cities []metrics.CityStat) (*plot.Plot, error) {
	p := newPlot("Customer Churn by City", "Longitude", "Latitude")
	if len(cities) == 0 {
		return p, nil
	}
	xys := make(plotter.XYs, len(cities))
	for i, c := range cities {
		xys[i].X = c.Longitude
		xys[i].Y = c.Latitude
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c := cities[i]
		return draw.GlyphStyle{
			Color:  color.RGBA{R: c.Color[0], G: c.Color[1], B: c.Color[2], A: 180},
			Radius: vg.Points(c.Radius / geoRadiusScale),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(plotter.NewGrid(), scatter)
	return p, nil
}
