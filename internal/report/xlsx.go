package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/lamim/segmentiq/internal/analytics"
	"github.com/lamim/segmentiq/internal/segment"
)

// Sheet names of the workbook export.
const (
	SheetOverview = "Overview"
	SheetSegments = "Segments"
	SheetCities   = "Cities"
	SheetTenure   = "Tenure"
)

// WriteXLSX writes the snapshot as a workbook to w.
func WriteXLSX(s *analytics.Snapshot, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetOverview); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	overview := [][]interface{}{
		{"Metric", "Value"},
		{"Customers", s.Overview.TotalCustomers},
		{"Retention Rate (%)", s.Overview.RetentionRate},
		{"Avg Revenue ($)", s.Overview.AverageRevenue},
		{"At Risk", s.Overview.AtRiskCount},
	}
	if err := setRows(f, SheetOverview, overview); err != nil {
		return err
	}

	segments := [][]interface{}{{"Segment", "Customers"}}
	for _, name := range segment.Names {
		segments = append(segments, []interface{}{string(name), s.Segments.Get(name)})
	}
	segments = append(segments, []interface{}{"Champion Threshold ($)", s.Segments.ChampionThreshold})
	if err := newSheet(f, SheetSegments, segments); err != nil {
		return err
	}

	cities := [][]interface{}{{"City", "Latitude", "Longitude", "Customers", "Churn Rate (%)", "Total Revenue ($)"}}
	for _, c := range s.Cities {
		cities = append(cities, []interface{}{c.City, c.Latitude, c.Longitude, c.Customers, c.ChurnRatePct, c.TotalRevenue})
	}
	if err := newSheet(f, SheetCities, cities); err != nil {
		return err
	}

	tenure := [][]interface{}{{"Tenure in Months", "Churn Rate"}}
	for _, p := range s.TenureTrend {
		tenure = append(tenure, []interface{}{p.TenureMonths, p.ChurnRate})
	}
	if err := newSheet(f, SheetTenure, tenure); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// GenerateXLSX creates the workbook export in the output directory.
func (g *Generator) GenerateXLSX(s *analytics.Snapshot) error {
	// #nosec G301 - report directory is shared with the operator
	if err := os.MkdirAll(g.outputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	// #nosec G304 - path is built from the configured output directory
	out, err := os.Create(filepath.Join(g.outputDir, XLSXFile))
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	if err := WriteXLSX(s, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func newSheet(f *excelize.File, name string, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	return setRows(f, name, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to fill sheet %s: %w", sheet, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "F", 18); err != nil {
		return fmt.Errorf("failed to size sheet %s: %w", sheet, err)
	}
	return nil
}
