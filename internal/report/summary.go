// Package report generates PDF, Markdown, JSON, HTML, and XLSX reports from
// an analytics snapshot.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lamim/segmentiq/internal/analytics"
	"github.com/lamim/segmentiq/internal/segment"
)

// Output file names inside the output directory.
const (
	MarkdownFile = "summary.md"
	JSONFile     = "summary.json"
	HTMLFile     = "summary.html"
	XLSXFile     = "segments.xlsx"
)

// Generator creates reports from snapshots
type Generator struct {
	pdfPath   string
	outputDir string
}

// NewGenerator creates a new report generator. The PDF goes to pdfPath; every
// other format goes to outputDir.
func NewGenerator(pdfPath, outputDir string) *Generator {
	return &Generator{
		pdfPath:   pdfPath,
		outputDir: outputDir,
	}
}

// PDFPath returns the fixed PDF location.
func (g *Generator) PDFPath() string { return g.pdfPath }

// OutputDir returns the directory for the other formats.
func (g *Generator) OutputDir() string { return g.outputDir }

// GenerateAll generates all report formats
func (g *Generator) GenerateAll(s *analytics.Snapshot) error {
	if _, err := g.GeneratePDF(s.Overview); err != nil {
		return fmt.Errorf("failed to generate PDF report: %w", err)
	}
	if err := g.GenerateMarkdown(s); err != nil {
		return fmt.Errorf("failed to generate markdown report: %w", err)
	}
	if err := g.GenerateJSON(s); err != nil {
		return fmt.Errorf("failed to generate JSON report: %w", err)
	}
	if err := g.GenerateHTML(s); err != nil {
		return fmt.Errorf("failed to generate HTML report: %w", err)
	}
	if err := g.GenerateXLSX(s); err != nil {
		return fmt.Errorf("failed to generate XLSX report: %w", err)
	}
	return nil
}

// Markdown renders the snapshot as a markdown summary.
func Markdown(s *analytics.Snapshot) []byte {
	var sb strings.Builder
	sb.WriteString("# Customer Churn Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", s.ComputedAt.Format("2006-01-02 15:04:05")))

	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Customers | %d |\n", s.Overview.TotalCustomers))
	sb.WriteString(fmt.Sprintf("| Retention Rate | %s |\n", FormatPercent(s.Overview.RetentionRate)))
	sb.WriteString(fmt.Sprintf("| Avg Revenue | $%d |\n", s.Overview.AverageRevenue))
	sb.WriteString(fmt.Sprintf("| At Risk | %d |\n\n", s.Overview.AtRiskCount))

	sb.WriteString("## Segments\n\n")
	sb.WriteString("| Segment | Customers |\n")
	sb.WriteString("|---------|-----------|\n")
	for _, name := range segment.Names {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", name, s.Segments.Get(name)))
	}
	sb.WriteString(fmt.Sprintf("\nChampions earn more than $%.2f (75th percentile of total revenue).\n\n",
		s.Segments.ChampionThreshold))

	sb.WriteString("## Contracts\n\n")
	sb.WriteString("| Contract | Retained | Churned |\n")
	sb.WriteString("|----------|----------|---------|\n")
	for _, c := range s.Contracts {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d |\n", markdownCell(c.Contract), c.Retained, c.Churned))
	}
	sb.WriteString("\n")

	sb.WriteString("## Cities\n\n")
	if !s.GeoAvailable {
		sb.WriteString("Required columns missing\n")
		return []byte(sb.String())
	}
	sb.WriteString("| City | Customers | Churn Rate | Total Revenue |\n")
	sb.WriteString("|------|-----------|------------|---------------|\n")
	for _, c := range s.Cities {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.1f%% | $%.2f |\n",
			markdownCell(c.City), c.Customers, c.ChurnRatePct, c.TotalRevenue))
	}
	return []byte(sb.String())
}

// markdownCell escapes a value for a table cell. Pipes would end the cell and
// newlines the row.
func markdownCell(v string) string {
	v = strings.ReplaceAll(v, "|", `\|`)
	return strings.Join(strings.Fields(v), " ")
}

// GenerateMarkdown creates a markdown summary report
func (g *Generator) GenerateMarkdown(s *analytics.Snapshot) error {
	return g.write(MarkdownFile, Markdown(s))
}

// JSON encodes the snapshot with a generation timestamp.
func JSON(s *analytics.Snapshot) ([]byte, error) {
	data := map[string]interface{}{
		"timestamp": time.Now(),
		"snapshot":  s,
	}
	return json.MarshalIndent(data, "", "  ")
}

// GenerateJSON creates a JSON report with raw data
func (g *Generator) GenerateJSON(s *analytics.Snapshot) error {
	jsonData, err := JSON(s)
	if err != nil {
		return err
	}
	return g.write(JSONFile, jsonData)
}

func (g *Generator) write(name string, data []byte) error {
	// #nosec G301 - report directory is shared with the operator
	if err := os.MkdirAll(g.outputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(g.outputDir, name)
	// #nosec G306 - 0640 allows owner/group to read, which is appropriate for report files
	return os.WriteFile(outputPath, data, 0640)
}
