package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/lamim/segmentiq/internal/metrics"
)

// PDFTitle is the first line of the PDF report.
const PDFTitle = "Customer Churn Report"

// Layout of the PDF, in points from the bottom-left corner of an A4 page.
const (
	pdfLeft     = 100.0
	pdfFontSize = 12.0
)

var pdfBaselines = [...]float64{750, 700, 670, 640}

// PDFLines returns the text lines of the PDF report in drawing order.
func PDFLines(o metrics.Overview) []string {
	return []string{
		PDFTitle,
		fmt.Sprintf("Customers: %d", o.TotalCustomers),
		"Retention Rate: " + FormatPercent(o.RetentionRate),
		fmt.Sprintf("Avg Revenue: $%d", o.AverageRevenue),
	}
}

// GeneratePDF writes the PDF report to the configured path and returns the
// bytes read back from it. The file is overwritten on each call.
func (g *Generator) GeneratePDF(o metrics.Overview) ([]byte, error) {
	if dir := filepath.Dir(g.pdfPath); dir != "." {
		// #nosec G301 - report directory is shared with the operator
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(false)
	pdf.SetTitle(PDFTitle, true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", pdfFontSize)

	_, pageHeight := pdf.GetPageSize()
	for i, line := range PDFLines(o) {
		pdf.Text(pdfLeft, pageHeight-pdfBaselines[i], line)
	}

	if err := pdf.OutputFileAndClose(g.pdfPath); err != nil {
		return nil, fmt.Errorf("failed to write PDF report: %w", err)
	}

	data, err := os.ReadFile(g.pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF report: %w", err)
	}
	return data, nil
}

// FormatPercent prints a percentage the way the dashboard shows it: 80.5 as
// "80.5%", 80 as "80.0%".
func FormatPercent(v float64) string {
	return formatNumber(v) + "%"
}

// formatNumber prints the shortest decimal that round-trips and keeps at least
// one fractional digit, so 80.5 stays "80.5" and 80 prints as "80.0".
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) || strings.ContainsRune(s, '.') {
		return s
	}
	return s + ".0"
}
