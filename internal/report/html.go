package report

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/lamim/segmentiq/internal/analytics"
	"github.com/lamim/segmentiq/internal/chart"
	"github.com/lamim/segmentiq/internal/segment"
)

// HTML renders a standalone report page with Chart.js charts.
func HTML(s *analytics.Snapshot) ([]byte, error) {
	specs := []chart.Spec{
		chart.ChurnPie(s.Churn),
		chart.TenureLine(s.TenureTrend),
		chart.ContractHistogram(s.Contracts),
	}

	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Customer Churn Report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: #f5f5f5;
            color: #333;
            line-height: 1.6;
            padding: 20px;
        }
        .container { max-width: 1200px; margin: 0 auto; }
        h1 { color: #2c3e50; margin-bottom: 10px; }
        h2 { color: #2c3e50; margin-bottom: 20px; padding-bottom: 10px; border-bottom: 2px solid #3498db; }
        .timestamp { color: #666; margin-bottom: 30px; }
        .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 20px; margin-bottom: 30px; }
        .card { background: white; padding: 20px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .card h3 { color: #666; font-size: 0.9em; text-transform: uppercase; margin-bottom: 10px; }
        .card .value { font-size: 2em; font-weight: bold; color: #2c3e50; }
        .section { margin-bottom: 40px; }
        .chart-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(450px, 1fr)); gap: 20px; }
        .chart-container { background: white; padding: 20px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .chart-wrapper { position: relative; height: 320px; }
        table { width: 100%; border-collapse: collapse; background: white; border-radius: 8px; overflow: hidden; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        th, td { padding: 12px; text-align: left; border-bottom: 1px solid #eee; }
        th { background: #2c3e50; color: white; font-weight: 600; }
        .warning { color: #e67e22; }
    </style>
</head>
<body>
<div class="container">
    <h1>Customer Churn Report</h1>
`)
	b.WriteString(fmt.Sprintf("    <p class=\"timestamp\">Generated: %s</p>\n", s.ComputedAt.Format("2006-01-02 15:04:05")))

	b.WriteString("    <div class=\"cards\">\n")
	writeCard(&b, "Customers", fmt.Sprintf("%d", s.Overview.TotalCustomers))
	writeCard(&b, "Retention Rate", FormatPercent(s.Overview.RetentionRate))
	writeCard(&b, "Avg Revenue", fmt.Sprintf("$%d", s.Overview.AverageRevenue))
	writeCard(&b, "At Risk", fmt.Sprintf("%d", s.Overview.AtRiskCount))
	b.WriteString("    </div>\n")

	b.WriteString("    <div class=\"section\">\n        <h2>Segments</h2>\n        <div class=\"cards\">\n")
	for _, name := range segment.Names {
		writeCard(&b, string(name), fmt.Sprintf("%d", s.Segments.Get(name)))
	}
	b.WriteString("        </div>\n    </div>\n")

	b.WriteString("    <div class=\"section\">\n        <h2>Charts</h2>\n        <div class=\"chart-grid\">\n")
	for _, spec := range specs {
		b.WriteString(fmt.Sprintf(`            <div class="chart-container"><h3>%s</h3><div class="chart-wrapper"><canvas id="%s"></canvas></div></div>`+"\n",
			html.EscapeString(spec.Title), spec.ID))
	}
	b.WriteString("        </div>\n    </div>\n")

	b.WriteString("    <div class=\"section\">\n        <h2>Cities</h2>\n")
	if s.GeoAvailable {
		b.WriteString("        <table>\n            <tr><th>City</th><th>Customers</th><th>Churn Rate</th><th>Total Revenue</th></tr>\n")
		for _, c := range s.Cities {
			b.WriteString(fmt.Sprintf("            <tr><td>%s</td><td>%d</td><td>%.1f%%</td><td>$%.2f</td></tr>\n",
				html.EscapeString(c.City), c.Customers, c.ChurnRatePct, c.TotalRevenue))
		}
		b.WriteString("        </table>\n")
	} else {
		b.WriteString("        <p class=\"warning\">Required columns missing</p>\n")
	}
	b.WriteString("    </div>\n</div>\n")

	scripts, err := chartScripts(specs)
	if err != nil {
		return nil, err
	}
	b.WriteString(scripts)
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String()), nil
}

// GenerateHTML creates an HTML report with charts
func (g *Generator) GenerateHTML(s *analytics.Snapshot) error {
	data, err := HTML(s)
	if err != nil {
		return err
	}
	return g.write(HTMLFile, data)
}

func writeCard(b *strings.Builder, title, value string) {
	b.WriteString(fmt.Sprintf(`        <div class="card"><h3>%s</h3><div class="value">%s</div></div>`+"\n",
		html.EscapeString(title), html.EscapeString(value)))
}

// chartScripts emits one Chart.js constructor per spec. json.Marshal escapes
// <, > and & so the payload is safe inside a script element.
func chartScripts(specs []chart.Spec) (string, error) {
	var b strings.Builder
	b.WriteString("<script>\n")
	for _, spec := range specs {
		payload, err := json.Marshal(spec)
		if err != nil {
			return "", fmt.Errorf("failed to encode chart %s: %w", spec.ID, err)
		}
		b.WriteString(fmt.Sprintf("new Chart(document.getElementById('%s'), %s);\n", spec.ID, payload))
	}
	b.WriteString("</script>\n")
	return b.String(), nil
}
