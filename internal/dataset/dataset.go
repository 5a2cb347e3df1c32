// Package dataset loads the cleaned customer churn table and the optional
// scoring model artifact.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Column headers as they appear in the cleaned dataset.
const (
	ColCustomerID    = "Customer ID"
	ColCity          = "City"
	ColLatitude      = "Latitude"
	ColLongitude     = "Longitude"
	ColTenure        = "Tenure in Months"
	ColMonthlyCharge = "Monthly Charge"
	ColTotalRevenue  = "Total Revenue"
	ColContract      = "Contract"
	ColChurnValue    = "Churn Value"
)

// RequiredColumns must be present for the table to load at all.
var RequiredColumns = []string{ColChurnValue, ColTotalRevenue, ColTenure, ColContract}

// GeoColumns gate the geo view; their absence only disables that view.
var GeoColumns = []string{ColLatitude, ColLongitude, ColCity}

// ErrEmpty is returned when the file has a header but no customer rows.
var ErrEmpty = errors.New("dataset has no customer rows")

// Customer is one row of the dataset.
type Customer struct {
	CustomerID    string  `json:"customer_id,omitempty"`
	City          string  `json:"city,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	TenureMonths  int     `json:"tenure_months"`
	MonthlyCharge float64 `json:"monthly_charge"`
	TotalRevenue  float64 `json:"total_revenue"`
	Contract      string  `json:"contract"`
	ChurnValue    int     `json:"churn_value"`
}

// Churned reports whether the churn flag is set.
func (c Customer) Churned() bool { return c.ChurnValue == 1 }

// Table is an immutable in-memory view of the dataset.
type Table struct {
	rows    []Customer
	columns map[string]bool
}

// NewTable builds a table from already parsed rows. columns lists the headers
// considered present; pass nil to mark every known column present.
func NewTable(rows []Customer, columns []string) *Table {
	if columns == nil {
		columns = []string{ColCustomerID, ColCity, ColLatitude, ColLongitude, ColTenure,
			ColMonthlyCharge, ColTotalRevenue, ColContract, ColChurnValue}
	}
	t := &Table{
		rows:    make([]Customer, len(rows)),
		columns: make(map[string]bool, len(columns)),
	}
	copy(t.rows, rows)
	for _, c := range columns {
		t.columns[normalizeHeader(c)] = true
	}
	return t
}

// Len returns the number of customer rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the customer rows. Callers must not modify the returned slice.
func (t *Table) Rows() []Customer { return t.rows }

// HasColumns reports whether every named column was present in the header.
func (t *Table) HasColumns(names ...string) bool {
	for _, n := range names {
		if !t.columns[normalizeHeader(n)] {
			return false
		}
	}
	return true
}

// HasGeoColumns reports whether the geo view can be rendered.
func (t *Table) HasGeoColumns() bool { return t.HasColumns(GeoColumns...) }

// Load reads the CSV at path.
func Load(path string) (*Table, error) {
	// #nosec G304 - dataset path comes from operator configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Read(f)
}

// Read parses a dataset from r. The first record is the header.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	headers := normalizeHeaders(header)

	for _, col := range RequiredColumns {
		if _, ok := headers[normalizeHeader(col)]; !ok {
			return nil, fmt.Errorf("required column %q missing", col)
		}
	}

	idx := func(col string) int {
		if i, ok := headers[normalizeHeader(col)]; ok {
			return i
		}
		return -1
	}
	var (
		iID      = idx(ColCustomerID)
		iCity    = idx(ColCity)
		iLat     = idx(ColLatitude)
		iLon     = idx(ColLongitude)
		iTenure  = idx(ColTenure)
		iMonthly = idx(ColMonthlyCharge)
		iRevenue = idx(ColTotalRevenue)
		iContr   = idx(ColContract)
		iChurn   = idx(ColChurnValue)
	)

	var rows []Customer
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}

		var c Customer
		c.CustomerID = getValue(record, iID)
		c.City = getValue(record, iCity)
		c.Contract = getValue(record, iContr)

		if c.Latitude, err = parseOptionalFloat(record, iLat); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, ColLatitude, err)
		}
		if c.Longitude, err = parseOptionalFloat(record, iLon); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, ColLongitude, err)
		}
		if c.MonthlyCharge, err = parseOptionalFloat(record, iMonthly); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, ColMonthlyCharge, err)
		}
		if c.TotalRevenue, err = parseFloat(getValue(record, iRevenue)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, ColTotalRevenue, err)
		}
		if c.TenureMonths, err = parseTenure(getValue(record, iTenure)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, ColTenure, err)
		}
		if c.ChurnValue, err = parseChurn(getValue(record, iChurn)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, ColChurnValue, err)
		}
		rows = append(rows, c)
	}

	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	t := &Table{rows: rows, columns: make(map[string]bool, len(headers))}
	for h := range headers {
		t.columns[h] = true
	}
	return t, nil
}

func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return v, nil
}

func parseOptionalFloat(record []string, idx int) (float64, error) {
	raw := getValue(record, idx)
	if raw == "" {
		return 0, nil
	}
	return parseFloat(raw)
}

func parseTenure(raw string) (int, error) {
	v, err := parseFloat(raw)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("tenure must be >= 0, got %v", v)
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("tenure must be a whole number of months, got %v", v)
	}
	return int(v), nil
}

func parseChurn(raw string) (int, error) {
	v, err := parseFloat(raw)
	if err != nil {
		return 0, err
	}
	switch v {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	default:
		return 0, fmt.Errorf("churn flag must be 0 or 1, got %q", raw)
	}
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, exists := result[key]; !exists {
			result[key] = i
		}
	}
	return result
}

func normalizeHeader(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

func getValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
