package dataset

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleCSV = `Customer ID,City,Latitude,Longitude,Tenure in Months,Contract,Monthly Charge,Total Revenue,Churn Value
C-1,Los Angeles,34.05,-118.24,1,Month-to-Month,70.5,120.5,1
C-2,Los Angeles,34.07,-118.26,30,Two Year,20,2000,0
C-3,San Diego,32.72,-117.16,12,One Year,55.25,900,0
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRead_ParsesRows(t *testing.T) {
	table, err := Read(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", table.Len())
	}
	first := table.Rows()[0]
	if first.CustomerID != "C-1" || first.City != "Los Angeles" {
		t.Errorf("unexpected identity fields: %+v", first)
	}
	if first.TenureMonths != 1 || first.ChurnValue != 1 || !first.Churned() {
		t.Errorf("unexpected tenure/churn: %+v", first)
	}
	if first.TotalRevenue != 120.5 || first.MonthlyCharge != 70.5 {
		t.Errorf("unexpected billing: %+v", first)
	}
	if !table.HasGeoColumns() {
		t.Error("expected geo columns present")
	}
}

func TestRead_HeaderNormalisation(t *testing.T) {
	csv := "\ufeffchurn value ,TOTAL REVENUE,Tenure  in Months,contract\n0,10,3,Two Year\n"
	table, err := Read(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", table.Len())
	}
	if !table.HasColumns(ColChurnValue, ColTotalRevenue) {
		t.Error("expected normalised required columns to be present")
	}
	if table.HasGeoColumns() {
		t.Error("geo columns should be reported missing")
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr string
	}{
		{"missing required column", "Churn Value,Total Revenue,Contract\n1,10,Two Year\n", `required column "Tenure in Months" missing`},
		{"non binary churn", "Churn Value,Total Revenue,Tenure in Months,Contract\n2,10,3,Two Year\n", "churn flag must be 0 or 1"},
		{"negative tenure", "Churn Value,Total Revenue,Tenure in Months,Contract\n0,10,-1,Two Year\n", "tenure must be >= 0"},
		{"fractional tenure", "Churn Value,Total Revenue,Tenure in Months,Contract\n0,10,1.5,Two Year\n", "whole number"},
		{"bad revenue", "Churn Value,Total Revenue,Tenure in Months,Contract\n0,abc,1,Two Year\n", "line 2: Total Revenue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.csv))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestRead_Empty(t *testing.T) {
	if _, err := Read(strings.NewReader("")); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty for empty input, got %v", err)
	}
	header := "Churn Value,Total Revenue,Tenure in Months,Contract\n"
	if _, err := Read(strings.NewReader(header)); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty for header-only input, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	if err == nil {
		t.Fatal("expected error for missing dataset")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped not-exist error, got %v", err)
	}
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()

	m, err := LoadModel(filepath.Join(dir, "absent.pkl"))
	if err != nil || m != nil {
		t.Fatalf("expected nil model and nil error for absent file, got %v, %v", m, err)
	}

	path := writeFile(t, dir, "model.pkl", "abc")
	m, err = LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	if m.Size != 3 || string(m.Bytes()) != "abc" {
		t.Errorf("unexpected model: %+v", m)
	}
	// sha256("abc")
	if m.Digest != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("unexpected digest %s", m.Digest)
	}
}

func TestSource_OpenAndReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "customers.csv", sampleCSV)

	var loads []int
	src, err := Open(path, filepath.Join(dir, "model.pkl"),
		WithReloadHook(func(rows int, err error) { loads = append(loads, rows) }))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if src.Model() != nil {
		t.Error("expected model to be unavailable")
	}

	table, gen := src.Current(context.Background())
	if table.Len() != 3 || gen != 1 {
		t.Fatalf("expected 3 rows at generation 1, got %d at %d", table.Len(), gen)
	}

	// Unchanged file keeps the generation.
	if _, again := src.Current(context.Background()); again != 1 {
		t.Errorf("expected generation to stay 1, got %d", again)
	}

	extended := sampleCSV + "C-4,San Diego,32.70,-117.10,40,Two Year,80,5000,0\n"
	writeFile(t, dir, "customers.csv", extended)
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	table, gen = src.Current(context.Background())
	if table.Len() != 4 || gen != 2 {
		t.Errorf("expected reload to 4 rows at generation 2, got %d at %d", table.Len(), gen)
	}
	if len(loads) != 2 {
		t.Errorf("expected 2 load callbacks, got %d", len(loads))
	}
}

func TestSource_FailedReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "customers.csv", sampleCSV)

	src, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	writeFile(t, dir, "customers.csv", "not,a,dataset\n")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	table, gen := src.Current(context.Background())
	if table.Len() != 3 || gen != 1 {
		t.Errorf("expected previous table at generation 1, got %d rows at %d", table.Len(), gen)
	}
}

func TestSource_ReaderHook(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "customers.csv", sampleCSV)

	var seenSize int64
	_, err := Open(path, "", WithReaderHook(func(r io.Reader, size int64) io.Reader {
		seenSize = size
		return r
	}))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if seenSize != int64(len(sampleCSV)) {
		t.Errorf("expected hook to see size %d, got %d", len(sampleCSV), seenSize)
	}
}

func TestOpen_MissingDatasetIsFatal(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.csv"), ""); err == nil {
		t.Fatal("expected error when dataset is missing")
	}
}
