package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
[server]
addr = "127.0.0.1:9000"
read_header_timeout = "5s"

[data]
path = "fixtures/customers.csv"
model_path = "fixtures/model.pkl"

[report]
pdf_path = "out/report.pdf"
output_dir = "./out"

[auth]
username = "analyst"
password = "s3cret"

[logging]
level = "debug"
format = "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("expected addr 127.0.0.1:9000, got %s", cfg.Server.Addr)
	}
	if cfg.Server.ReadHeaderTimeoutDuration() != 5*time.Second {
		t.Errorf("expected 5s header timeout, got %v", cfg.Server.ReadHeaderTimeoutDuration())
	}
	if cfg.Data.Path != "fixtures/customers.csv" {
		t.Errorf("expected data path fixtures/customers.csv, got %s", cfg.Data.Path)
	}
	if cfg.Report.PDFPath != "out/report.pdf" {
		t.Errorf("expected pdf path out/report.pdf, got %s", cfg.Report.PDFPath)
	}
	if cfg.Auth.Username != "analyst" || cfg.Auth.Password != "s3cret" {
		t.Errorf("unexpected credentials %q/%q", cfg.Auth.Username, cfg.Auth.Password)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected json log format, got %s", cfg.Logging.Format)
	}
	if cfg.Map.Style != defaultMapStyle {
		t.Errorf("expected default map style, got %s", cfg.Map.Style)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	configPath := writeConfig(t, `
[server]
addr = ":8080"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Data.Path != "data/cleaned_customer_churn.csv" {
		t.Errorf("expected default data path, got %s", cfg.Data.Path)
	}
	if cfg.Data.ModelPath != "data/churn_model.pkl" {
		t.Errorf("expected default model path, got %s", cfg.Data.ModelPath)
	}
	if cfg.Report.PDFPath != "report.pdf" {
		t.Errorf("expected default pdf path report.pdf, got %s", cfg.Report.PDFPath)
	}
	if cfg.Auth.Username != "admin" || cfg.Auth.Password != "1234" {
		t.Errorf("expected default credentials, got %q/%q", cfg.Auth.Username, cfg.Auth.Password)
	}
	if cfg.Map.TokenEnv != "MAPBOX_API_KEY" {
		t.Errorf("expected default token env, got %s", cfg.Map.TokenEnv)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("unexpected logging defaults %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("expected defaults for missing file, got %v", err)
	}
	if cfg.Server.Addr != defaultAddr {
		t.Errorf("expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestLoad_InvalidTOMLError(t *testing.T) {
	configPath := writeConfig(t, `this is not valid toml [[[`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid TOML, got nil")
	}
}

func TestLoad_PartialCredentials(t *testing.T) {
	configPath := writeConfig(t, `
[auth]
username = "only-user"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for missing password, got nil")
	}
	if err.Error() != "auth requires both username and password" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	configPath := writeConfig(t, `
[logging]
format = "xml"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected error for invalid log format, got nil")
	}
}

func TestLoad_TraversalRejected(t *testing.T) {
	configPath := writeConfig(t, `
[data]
path = "../../etc/passwd"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected error for traversal path, got nil")
	}
	if _, err := Load("../outside.toml"); err == nil {
		t.Fatal("expected error for traversal config path, got nil")
	}
}

func TestSave_LoadRoundtrip(t *testing.T) {
	original := Default()
	original.Server.Addr = ":7000"
	original.Data.Path = "custom.csv"
	original.Auth.Username = "ops"
	original.Auth.Password = "pw"

	configPath := filepath.Join(t.TempDir(), "roundtrip.toml")
	if err := original.Save(configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Server.Addr != original.Server.Addr {
		t.Errorf("addr mismatch: %s vs %s", loaded.Server.Addr, original.Server.Addr)
	}
	if loaded.Data.Path != original.Data.Path {
		t.Errorf("data path mismatch: %s vs %s", loaded.Data.Path, original.Data.Path)
	}
	if loaded.Auth != original.Auth {
		t.Errorf("auth mismatch: %+v vs %+v", loaded.Auth, original.Auth)
	}
}

func TestReadHeaderTimeout_Invalid(t *testing.T) {
	s := ServerConfig{ReadHeaderTimeout: "invalid"}
	if d := s.ReadHeaderTimeoutDuration(); d != 10*time.Second {
		t.Errorf("expected default 10s for invalid duration, got %v", d)
	}
}

func TestMapToken(t *testing.T) {
	t.Setenv("SEGMENTIQ_TEST_TOKEN", "  pk.test  ")
	m := MapConfig{TokenEnv: "SEGMENTIQ_TEST_TOKEN"}
	if got := m.MapToken(); got != "pk.test" {
		t.Errorf("expected trimmed token, got %q", got)
	}
	if got := (MapConfig{}).MapToken(); got != "" {
		t.Errorf("expected empty token without env name, got %q", got)
	}
}

func TestSessionIdleTimeout(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[auth]\nsession_idle_timeout = \"30m\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d := cfg.Auth.IdleTimeoutDuration(); d != 30*time.Minute {
		t.Errorf("expected 30m, got %v", d)
	}
	if d := Default().Auth.IdleTimeoutDuration(); d != 12*time.Hour {
		t.Errorf("expected default 12h, got %v", d)
	}

	for _, bad := range []string{"soon", "-1h", "0s"} {
		path := writeConfig(t, "[auth]\nsession_idle_timeout = \""+bad+"\"\n")
		if _, err := Load(path); err == nil {
			t.Errorf("expected error for session_idle_timeout %q", bad)
		}
	}
}
