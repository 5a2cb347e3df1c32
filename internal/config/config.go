// Package config provides configuration loading and validation for the dashboard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration structure
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Data    DataConfig    `toml:"data"`
	Report  ReportConfig  `toml:"report"`
	Auth    AuthConfig    `toml:"auth"`
	Map     MapConfig     `toml:"map"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Addr              string `toml:"addr"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
}

// DataConfig points at the customer dataset and the optional model artifact
type DataConfig struct {
	Path      string `toml:"path"`
	ModelPath string `toml:"model_path"`
}

// ReportConfig controls where exports are written
type ReportConfig struct {
	PDFPath   string `toml:"pdf_path"`
	OutputDir string `toml:"output_dir"`
}

// AuthConfig holds the credential pair accepted by the static verifier
type AuthConfig struct {
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	IdleTimeout string `toml:"session_idle_timeout"`
}

// MapConfig configures the geo view. The token itself is never stored in the
// config file; TokenEnv names the environment variable that carries it.
type MapConfig struct {
	Style    string `toml:"style"`
	TokenEnv string `toml:"token_env"`
}

// LoggingConfig selects log level and output format (text or json)
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

const (
	defaultAddr      = ":8501"
	defaultDataPath  = "data/cleaned_customer_churn.csv"
	defaultModelPath = "data/churn_model.pkl"
	defaultPDFPath   = "report.pdf"
	defaultOutputDir = "./results"
	defaultMapStyle  = "mapbox://styles/mapbox/light-v10"
	defaultTokenEnv  = "MAPBOX_API_KEY"
)

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// ReadHeaderTimeoutDuration parses the header timeout into a Duration
func (s ServerConfig) ReadHeaderTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.ReadHeaderTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// IdleTimeoutDuration parses the session idle timeout into a Duration
func (a AuthConfig) IdleTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(a.IdleTimeout)
	if err != nil {
		return 12 * time.Hour
	}
	return d
}

// MapToken resolves the map credential from the environment.
func (m MapConfig) MapToken() string {
	if m.TokenEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(m.TokenEnv))
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.ReadHeaderTimeout == "" {
		c.Server.ReadHeaderTimeout = "10s"
	}
	if c.Data.Path == "" {
		c.Data.Path = defaultDataPath
	}
	if c.Data.ModelPath == "" {
		c.Data.ModelPath = defaultModelPath
	}
	if c.Report.PDFPath == "" {
		c.Report.PDFPath = defaultPDFPath
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = defaultOutputDir
	}
	if c.Auth.Username == "" && c.Auth.Password == "" {
		c.Auth.Username = "admin"
		c.Auth.Password = "1234"
	}
	if c.Auth.IdleTimeout == "" {
		c.Auth.IdleTimeout = "12h"
	}
	if c.Map.Style == "" {
		c.Map.Style = defaultMapStyle
	}
	if c.Map.TokenEnv == "" {
		c.Map.TokenEnv = defaultTokenEnv
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// validatePath checks for path traversal attempts
func validatePath(path string) error {
	cleanPath := filepath.Clean(path)

	// Reject paths that climb above the working directory
	if strings.HasPrefix(cleanPath, "..") || strings.Contains(cleanPath, "../") {
		return fmt.Errorf("path contains invalid traversal sequence: %s", path)
	}

	return nil
}

// Validate checks a configuration that already has defaults applied
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Server.ReadHeaderTimeout); err != nil {
		return fmt.Errorf("invalid read_header_timeout %q: %w", c.Server.ReadHeaderTimeout, err)
	}
	for name, p := range map[string]string{
		"data.path":         c.Data.Path,
		"data.model_path":   c.Data.ModelPath,
		"report.pdf_path":   c.Report.PDFPath,
		"report.output_dir": c.Report.OutputDir,
	} {
		if err := validatePath(p); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.Auth.Username == "" || c.Auth.Password == "" {
		return fmt.Errorf("auth requires both username and password")
	}
	if d, err := time.ParseDuration(c.Auth.IdleTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid session_idle_timeout %q: must be a positive duration", c.Auth.IdleTimeout)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Load reads and parses the TOML configuration file. A missing file is not an
// error: the defaults describe a complete deployment.
func Load(path string) (*Config, error) {
	if err := validatePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	var cfg Config

	// #nosec G304 - Path validated above, this is intentional file inclusion
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to a TOML file
func (c *Config) Save(path string) error {
	if err := validatePath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}

	// #nosec G304 - Path validated above, this is intentional file creation
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
