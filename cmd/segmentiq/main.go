// Package main provides the entry point for the SegmentIQ churn analytics
// dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lamim/segmentiq/internal/analytics"
	"github.com/lamim/segmentiq/internal/auth"
	"github.com/lamim/segmentiq/internal/config"
	"github.com/lamim/segmentiq/internal/dashboard"
	"github.com/lamim/segmentiq/internal/dataset"
	"github.com/lamim/segmentiq/internal/logging"
	"github.com/lamim/segmentiq/internal/observability"
	"github.com/lamim/segmentiq/internal/progress"
	"github.com/lamim/segmentiq/internal/report"
	"github.com/lamim/segmentiq/internal/segment"
)

const shutdownTimeout = 5 * time.Second

var validFormats = []string{"pdf", "md", "json", "html", "xlsx"}

type cliFlags struct {
	configPath *string
	addr       *string
	export     *string
	summary    *bool
	noProgress *bool
	initConfig *bool
}

func parseFlags(fs *flag.FlagSet) *cliFlags {
	return &cliFlags{
		configPath: fs.String("config", "config.toml", "Path to configuration file"),
		addr:       fs.String("addr", "", "Listen address (overrides config)"),
		export:     fs.String("export", "", "Write reports and exit: all, or a list of pdf, md, json, html, xlsx"),
		summary:    fs.Bool("summary", false, "Print the dashboard summary to the terminal and exit"),
		noProgress: fs.Bool("no-progress", false, "Disable progress bar (useful for CI)"),
		initConfig: fs.Bool("init-config", false, "Write a config file with every default to -config and exit"),
	}
}

// loadEnvFile loads KEY=VALUE pairs from path. A missing file is not an error;
// variables already set in the environment win.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("segmentiq", flag.ContinueOnError)
	fset.SetOutput(stderr)
	flags := parseFlags(fset)
	if err := fset.Parse(args); err != nil {
		return 2
	}

	formats, err := parseFormats(*flags.export)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if *flags.initConfig {
		if err := writeDefaultConfig(*flags.configPath); err != nil {
			return fatal(stderr, dashboard.Fatal("Error writing config", err))
		}
		fmt.Fprintf(stdout, "%s Wrote default config: %s\n", color.GreenString("✓"), *flags.configPath)
		return 0
	}

	if err := loadEnvFile(".env"); err != nil {
		fmt.Fprintf(stderr, "Warning: failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*flags.configPath)
	if err != nil {
		return fatal(stderr, dashboard.Fatal("Error loading config", err))
	}
	if *flags.addr != "" {
		cfg.Server.Addr = *flags.addr
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: stderr,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := observability.NewCollector(reg)
	if err != nil {
		return fatal(stderr, dashboard.Fatal("Error registering metrics", err))
	}

	prog := progress.NewManager(stderr, !*flags.noProgress)
	src, err := dataset.Open(cfg.Data.Path, cfg.Data.ModelPath,
		dataset.WithLogger(logger),
		dataset.WithReaderHook(prog.WrapReader),
		dataset.WithReloadHook(func(rows int, err error) {
			prog.LoadFinished(rows, err)
			collector.ObserveReload(rows, err)
		}),
	)
	if err != nil {
		return fatal(stderr, dashboard.Fatal("Error loading dataset", err))
	}
	collector.SetModelAvailable(src.Model() != nil)

	cache := analytics.NewCache(src, collector.ObserveSnapshotBuild)
	gen := report.NewGenerator(cfg.Report.PDFPath, cfg.Report.OutputDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(formats) > 0 || *flags.summary {
		snap := cache.Get(ctx)
		if len(formats) > 0 {
			if err := generateReports(stdout, formats, gen, snap); err != nil {
				return fatal(stderr, dashboard.NewError(dashboard.CategoryExportFailure, "Error generating reports", err))
			}
		}
		if *flags.summary {
			printSummary(stdout, snap)
		}
		return 0
	}

	idle := cfg.Auth.IdleTimeoutDuration()
	sessions := auth.NewStore(auth.WithIdleTimeout(idle))
	go sweepSessions(ctx, sessions, idle/2, logger)

	srv, err := dashboard.New(dashboard.Options{
		Snapshots: cache,
		Model:     src.Model(),
		Sessions:  sessions,
		Verifier:  auth.NewStaticVerifier(cfg.Auth.Username, cfg.Auth.Password),
		Reports:   gen,
		Metrics:   collector,
		Logger:    logger,
		MapStyle:  cfg.Map.Style,
		MapToken:  cfg.Map.MapToken(),
	})
	if err != nil {
		return fatal(stderr, dashboard.Fatal("Error building dashboard", err))
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeoutDuration(),
	}

	printBanner(stdout, cfg.Server.Addr)
	if err := serve(ctx, httpServer, logger); err != nil {
		return fatal(stderr, dashboard.Fatal("Error serving dashboard", err))
	}
	return 0
}

// serve runs the server until ctx is cancelled, then shuts it down.
func serve(ctx context.Context, srv *http.Server, logger logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info(ctx, "dashboard listening", logging.String("addr", srv.Addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sweepSessions drops idle sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, store *auth.Store, interval time.Duration, logger logging.Logger) {
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				logger.Debug(ctx, "expired sessions removed", logging.Int("count", n))
			}
		}
	}
}

// writeDefaultConfig saves the default configuration to path. An existing file
// is left untouched.
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return config.Default().Save(path)
}

func fatal(stderr io.Writer, err *dashboard.Error) int {
	fmt.Fprintf(stderr, "%s\n", color.RedString("%v", err))
	return 1
}

func printBanner(w io.Writer, addr string) {
	fmt.Fprintln(w, `
╔══════════════════════════════════════════════════════════════╗
║               SegmentIQ Customer Intelligence                ║
╚══════════════════════════════════════════════════════════════╝`)
	fmt.Fprintf(w, "  Serving on %s\n\n", color.CyanString(addr))
}

func printSummary(w io.Writer, snap *analytics.Snapshot) {
	p := message.NewPrinter(language.English)

	fmt.Fprintln(w, "\n═══════════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "                     CUSTOMER CHURN SUMMARY")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════")

	overview := tablewriter.NewWriter(w)
	overview.SetHeader([]string{"Metric", "Value"})
	overview.Append([]string{"Customers", p.Sprintf("%d", snap.Overview.TotalCustomers)})
	overview.Append([]string{"Retention Rate", report.FormatPercent(snap.Overview.RetentionRate)})
	overview.Append([]string{"Avg LTV", p.Sprintf("$%d", snap.Overview.AverageRevenue)})
	overview.Append([]string{"Risk Customers", p.Sprintf("%d", snap.Overview.AtRiskCount)})
	overview.Render()

	fmt.Fprintln(w, color.YellowString("\nSegments"))
	segments := tablewriter.NewWriter(w)
	segments.SetHeader([]string{"Segment", "Customers"})
	for _, name := range segment.Names {
		segments.Append([]string{string(name), p.Sprintf("%d", snap.Segments.Get(name))})
	}
	segments.Render()

	fmt.Fprintln(w, color.YellowString("\nCities"))
	if !snap.GeoAvailable {
		fmt.Fprintln(w, color.YellowString(dashboard.MsgGeoMissing))
		return
	}
	cities := tablewriter.NewWriter(w)
	cities.SetHeader([]string{"City", "Customers", "Churn Rate", "Total Revenue"})
	for _, c := range snap.Cities {
		rate := p.Sprintf("%.1f%%", c.ChurnRatePct)
		if c.ChurnRate > 0.5 {
			rate = color.RedString(rate)
		}
		cities.Append([]string{c.City, p.Sprintf("%d", c.Customers), rate, p.Sprintf("$%.2f", c.TotalRevenue)})
	}
	cities.Render()
}

func generateReports(w io.Writer, formats []string, gen *report.Generator, snap *analytics.Snapshot) error {
	fmt.Fprintln(w, "\nGenerating reports...")
	for _, f := range formats {
		var (
			err  error
			path string
		)
		switch f {
		case "pdf":
			_, err = gen.GeneratePDF(snap.Overview)
			path = gen.PDFPath()
		case "md":
			err = gen.GenerateMarkdown(snap)
			path = filepath.Join(gen.OutputDir(), report.MarkdownFile)
		case "json":
			err = gen.GenerateJSON(snap)
			path = filepath.Join(gen.OutputDir(), report.JSONFile)
		case "html":
			err = gen.GenerateHTML(snap)
			path = filepath.Join(gen.OutputDir(), report.HTMLFile)
		case "xlsx":
			err = gen.GenerateXLSX(snap)
			path = filepath.Join(gen.OutputDir(), report.XLSXFile)
		}
		if err != nil {
			return fmt.Errorf("%s report: %w", f, err)
		}
		fmt.Fprintf(w, "%s Generated %s report: %s\n", color.GreenString("✓"), strings.ToUpper(f), path)
	}
	return nil
}

// parseFormats expands the -export value. An empty value means no export.
func parseFormats(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if s == "all" {
		return append([]string(nil), validFormats...), nil
	}

	var formats []string
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if !isValidFormat(f) {
			return nil, fmt.Errorf("unknown export format %q (want all or %s)", f, strings.Join(validFormats, ", "))
		}
		formats = append(formats, f)
	}
	return formats, nil
}

func isValidFormat(f string) bool {
	for _, v := range validFormats {
		if v == f {
			return true
		}
	}
	return false
}
