// Package progress provides a terminal progress bar for dataset loading and a
// one-line status after each load.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Manager handles the progress display
type Manager struct {
	enabled   bool
	out       io.Writer
	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	startTime time.Time
	loads     int
	failures  int
}

// NewManager creates a new progress manager writing to out (stderr when nil).
func NewManager(out io.Writer, enabled bool) *Manager {
	if out == nil {
		out = os.Stderr
	}
	return &Manager{enabled: enabled, out: out}
}

// WrapReader returns r wrapped in a byte progress bar of the given size. A
// size below zero renders an indeterminate spinner. When the manager is
// disabled r is returned unchanged.
func (m *Manager) WrapReader(r io.Reader, size int64) io.Reader {
	if !m.enabled {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.startTime = time.Now()
	m.bar = progressbar.NewOptions64(size,
		progressbar.OptionSetDescription("Loading customers"),
		progressbar.OptionSetWriter(m.out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "|",
			BarEnd:        "|",
		}),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(m.out)
		}),
	)
	reader := progressbar.NewReader(r, m.bar)
	return &reader
}

// LoadFinished closes the current bar and prints the outcome of the load.
func (m *Manager) LoadFinished(rows int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loads++
	if err != nil {
		m.failures++
	}
	if !m.enabled {
		return
	}

	elapsed := time.Duration(0)
	if m.bar != nil {
		_ = m.bar.Finish()
		elapsed = time.Since(m.startTime)
		m.bar = nil
	}

	if err != nil {
		fmt.Fprintf(m.out, "  ✗ load failed: %s\n", truncate(err.Error(), 120))
		return
	}
	fmt.Fprintf(m.out, "  ✓ %d customers loaded in %s\n", rows, formatDuration(elapsed))
}

// PrintAbove prints a message to the progress writer
func (m *Manager) PrintAbove(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.out, format+"\n", args...)
}

// Counts returns how many loads finished and how many of them failed.
func (m *Manager) Counts() (loads, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads, m.failures
}

// IsEnabled returns whether progress display is enabled
func (m *Manager) IsEnabled() bool {
	return m.enabled
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// truncate truncates a string to max length with ellipsis
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
