package dashboard

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/lamim/segmentiq/internal/analytics"
	"github.com/lamim/segmentiq/internal/logging"
	"github.com/lamim/segmentiq/internal/report"
)

// Export formats, also used as metric labels.
const (
	FormatPDF      = "pdf"
	FormatXLSX     = "xlsx"
	FormatJSON     = "json"
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

// MsgExportFailed prefixes the body of a failed export response.
const MsgExportFailed = "Export failed"

type export struct {
	format      string
	filename    string
	contentType string
	build       func(*analytics.Snapshot) ([]byte, error)
}

// handleExportPDF writes the PDF to its fixed path and returns the same bytes
// as a download. A failed write ends the request; the session continues.
func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, export{
		format:      FormatPDF,
		filename:    "report.pdf",
		contentType: "application/pdf",
		build: func(snap *analytics.Snapshot) ([]byte, error) {
			return s.reports.GeneratePDF(snap.Overview)
		},
	})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, export{
		format:      FormatXLSX,
		filename:    report.XLSXFile,
		contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		build: func(snap *analytics.Snapshot) ([]byte, error) {
			var buf bytes.Buffer
			err := report.WriteXLSX(snap, &buf)
			return buf.Bytes(), err
		},
	})
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, export{
		format:      FormatJSON,
		filename:    report.JSONFile,
		contentType: "application/json",
		build:       report.JSON,
	})
}

func (s *Server) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, export{
		format:      FormatMarkdown,
		filename:    report.MarkdownFile,
		contentType: "text/markdown; charset=utf-8",
		build: func(snap *analytics.Snapshot) ([]byte, error) {
			return report.Markdown(snap), nil
		},
	})
}

func (s *Server) handleExportHTML(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, export{
		format:      FormatHTML,
		filename:    report.HTMLFile,
		contentType: "text/html; charset=utf-8",
		build:       report.HTML,
	})
}

func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, e export) {
	snap := s.snapshots.Get(r.Context())
	data, err := e.build(snap)
	s.metrics.ObserveExport(e.format, err)
	if err != nil {
		s.fail(w, r, NewError(CategoryExportFailure, MsgExportFailed, err))
		return
	}

	s.logger.Info(r.Context(), "export served",
		logging.String("format", e.format),
		logging.Int("bytes", len(data)),
		logging.Uint64("generation", snap.Generation))

	w.Header().Set("Content-Type", e.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", e.filename))
	_, _ = w.Write(data)
}
