// Package dashboard serves the churn analytics dashboard over HTTP: login,
// the tabbed page, churn risk prediction, report exports, chart images, and a
// JSON view of the current snapshot.
package dashboard

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lamim/segmentiq/internal/analytics"
	"github.com/lamim/segmentiq/internal/auth"
	"github.com/lamim/segmentiq/internal/chart"
	"github.com/lamim/segmentiq/internal/dataset"
	"github.com/lamim/segmentiq/internal/logging"
	"github.com/lamim/segmentiq/internal/observability"
	"github.com/lamim/segmentiq/internal/report"
)

// SessionCookie names the cookie carrying the session ID.
const SessionCookie = "segmentiq_session"

// MsgInvalidCredentials is shown inline after a failed login.
const MsgInvalidCredentials = "Invalid credentials"

// MsgGeoMissing is shown on the Geo tab when the geo columns are absent.
const MsgGeoMissing = "Required columns missing"

//go:embed templates/*.html
var templateFS embed.FS

// SnapshotSource yields the snapshot for the current dataset generation.
type SnapshotSource interface {
	Get(ctx context.Context) *analytics.Snapshot
}

// Options wires the server's collaborators. Snapshots, Verifier and Reports
// are required.
type Options struct {
	Snapshots SnapshotSource
	Model     *dataset.Model
	Sessions  *auth.Store
	Verifier  auth.Verifier
	Reports   *report.Generator
	Metrics   *observability.Collector
	Logger    logging.Logger
	MapStyle  string
	MapToken  string
}

// Server is the dashboard HTTP server.
type Server struct {
	snapshots SnapshotSource
	model     *dataset.Model
	sessions  *auth.Store
	verifier  auth.Verifier
	reports   *report.Generator
	metrics   *observability.Collector
	logger    logging.Logger
	mapStyle  string
	mapToken  string

	tmpl    *template.Template
	printer *message.Printer
	errors  *ErrorStats
}

// New validates opts and parses the page templates.
func New(opts Options) (*Server, error) {
	if opts.Snapshots == nil {
		return nil, errors.New("dashboard: snapshot source is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("dashboard: verifier is required")
	}
	if opts.Reports == nil {
		return nil, errors.New("dashboard: report generator is required")
	}
	if opts.Sessions == nil {
		opts.Sessions = auth.NewStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{
		snapshots: opts.Snapshots,
		model:     opts.Model,
		sessions:  opts.Sessions,
		verifier:  opts.Verifier,
		reports:   opts.Reports,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		mapStyle:  opts.MapStyle,
		mapToken:  opts.MapToken,
		tmpl:      tmpl,
		printer:   message.NewPrinter(language.English),
		errors:    NewErrorStats(),
	}, nil
}

// Handler returns the routed handler. Health and metrics are served without
// touching the session store.
func (s *Server) Handler() http.Handler {
	app := http.NewServeMux()
	s.handle(app, "GET /login", s.handleLoginPage)
	s.handle(app, "POST /login", s.handleLogin)
	s.handle(app, "POST /logout", s.handleLogout)
	s.handle(app, "GET /{$}", s.requireAuth(s.handleIndex, true))
	s.handle(app, "POST /predict", s.requireAuth(s.handlePredict, true))
	s.handle(app, "POST /export/report.pdf", s.requireAuth(s.handleExportPDF, false))
	s.handle(app, "GET /export/segments.xlsx", s.requireAuth(s.handleExportXLSX, false))
	s.handle(app, "GET /export/summary.json", s.requireAuth(s.handleExportJSON, false))
	s.handle(app, "GET /export/summary.md", s.requireAuth(s.handleExportMarkdown, false))
	s.handle(app, "GET /export/summary.html", s.requireAuth(s.handleExportHTML, false))
	s.handle(app, "GET /charts/{name}", s.requireAuth(s.handleChart, false))
	s.handle(app, "GET /api/view", s.requireAuth(s.handleView, false))

	mux := http.NewServeMux()
	s.handle(mux, "GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.Handle("/", s.withSession(app))
	return mux
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	route := pattern[strings.IndexByte(pattern, ' ')+1:]
	mux.Handle(pattern, s.metrics.Instrument(route, h))
}

type sessionKey struct{}

// withSession resolves the session cookie. Requests without a live session
// carry the zero Session; nothing is stored until a login succeeds.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess auth.Session
		if c, err := r.Cookie(SessionCookie); err == nil {
			sess, _ = s.sessions.Get(c.Value)
		}
		ctx := r.Context()
		if sess.ID != "" {
			ctx = logging.ContextWithSessionID(ctx, sess.ID)
		}
		ctx = context.WithValue(ctx, sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func setSessionCookie(w http.ResponseWriter, id string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionFrom(ctx context.Context) auth.Session {
	sess, _ := ctx.Value(sessionKey{}).(auth.Session)
	return sess
}

// requireAuth lets authenticated sessions through. Pages redirect to the
// login form; everything else gets 401.
func (s *Server) requireAuth(next http.HandlerFunc, redirect bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionFrom(r.Context()).Authenticated {
			next(w, r)
			return
		}
		if redirect {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		http.Error(w, "login required", http.StatusUnauthorized)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Get(r.Context())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ok generation=%d customers=%d\n", snap.Generation, snap.Overview.TotalCustomers)
}

// fail logs e, records it, and ends the request with its status and message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, e *Error) {
	s.errors.Record(e)
	s.logger.Error(r.Context(), "request failed",
		logging.String("path", r.URL.Path),
		logging.String("category", e.Category.String()),
		logging.Err(e))
	http.Error(w, e.Error(), e.Category.StatusCode())
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.fail(w, r, NewError(CategoryUnknown, "failed to render page", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.fail(w, r, NewError(CategoryUnknown, "failed to encode response", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// viewResponse is the JSON form of everything the page shows.
type viewResponse struct {
	Snapshot *analytics.Snapshot `json:"snapshot"`
	Charts   []chart.Spec        `json:"charts"`
	Geo      *chart.GeoSpec      `json:"geo,omitempty"`
	Model    *dataset.Model      `json:"model"`
	Errors   map[string]int      `json:"errors"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Get(r.Context())
	resp := viewResponse{
		Snapshot: snap,
		Charts: []chart.Spec{
			chart.ChurnPie(snap.Churn),
			chart.TenureLine(snap.TenureTrend),
			chart.ContractHistogram(snap.Contracts),
		},
		Model:  s.model,
		Errors: s.errors.GetCounts(),
	}
	if snap.GeoAvailable {
		geo := chart.GeoScatter(snap.Cities, s.mapStyle)
		resp.Geo = &geo
	}
	s.writeJSON(w, r, resp)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("name")
	name, ok := strings.CutSuffix(file, ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	err := chart.RenderPNG(name, s.snapshots.Get(r.Context()), &buf)
	switch {
	case errors.Is(err, chart.ErrUnknownChart):
		http.NotFound(w, r)
		return
	case errors.Is(err, chart.ErrNoGeoData):
		s.fail(w, r, NewError(CategoryToleratedAbsence, MsgGeoMissing, nil))
		return
	case err != nil:
		s.fail(w, r, NewError(CategoryUnknown, "failed to render chart", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = buf.WriteTo(w)
}
