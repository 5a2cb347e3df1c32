package dashboard

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/lamim/segmentiq/internal/analytics"
	"github.com/lamim/segmentiq/internal/chart"
	"github.com/lamim/segmentiq/internal/dataset"
	"github.com/lamim/segmentiq/internal/logging"
	"github.com/lamim/segmentiq/internal/report"
	"github.com/lamim/segmentiq/internal/risk"
	"github.com/lamim/segmentiq/internal/segment"
)

// Tab identifiers, in display order.
const (
	TabOverview     = "overview"
	TabIntelligence = "intelligence"
	TabPredict      = "predict"
	TabGeo          = "geo"
	TabReports      = "reports"
)

var tabs = []struct{ id, label string }{
	{TabOverview, "Overview"},
	{TabIntelligence, "Customer Intelligence"},
	{TabPredict, "Predict Churn"},
	{TabGeo, "Geo Analytics"},
	{TabReports, "Reports"},
}

var segmentIcons = map[segment.Name]string{
	segment.Champions:  "🏆",
	segment.Emerging:   "🚀",
	segment.Vulnerable: "⚠",
	segment.Inactive:   "💤",
}

type loginData struct {
	Username string
	Error    string
}

type tabLink struct {
	ID     string
	Label  string
	Active bool
}

type overviewView struct {
	Customers string
	Retention string
	AvgLTV    string
	AtRisk    string
}

type segmentView struct {
	Icon  string
	Name  string
	Count string
}

type cityView struct {
	City         string
	ChurnRate    string
	TotalRevenue string
}

type chartsView struct {
	Churn    template.JS
	Tenure   template.JS
	Contract template.JS
}

type pageData struct {
	Tab               string
	Tabs              []tabLink
	Generation        uint64
	Overview          overviewView
	Segments          []segmentView
	ChampionThreshold string
	Charts            chartsView
	GeoAvailable      bool
	Geo               template.JS
	Cities            []cityView
	MapToken          string
	Model             *dataset.Model
	Input             risk.Input
	Prediction        *risk.Prediction
	PredictError      string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()).Authenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", loginData{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, NewError(CategoryUserInput, "invalid login form", err))
		return
	}
	username := r.PostFormValue("username")
	sess := sessionFrom(r.Context())

	next, ok := s.sessions.Login(sess.ID, s.verifier, username, r.PostFormValue("password"))
	s.metrics.ObserveLogin(ok)
	if !ok {
		s.errors.Record(NewError(CategoryUserInput, MsgInvalidCredentials, nil))
		s.logger.Info(r.Context(), "login rejected", logging.String("username", username))
		s.render(w, r, http.StatusUnauthorized, "login.html", loginData{Username: username, Error: MsgInvalidCredentials})
		return
	}

	setSessionCookie(w, next.ID, 0)
	ctx := logging.ContextWithSessionID(r.Context(), next.ID)
	s.logger.Info(ctx, "login accepted", logging.String("username", username))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := sessionFrom(r.Context()); sess.ID != "" {
		s.sessions.Logout(sess.ID)
		s.logger.Info(r.Context(), "logout")
	}
	setSessionCookie(w, "", -1)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := s.page(r, r.URL.Query().Get("tab"))
	if err != nil {
		s.fail(w, r, NewError(CategoryUnknown, "failed to build page", err))
		return
	}
	data.Input = risk.DefaultInput()
	s.render(w, r, http.StatusOK, "page.html", data)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	data, err := s.page(r, TabPredict)
	if err != nil {
		s.fail(w, r, NewError(CategoryUnknown, "failed to build page", err))
		return
	}
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, NewError(CategoryUserInput, "invalid prediction form", err))
		return
	}

	in, err := risk.ParseInput(r.PostFormValue("monthly"), r.PostFormValue("tenure"))
	if err != nil {
		e := NewError(CategoryUserInput, "invalid prediction input", err)
		s.errors.Record(e)
		s.logger.Info(r.Context(), "prediction input rejected", logging.Err(err))
		data.Input = risk.DefaultInput()
		data.PredictError = err.Error()
		s.render(w, r, e.Category.StatusCode(), "page.html", data)
		return
	}

	p := risk.Predict(in)
	s.metrics.ObservePrediction(p.Label)
	s.logger.Debug(r.Context(), "prediction",
		logging.Int("monthly_charge", in.MonthlyCharge),
		logging.Int("tenure_months", in.TenureMonths),
		logging.Float("score", p.Score),
		logging.String("level", p.Label))

	data.Input = in
	data.Prediction = &p
	s.render(w, r, http.StatusOK, "page.html", data)
}

// page builds the view model for one render pass from the current snapshot
// and the request's session.
func (s *Server) page(r *http.Request, tab string) (pageData, error) {
	if !validTab(tab) {
		tab = TabOverview
	}
	snap := s.snapshots.Get(r.Context())

	data := pageData{
		Tab:          tab,
		Tabs:         tabLinks(tab),
		Generation:   snap.Generation,
		Overview:     s.overviewView(snap),
		GeoAvailable: snap.GeoAvailable,
		MapToken:     s.mapToken,
		Model:        s.model,
	}

	for _, name := range segment.Names {
		data.Segments = append(data.Segments, segmentView{
			Icon:  segmentIcons[name],
			Name:  string(name),
			Count: s.printer.Sprintf("%d", snap.Segments.Get(name)),
		})
	}
	data.ChampionThreshold = s.printer.Sprintf("$%.2f", snap.Segments.ChampionThreshold)

	var err error
	if data.Charts.Churn, err = specJS(chart.ChurnPie(snap.Churn)); err != nil {
		return data, err
	}
	if data.Charts.Tenure, err = specJS(chart.TenureLine(snap.TenureTrend)); err != nil {
		return data, err
	}
	if data.Charts.Contract, err = specJS(chart.ContractHistogram(snap.Contracts)); err != nil {
		return data, err
	}

	if snap.GeoAvailable {
		geo := chart.GeoScatter(snap.Cities, s.mapStyle)
		if data.Geo, err = specJS(geo); err != nil {
			return data, err
		}
		for _, p := range geo.Points {
			data.Cities = append(data.Cities, cityView{
				City:         p.City,
				ChurnRate:    s.printer.Sprintf("%.1f%%", p.ChurnRatePct),
				TotalRevenue: s.printer.Sprintf("$%.2f", p.TotalRevenue),
			})
		}
	} else if tab == TabGeo {
		s.errors.Record(NewError(CategoryToleratedAbsence, MsgGeoMissing, nil))
	}
	return data, nil
}

// overviewView formats the four headline metrics with thousands separators.
func (s *Server) overviewView(snap *analytics.Snapshot) overviewView {
	return overviewView{
		Customers: s.printer.Sprintf("%d", snap.Overview.TotalCustomers),
		Retention: report.FormatPercent(snap.Overview.RetentionRate),
		AvgLTV:    s.printer.Sprintf("$%d", snap.Overview.AverageRevenue),
		AtRisk:    s.printer.Sprintf("%d", snap.Overview.AtRiskCount),
	}
}

// specJS encodes a chart spec for a script element. json.Marshal escapes <, >
// and &, so the output cannot close the element.
func specJS(v any) (template.JS, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	// #nosec G203 - payload is JSON produced by encoding/json
	return template.JS(data), nil
}

func validTab(tab string) bool {
	for _, t := range tabs {
		if t.id == tab {
			return true
		}
	}
	return false
}

func tabLinks(active string) []tabLink {
	links := make([]tabLink, len(tabs))
	for i, t := range tabs {
		links[i] = tabLink{ID: t.id, Label: t.label, Active: t.id == active}
	}
	return links
}
