package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/otherjamesbrown/scribe-cli/pkg/buildinfo"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
	"github.com/otherjamesbrown/scribe-cli/pkg/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

// pageData is everything a page template reads.
type pageData struct {
	State        session.State
	Visible      session.Visibility
	Dashboard    session.DashboardStats
	Views        []session.View
	InsightsTabs []session.InsightsTab
	Settings     Settings
	Version      string
}

// Speaker returns the display name for a label.
func (p pageData) Speaker(label string) string {
	return p.State.Speakers.Resolve(label)
}

// Side returns the CSS class for a label's conversation side.
func (p pageData) Side(label string) string {
	return string(p.State.Speakers.Side(label))
}

// Editing reports whether label is the one in edit mode.
func (p pageData) Editing(label string) bool {
	return p.State.Rename != nil && p.State.Rename.Label == label
}

var templateFuncs = template.FuncMap{
	"offset": meeting.FormatOffset,
	"minutes": func(seconds float64) string {
		return fmt.Sprintf("%.1f", seconds/60)
	},
	"megabytes": func(size int64) string {
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	},
	"inc": func(i int) int { return i + 1 },
}

// loadTemplates parses the embedded page templates.
func loadTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return tmpl, nil
}

func (s *Server) pageData() pageData {
	st := s.store.Snapshot()
	return pageData{
		State:        st,
		Visible:      session.Visible(st),
		Dashboard:    session.Dashboard(st),
		Views:        session.Views,
		InsightsTabs: session.InsightsTabs,
		Settings:     s.settings,
		Version:      buildinfo.String(),
	}
}

// render writes the page for the current state.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "layout.html", s.pageData()); err != nil {
		s.log.WithContext(r.Context()).Error("Rendering page failed", logging.Err(err))
	}
}
