package web

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/otherjamesbrown/scribe-cli/pkg/events"
	"github.com/otherjamesbrown/scribe-cli/pkg/export"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/observability"
	"github.com/otherjamesbrown/scribe-cli/pkg/session"

	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
)

// stateResponse is the JSON form of the page model.
type stateResponse struct {
	State     session.State          `json:"state"`
	Visible   session.Visibility     `json:"visible"`
	Dashboard session.DashboardStats `json:"dashboard"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "scribe",
		"loading": s.store.Snapshot().Loading,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st := s.store.Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{
		State:     st,
		Visible:   session.Visible(st),
		Dashboard: session.Dashboard(st),
	})
}

func (s *Server) handleSelectView(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.store.SelectView(chi.URLParam(r, "view")))
}

func (s *Server) handleSelectTranscriptTab(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.store.SelectTranscriptTab(chi.URLParam(r, "tab")))
}

func (s *Server) handleSelectInsightsTab(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.store.SelectInsightsTab(chi.URLParam(r, "tab")))
}

func (s *Server) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	s.store.DismissNotice()
	s.transition(w, r, nil)
}

// handleUpload takes one audio file from a multipart form and runs the
// upload flow. A failed upload still redirects; the page shows the notice.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploader == nil {
		http.Error(w, "uploads are disabled", http.StatusServiceUnavailable)
		return
	}
	// Refuse early so a second file is not read while one is in flight.
	if s.store.Snapshot().Loading {
		s.fail(w, r, session.ErrUploadInFlight)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "file exceeds upload limit", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "expected a multipart form with a file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// The uploader logs failures and raises the notice itself.
	_, err = s.uploader.UploadFile(r.Context(), header.Filename, header.Size, file)
	if errors.Is(err, session.ErrUploadInFlight) || errors.Is(err, session.ErrEmptyFileName) {
		s.fail(w, r, err)
		return
	}
	s.transition(w, r, nil)
}

func (s *Server) handleRenameBegin(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.store.BeginRename(r.FormValue("label")))
}

// handleRenameCommit takes the edited name from the form, then commits.
func (s *Server) handleRenameCommit(w http.ResponseWriter, r *http.Request) {
	s.store.SetRenameBuffer(r.FormValue("name"))
	if s.store.CommitRename() {
		s.metrics.RecordRename()
	}
	s.transition(w, r, nil)
}

func (s *Server) handleRenameCancel(w http.ResponseWriter, r *http.Request) {
	s.store.CancelRename()
	s.transition(w, r, nil)
}

func (s *Server) handleExportTranscript(w http.ResponseWriter, r *http.Request) {
	st := s.store.Snapshot()
	if len(st.Transcript) == 0 {
		http.Error(w, "no transcript loaded", http.StatusNotFound)
		return
	}

	ctx, span := s.tracer.StartExportSpan(r.Context(), events.ExportTranscript)
	defer span.End()

	body := export.Transcript(st.Transcript, st.Speakers)
	name := export.TranscriptFilename(s.now())
	s.download(w, r, export.TranscriptMIME, name, body)

	observability.NewSpanHelper(span).SetSuccess()
	s.exported(r.WithContext(ctx), events.ExportTranscript, name, len(body), st.Source)
}

func (s *Server) handleExportCalendar(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "event index must be a number", http.StatusBadRequest)
		return
	}
	st := s.store.Snapshot()
	if idx < 0 || idx >= len(st.Insights.CalendarEvents) {
		http.Error(w, "no such calendar event", http.StatusNotFound)
		return
	}

	ctx, span := s.tracer.StartExportSpan(r.Context(), events.ExportCalendar)
	defer span.End()

	event := st.Insights.CalendarEvents[idx]
	body := export.Calendar(event, s.now(), export.NewUID())
	name := export.CalendarFilename(event.Title)
	s.download(w, r, export.CalendarMIME, name, body)

	observability.NewSpanHelper(span).SetSuccess()
	s.exported(r.WithContext(ctx), events.ExportCalendar, name, len(body), st.Source)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request, mimeType, name, body string) {
	w.Header().Set("Content-Type", mimeType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		s.log.WithContext(r.Context()).Warn("Writing download failed", logging.Err(err))
	}
}

// exported records an export. Event publishing is best effort.
func (s *Server) exported(r *http.Request, kind, name string, size int, source string) {
	s.metrics.RecordExport(kind)
	err := s.publisher.PublishExportCreated(r.Context(), events.ExportCreatedParams{
		Kind:      kind,
		Filename:  name,
		SizeBytes: size,
		Source:    source,
	})
	if err != nil {
		s.log.WithContext(r.Context()).Warn("Publishing export event failed", logging.Err(err))
	}
}

// transition finishes a state-changing request: redirect to the page on
// success, or the mapped error status.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		s.handleState(w, r)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if wantsJSON(r) {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	http.Error(w, err.Error(), status)
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case scerrors.IsValidation(err):
		return http.StatusBadRequest
	case scerrors.IsNotFound(err):
		return http.StatusNotFound
	case scerrors.IsInvalidState(err):
		return http.StatusConflict
	case scerrors.IsUploadFailed(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
