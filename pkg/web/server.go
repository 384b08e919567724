// Package web serves the local browser UI. Every request drives a
// session.Store transition and renders the view the store says is visible.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/scribe-cli/pkg/buildinfo"
	"github.com/otherjamesbrown/scribe-cli/pkg/events"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/observability"
	"github.com/otherjamesbrown/scribe-cli/pkg/session"
)

// DefaultMaxUploadBytes caps request bodies when Options leaves it unset.
const DefaultMaxUploadBytes = 50 << 20

// multipartOverhead is allowed on top of the file limit for form framing.
const multipartOverhead = 1 << 20

// Settings are shown read-only on the settings view.
type Settings struct {
	BackendURL    string
	UploadURL     string
	ListenAddress string
	MaxUploadMB   int
	APIKeySet     bool
	EventsEnabled bool
}

// Options configures a Server.
type Options struct {
	Uploader       *session.Uploader
	Publisher      *events.Publisher
	Metrics        *observability.Metrics
	Gatherer       prometheus.Gatherer
	Logger         logging.Logger
	MaxUploadBytes int64
	Settings       Settings
}

// Server is the local UI.
type Server struct {
	store          *session.Store
	uploader       *session.Uploader
	publisher      *events.Publisher
	metrics        *observability.Metrics
	tracer         *observability.Tracer
	log            logging.Logger
	tmpl           *template.Template
	maxUploadBytes int64
	settings       Settings
	now            func() time.Time
	router         chi.Router
}

// NewServer builds the router. A nil Uploader disables the upload endpoint.
func NewServer(store *session.Store, opts Options) (*Server, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	srv := &Server{
		store:          store,
		uploader:       opts.Uploader,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		tracer:         observability.NewTracer(),
		log:            logger.With(logging.F("component", "web")),
		tmpl:           tmpl,
		maxUploadBytes: maxBytes,
		settings:       opts.Settings,
		now:            time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(srv.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", srv.handleIndex)
	r.Get("/healthz", srv.handleHealth)
	r.Get("/version", buildinfo.Handler("scribe"))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/api/state", srv.handleState)

	r.Post("/view/{view}", srv.handleSelectView)
	r.Post("/tab/transcript/{tab}", srv.handleSelectTranscriptTab)
	r.Post("/tab/insights/{tab}", srv.handleSelectInsightsTab)

	r.Post("/upload", srv.handleUpload)
	r.Post("/notice/dismiss", srv.handleDismissNotice)

	r.Route("/rename", func(r chi.Router) {
		r.Post("/begin", srv.handleRenameBegin)
		r.Post("/commit", srv.handleRenameCommit)
		r.Post("/cancel", srv.handleRenameCancel)
	})

	r.Route("/export", func(r chi.Router) {
		r.Get("/transcript", srv.handleExportTranscript)
		r.Get("/calendar/{index}", srv.handleExportCalendar)
	})

	srv.router = r
	return srv, nil
}

// ServeHTTP lets the Server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := s.httpServer(addr)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Serving UI", logging.F("addr", "http://"+addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving UI: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("Shutting down UI")
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down UI: %w", err)
		}
		return nil
	}
}

// httpServer builds the listener for addr. Connection-level errors from
// net/http go to the structured log instead of the standard logger.
func (s *Server) httpServer(addr string) *http.Server {
	errLog := s.log.Zerolog().With().Str("source", "net/http").Logger()
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(errLog, "", 0),
	}
}

// requestLogger logs each request with its ID and records the route metric.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		s.metrics.RecordHTTPRequest(route, strconv.Itoa(status))
		s.log.WithContext(ctx).Debug("Request served",
			logging.F("method", r.Method),
			logging.F("route", route),
			logging.F("status", status),
			logging.F("duration", time.Since(start)),
		)
	})
}
