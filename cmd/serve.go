package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/observability"
	"github.com/otherjamesbrown/scribe-cli/pkg/session"
	"github.com/otherjamesbrown/scribe-cli/pkg/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the browser UI",
		Long: `Serve the local browser UI: dashboard, upload, transcript with speaker
renaming, meeting insights, history and settings.

The UI keeps one session in memory. Uploads go to the configured backend;
downloads are produced locally.

Operational endpoints:
  /healthz     Liveness and upload state
  /version     Build information
  /metrics     Prometheus metrics
  /api/state   The session as JSON

When command_log is configured, warnings and errors are also written to
the scribe_logs table.

Examples:
  scribe serve
  scribe serve --listen 0.0.0.0:8787`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, addr, cleanup, err := buildServer(ctx, deps, listen)
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Fprintf(cmd.OutOrStdout(), "Scribe UI listening on http://%s\n", addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Address to listen on (default from listen_address)")
	return cmd
}

// buildServer wires the UI: store, uploader, metrics, events and the
// optional database log sink. cleanup releases what was opened.
func buildServer(ctx context.Context, deps *CommandDeps, listen string) (*web.Server, string, func(), error) {
	cfg, err := deps.config()
	if err != nil {
		return nil, "", nil, err
	}
	addr := cfg.ListenAddress
	if listen != "" {
		addr = listen
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	log, closeSink := serveLogger(ctx, deps, cfg)
	closers = append(closers, closeSink)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	backend, err := deps.backend(cfg)
	if err != nil {
		cleanup()
		return nil, "", nil, err
	}
	if c, ok := backend.(interface {
		SetMetrics(*observability.Metrics)
	}); ok {
		c.SetMetrics(metrics)
	}

	publisher, err := deps.publisher(cfg)
	if err != nil {
		// The UI works without events.
		log.Warn("Event publishing disabled", logging.Err(err))
		publisher = nil
	}
	closers = append(closers, func() { _ = publisher.Close() })

	store := session.NewStore()
	uploader := session.NewUploader(store, backend,
		session.WithLogger(log),
		session.WithMetrics(metrics),
		session.WithCompletionHook(announceTranscript(publisher, log)),
	)

	apiKey, _ := deps.APIKey()
	srv, err := web.NewServer(store, web.Options{
		Uploader:       uploader,
		Publisher:      publisher,
		Metrics:        metrics,
		Gatherer:       reg,
		Logger:         log,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Settings: web.Settings{
			BackendURL:    cfg.BackendURL,
			UploadURL:     cfg.UploadURL(),
			ListenAddress: addr,
			MaxUploadMB:   cfg.MaxUploadMB,
			APIKeySet:     apiKey != "",
			EventsEnabled: publisher != nil,
		},
	})
	if err != nil {
		cleanup()
		return nil, "", nil, fmt.Errorf("building UI: %w", err)
	}
	return srv, addr, cleanup, nil
}

// serveLogger returns the command logger, extended with a database sink when
// the command log is configured. The returned func flushes and closes it.
func serveLogger(ctx context.Context, deps *CommandDeps, cfg *config.CLIConfig) (logging.Logger, func()) {
	log := deps.logger()
	if !cfg.CommandLog.IsConfigured() || deps.NewCommandLog == nil {
		return log, func() {}
	}

	db, err := deps.NewCommandLog(cfg.CommandLog)
	if err != nil {
		log.Warn("Database log sink disabled", logging.Err(err))
		return log, func() {}
	}
	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.EnsureSchema(schemaCtx); err != nil {
		log.Warn("Database log sink disabled", logging.Err(err))
		_ = db.Close()
		return log, func() {}
	}

	sink := logging.NewDBSink(logging.DBSinkConfig{
		Writer:   db,
		MinLevel: logging.LevelWarn,
	})
	logCfg := loggerConfig(cfg)
	logCfg.Sinks = []logging.Sink{sink}
	return logging.NewLogger(logCfg), func() {
		_ = sink.Close()
		_ = db.Close()
	}
}

// loggerConfig derives the logger settings from the CLI configuration.
func loggerConfig(cfg *config.CLIConfig) *logging.Config {
	lc := logging.DefaultConfig()
	if cfg.Debug {
		lc.Level = logging.LevelDebug
	}
	lc.JSONFormat = cfg.LogJSON
	return lc
}

// NewLogger builds the command logger for cfg.
func NewLogger(cfg *config.CLIConfig) logging.Logger {
	return logging.NewLogger(loggerConfig(cfg))
}
