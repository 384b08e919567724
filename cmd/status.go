package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// StatusReport is the structured output of the status command.
type StatusReport struct {
	Backend   string `json:"backend" yaml:"backend"`
	UploadURL string `json:"upload_url" yaml:"upload_url"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	Status    int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms" yaml:"latency_ms"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	APIKeySet bool   `json:"api_key_set" yaml:"api_key_set"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check that the transcription backend is reachable",
		Long: `Check the connection to the transcription backend.

This sends a GET to the backend root and reports its status message. An
unreachable backend is reported, not returned as an error, so the command
can be used in scripts that parse its output.

Examples:
  scribe status
  scribe status -o json
  scribe status --backend http://gpu-box:8000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), deps, cmd.OutOrStdout(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func runStatus(ctx context.Context, deps *CommandDeps, out io.Writer, output string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := deps.config()
	if err != nil {
		return err
	}
	format, err := resolveFormat(output, cfg)
	if err != nil {
		return err
	}

	apiKey, err := deps.APIKey()
	if err != nil {
		return fmt.Errorf("resolving API key: %w", err)
	}
	backend, err := deps.NewBackend(cfg, apiKey, deps.logger())
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	report := StatusReport{
		Backend:   cfg.BackendURL,
		UploadURL: cfg.UploadURL(),
		APIKeySet: apiKey != "",
	}
	result, err := backend.Ping(ctx)
	if result != nil {
		report.Status = result.StatusCode
		report.Message = result.Message
		report.LatencyMs = result.Latency.Milliseconds()
	}
	if err != nil {
		report.Error = err.Error()
	} else {
		report.Healthy = true
	}

	return writeOutput(out, format, report, func(w io.Writer) error {
		state := "HEALTHY"
		if !report.Healthy {
			state = "UNHEALTHY"
		}
		fmt.Fprintf(w, "Backend status: %s\n", state)
		fmt.Fprintf(w, "  Backend:  %s\n", report.Backend)
		fmt.Fprintf(w, "  Upload:   %s\n", report.UploadURL)
		if report.Message != "" {
			fmt.Fprintf(w, "  Message:  %s\n", report.Message)
		}
		if report.Status != 0 {
			fmt.Fprintf(w, "  Latency:  %dms\n", report.LatencyMs)
		}
		if report.Error != "" {
			fmt.Fprintf(w, "  Error:    %s\n", report.Error)
		}
		if !report.APIKeySet {
			fmt.Fprintln(w, "  API key:  (not set)")
		}
		return nil
	})
}
