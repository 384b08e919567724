package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/scribe-cli/client"
	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
	"github.com/otherjamesbrown/scribe-cli/pkg/events"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
	"github.com/otherjamesbrown/scribe-cli/pkg/session"
)

// uploadOptions holds the upload command flags.
type uploadOptions struct {
	renames   []string
	exportDir string
	save      string
	insights  bool
	output    string
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	opts := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload <audio>",
		Short: "Transcribe a recording",
		Long: `Upload an audio recording to the transcription backend and print the
speaker-attributed transcript.

Accepted types: .mp3, .wav, .m4a, .ogg. The backend address comes from
backend_url in the config file, SCRIBE_BACKEND_URL or --backend. The API
key, if any, comes from SCRIBE_API_KEY or 'scribe auth login'.

Examples:
  scribe upload standup.mp3
  scribe upload standup.mp3 --rename A=Alice --rename B=Bob
  scribe upload standup.mp3 --insights
  scribe upload standup.mp3 --save standup.json --export-dir ./out
  scribe upload standup.mp3 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), deps, cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.renames, "rename", "r", nil, "Rename a speaker, LABEL=Name (repeatable)")
	cmd.Flags().StringVar(&opts.exportDir, "export-dir", "", "Write the transcript and calendar events to this directory")
	cmd.Flags().StringVar(&opts.save, "save", "", "Save the transcript as JSON for 'scribe open'")
	cmd.Flags().BoolVarP(&opts.insights, "insights", "i", false, "Print the meeting analysis after the transcript")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runUpload(ctx context.Context, deps *CommandDeps, out, errOut io.Writer, path string, opts *uploadOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := deps.config()
	if err != nil {
		return err
	}
	format, err := resolveFormat(opts.output, cfg)
	if err != nil {
		return err
	}
	// Check the flags before spending an upload on them.
	if _, err := parseRenames(opts.renames); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", scerrors.ErrValidation, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", scerrors.ErrValidation, path)
	}
	if err := client.CheckAudioFile(path, info.Size(), cfg.MaxUploadBytes()); err != nil {
		return err
	}

	backend, err := deps.backend(cfg)
	if err != nil {
		return err
	}
	publisher, err := deps.publisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	log := deps.logger()
	store := session.NewStore()
	if err := store.SelectFile(filepath.Base(path), info.Size()); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	uploader := session.NewUploader(store, backend,
		session.WithLogger(log),
		session.WithCompletionHook(announceTranscript(publisher, log)),
	)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if _, err := uploader.Upload(ctx, f); err != nil {
		fmt.Fprintln(errOut, store.Snapshot().Notice)
		return err
	}

	if err := applyRenames(store, opts.renames); err != nil {
		return err
	}
	st := store.Snapshot()

	if opts.save != "" {
		data, err := json.MarshalIndent(savedResult(st), "", "  ")
		if err != nil {
			return fmt.Errorf("encoding transcript: %w", err)
		}
		if err := os.WriteFile(opts.save, data, 0o644); err != nil {
			return fmt.Errorf("saving transcript: %w", err)
		}
		fmt.Fprintf(errOut, "Saved %s\n", opts.save)
	}

	if opts.exportDir != "" {
		ex := &exporter{deps: deps, publisher: publisher, dir: opts.exportDir, out: errOut}
		if err := exportAll(ctx, ex, st); err != nil {
			return err
		}
	}

	return writeOutput(out, format, newTranscriptView(st), func(w io.Writer) error {
		return printTranscript(w, st, opts.insights)
	})
}

// announceTranscript publishes a transcript.completed event for each
// successful upload. Publishing is best effort.
func announceTranscript(p *events.Publisher, log logging.Logger) session.CompletionHook {
	return func(ctx context.Context, entry session.HistoryEntry, result *meeting.Result) {
		err := p.PublishTranscriptCompleted(ctx, events.TranscriptCompletedParams{
			UploadID:        entry.ID,
			Filename:        entry.Source,
			SegmentCount:    entry.Segments,
			Speakers:        meeting.NewSpeakerMap(result.Segments).Labels(),
			DurationSeconds: entry.Duration,
			HasInsights:     entry.HasInsights,
			CalendarEvents:  entry.Events,
		})
		if err != nil {
			log.Warn("Publishing transcript event failed", logging.Err(err))
		}
	}
}
