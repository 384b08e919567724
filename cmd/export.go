package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
	"github.com/otherjamesbrown/scribe-cli/pkg/events"
	"github.com/otherjamesbrown/scribe-cli/pkg/export"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
	"github.com/otherjamesbrown/scribe-cli/pkg/session"
)

// exportOptions are the flags shared by the export subcommands.
type exportOptions struct {
	dir     string
	charset string
	renames []string
	event   int
	all     bool
}

// exporter writes export documents and announces them. Names already
// written by this exporter get a numeric suffix instead of being overwritten.
type exporter struct {
	deps      *CommandDeps
	publisher *events.Publisher
	dir       string
	out       io.Writer
	written   map[string]bool
}

func (e *exporter) transcript(ctx context.Context, st session.State) (string, error) {
	if len(st.Transcript) == 0 {
		return "", fmt.Errorf("%w: transcript is empty", scerrors.ErrNotFound)
	}
	body := export.Transcript(st.Transcript, st.Speakers)
	return e.write(ctx, events.ExportTranscript, export.TranscriptFilename(e.deps.now()), body, st.Source)
}

func (e *exporter) calendar(ctx context.Context, st session.State, idx int) (string, error) {
	if idx < 0 || idx >= len(st.Insights.CalendarEvents) {
		return "", fmt.Errorf("%w: no calendar event %d (%d found)", scerrors.ErrNotFound, idx, len(st.Insights.CalendarEvents))
	}
	event := st.Insights.CalendarEvents[idx]
	body := export.Calendar(event, e.deps.now(), export.NewUID())
	return e.write(ctx, events.ExportCalendar, export.CalendarFilename(event.Title), body, st.Source)
}

// uniqueName returns name, or name with "-2", "-3", ... before its
// extension when this exporter has already written that name.
func (e *exporter) uniqueName(name string) string {
	if e.written == nil {
		e.written = make(map[string]bool)
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name
	for n := 2; e.written[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
	}
	e.written[candidate] = true
	return candidate
}

func (e *exporter) write(ctx context.Context, kind, name, body, source string) (string, error) {
	name = e.uniqueName(name)
	path, err := writeFile(e.dir, name, []byte(body))
	if err != nil {
		return "", err
	}
	fmt.Fprintf(e.out, "Wrote %s\n", path)

	err = e.publisher.PublishExportCreated(ctx, events.ExportCreatedParams{
		Kind:      kind,
		Filename:  name,
		SizeBytes: len(body),
		Source:    source,
	})
	if err != nil {
		e.deps.logger().Warn("Publishing export event failed", logging.Err(err))
	}
	return path, nil
}

// NewExportCommand creates the export command group.
func NewExportCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a transcript or calendar event to a file",
		Long: `Export documents from a saved transcript file (.json, .txt or .vtt).

Subcommands:
  transcript   Plain-text transcript named transcript-YYYY-MM-DD.txt
  calendar     iCalendar event named after the event title

Examples:
  scribe export transcript standup.json
  scribe export transcript standup.json --rename A=Alice --dir ./out
  scribe export calendar standup.json --event 1
  scribe export calendar standup.json --all`,
	}

	cmd.AddCommand(newExportTranscriptCommand(deps))
	cmd.AddCommand(newExportCalendarCommand(deps))
	return cmd
}

func newExportTranscriptCommand(deps *CommandDeps) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "transcript <file>",
		Short: "Export the transcript as plain text",
		Long: `Export the transcript as plain text.

Each segment becomes "[m:ss] Name: text", with segments separated by a
blank line. Speakers show their display name, falling back to the raw
label when no rename was given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), deps, cmd.OutOrStdout(), args[0], opts, false)
		},
	}
	addExportFlags(cmd, opts)
	return cmd
}

func newExportCalendarCommand(deps *CommandDeps) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "calendar <file>",
		Short: "Export a suggested calendar event as .ics",
		Long: `Export one of the calendar events found in the transcript's insights
as an iCalendar file. Use 'scribe open <file> --insights' to list events
with their index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), deps, cmd.OutOrStdout(), args[0], opts, true)
		},
	}
	addExportFlags(cmd, opts)
	cmd.Flags().IntVarP(&opts.event, "event", "e", 0, "Index of the calendar event to export")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Export every calendar event")
	return cmd
}

func addExportFlags(cmd *cobra.Command, opts *exportOptions) {
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", ".", "Directory to write the file to")
	cmd.Flags().StringVar(&opts.charset, "charset", "", "Text encoding of the input file (default utf-8)")
	cmd.Flags().StringArrayVarP(&opts.renames, "rename", "r", nil, "Rename a speaker, LABEL=Name (repeatable)")
}

func runExport(ctx context.Context, deps *CommandDeps, out io.Writer, path string, opts *exportOptions, calendar bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := deps.config()
	if err != nil {
		return err
	}

	store, err := openTranscript(path, opts.charset, opts.renames)
	if err != nil {
		return err
	}

	publisher, err := deps.publisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	ex := &exporter{deps: deps, publisher: publisher, dir: opts.dir, out: out}
	st := store.Snapshot()

	if !calendar {
		_, err := ex.transcript(ctx, st)
		return err
	}
	if !opts.all {
		_, err := ex.calendar(ctx, st, opts.event)
		return err
	}
	if len(st.Insights.CalendarEvents) == 0 {
		fmt.Fprintln(out, session.NoEventsText)
		return nil
	}
	for i := range st.Insights.CalendarEvents {
		if _, err := ex.calendar(ctx, st, i); err != nil {
			return err
		}
	}
	return nil
}

// openTranscript loads a transcript file into a fresh store and applies renames.
func openTranscript(path, charset string, renames []string) (*session.Store, error) {
	result, err := meeting.LoadFile(path, charset)
	if err != nil {
		return nil, err
	}
	store := session.NewStore()
	if err := store.Load(filepath.Base(path), result); err != nil {
		return nil, err
	}
	if err := applyRenames(store, renames); err != nil {
		return nil, err
	}
	return store, nil
}

// exportAll writes the transcript and every calendar event to dir.
func exportAll(ctx context.Context, ex *exporter, st session.State) error {
	if len(st.Transcript) > 0 {
		if _, err := ex.transcript(ctx, st); err != nil {
			return err
		}
	}
	for i := range st.Insights.CalendarEvents {
		if _, err := ex.calendar(ctx, st, i); err != nil {
			return err
		}
	}
	return nil
}
