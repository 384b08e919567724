package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/scribe-cli/config"
	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
	"github.com/otherjamesbrown/scribe-cli/pkg/export"
	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
	"github.com/otherjamesbrown/scribe-cli/pkg/session"
)

// SegmentView is one transcript line as printed by the CLI.
type SegmentView struct {
	Offset  string `json:"offset" yaml:"offset"`
	Label   string `json:"label" yaml:"label"`
	Speaker string `json:"speaker" yaml:"speaker"`
	Text    string `json:"text" yaml:"text"`
}

// TranscriptView is the structured output of upload and open.
type TranscriptView struct {
	Source   string            `json:"source" yaml:"source"`
	Speakers map[string]string `json:"speakers" yaml:"speakers"`
	Segments []SegmentView     `json:"segments" yaml:"segments"`
	Insights meeting.Insights  `json:"insights" yaml:"insights"`
}

// newTranscriptView resolves every segment's display name from the mapping.
func newTranscriptView(st session.State) TranscriptView {
	view := TranscriptView{
		Source:   st.Source,
		Speakers: st.Speakers.Names(),
		Segments: make([]SegmentView, 0, len(st.Transcript)),
		Insights: st.Insights,
	}
	for _, seg := range st.Transcript {
		view.Segments = append(view.Segments, SegmentView{
			Offset:  meeting.FormatOffset(seg.Start),
			Label:   seg.Speaker,
			Speaker: st.Speakers.Resolve(seg.Speaker),
			Text:    seg.Text,
		})
	}
	return view
}

// writeOutput encodes v as JSON or YAML, or calls text for the text format.
func writeOutput(w io.Writer, format config.OutputFormat, v interface{}, text func(io.Writer) error) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

// printTranscript writes the export text followed by the analysis, if any.
func printTranscript(w io.Writer, st session.State, withInsights bool) error {
	fmt.Fprintf(w, "%s (%d segments, %d speakers)\n\n", st.Source, len(st.Transcript), st.Speakers.Len())
	fmt.Fprintln(w, export.Transcript(st.Transcript, st.Speakers))

	if !withInsights || st.Insights.Empty() {
		return nil
	}
	in := st.Insights
	if in.Summary != "" {
		fmt.Fprintf(w, "\n%s\n  %s\n", session.InsightsSummary.Label(), in.Summary)
	}
	if len(in.Conflicts) > 0 {
		fmt.Fprintf(w, "\n%s\n", session.InsightsConflicts.Label())
		for _, c := range in.Conflicts {
			fmt.Fprintf(w, "  - %s: %s\n", c.Point, c.Resolution)
		}
	}
	if len(in.CalendarEvents) > 0 {
		fmt.Fprintf(w, "\n%s\n", session.InsightsCalendar.Label())
		for i, e := range in.CalendarEvents {
			fmt.Fprintf(w, "  [%d] %s  %s %s\n", i, e.Title, e.Date, e.Time)
		}
	}
	if len(in.MindMap) > 0 {
		fmt.Fprintf(w, "\n%s\n", session.InsightsMindMap.Label())
		for _, n := range in.MindMap {
			fmt.Fprintf(w, "  %s\n", n.Topic)
			for _, sub := range n.Subtopics {
				fmt.Fprintf(w, "    - %s\n", sub)
			}
		}
	}
	return nil
}

// parseRenames reads LABEL=Name pairs.
func parseRenames(pairs []string) ([][2]string, error) {
	out := make([][2]string, 0, len(pairs))
	for _, p := range pairs {
		label, name, ok := strings.Cut(p, "=")
		label, name = strings.TrimSpace(label), strings.TrimSpace(name)
		if !ok || label == "" || name == "" {
			return nil, fmt.Errorf("%w: rename %q must look like LABEL=Name", scerrors.ErrValidation, p)
		}
		out = append(out, [2]string{label, name})
	}
	return out, nil
}

// applyRenames writes each pair into the store's speaker mapping in order.
func applyRenames(store *session.Store, pairs []string) error {
	renames, err := parseRenames(pairs)
	if err != nil {
		return err
	}
	for _, r := range renames {
		if err := store.Rename(r[0], r[1]); err != nil {
			return err
		}
	}
	return nil
}

// resolveFormat picks the output format from a flag value or the config.
func resolveFormat(flag string, cfg *config.CLIConfig) (config.OutputFormat, error) {
	if flag == "" {
		return cfg.OutputFormat, nil
	}
	f := config.OutputFormat(flag)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", flag)
	}
	return f, nil
}

// writeFile writes body to dir/name, creating dir, and returns the path.
func writeFile(dir, name string, body []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// savedResult keeps the segments' speaker labels as the backend sent them
// and records display names beside them, so reopening restores the renames
// without merging speakers that share a name.
func savedResult(st session.State) *meeting.Result {
	return &meeting.Result{
		Segments: meeting.CloneSegments(st.Transcript),
		Insights: st.Insights.Clone(),
		Speakers: st.Speakers.Names(),
	}
}
