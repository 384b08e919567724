package cmd

import (
	"io"

	"github.com/spf13/cobra"
)

// openOptions holds the open command flags.
type openOptions struct {
	charset  string
	renames  []string
	insights bool
	output   string
}

// NewOpenCommand creates the open command.
func NewOpenCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	opts := &openOptions{}

	cmd := &cobra.Command{
		Use:   "open <file>",
		Short: "Show a saved transcript",
		Long: `Load a transcript from disk and print it.

Supported files:
  .json   Backend response or a file written by 'scribe upload --save'
  .txt    A previous 'scribe export transcript' ("[m:ss] Name: text")
  .vtt    WebVTT captions with <v Speaker> voice tags

Examples:
  scribe open standup.json --insights
  scribe open notes.txt --charset windows-1252
  scribe open captions.vtt --rename "Speaker 1=Alice" -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(deps, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.charset, "charset", "", "Text encoding of the file (default utf-8)")
	cmd.Flags().StringArrayVarP(&opts.renames, "rename", "r", nil, "Rename a speaker, LABEL=Name (repeatable)")
	cmd.Flags().BoolVarP(&opts.insights, "insights", "i", false, "Print the meeting analysis after the transcript")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runOpen(deps *CommandDeps, out io.Writer, path string, opts *openOptions) error {
	cfg, err := deps.config()
	if err != nil {
		return err
	}
	format, err := resolveFormat(opts.output, cfg)
	if err != nil {
		return err
	}

	store, err := openTranscript(path, opts.charset, opts.renames)
	if err != nil {
		return err
	}
	st := store.Snapshot()

	return writeOutput(out, format, newTranscriptView(st), func(w io.Writer) error {
		return printTranscript(w, st, opts.insights)
	})
}
