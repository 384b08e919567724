package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/scribe-cli/pkg/cmdlog"
)

// NewHistoryCommand creates the history command, which reads the command log.
func NewHistoryCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	var (
		limit  int
		agent  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently run scribe commands",
		Long: `List commands recorded in the PostgreSQL command log, newest first.

The command log is enabled by the command_log section of the config file
or the SCRIBE_COMMAND_LOG_* environment variables.

Examples:
  scribe history
  scribe history --limit 50 --agent ci
  scribe history -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), deps, cmd.OutOrStdout(), agent, limit, output)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of commands to list")
	cmd.Flags().StringVar(&agent, "agent", "", "Only list commands run by this agent")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func runHistory(ctx context.Context, deps *CommandDeps, out io.Writer, agent string, limit int, output string) error {
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
	if !cfg.CommandLog.IsConfigured() {
		return fmt.Errorf("command log is not configured (set command_log in the config file)")
	}
	if limit < 1 {
		limit = 1
	}

	db, err := deps.NewCommandLog(cfg.CommandLog)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	entries, err := db.History(ctx, agent, limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []cmdlog.CommandEntry{}
	}

	return writeOutput(out, format, entries, func(w io.Writer) error {
		if len(entries) == 0 {
			fmt.Fprintln(w, "No commands logged.")
			return nil
		}
		fmt.Fprintf(w, "%-20s %-8s %-8s %s\n", "WHEN", "STATUS", "TOOK", "COMMAND")
		for _, e := range entries {
			status := "ok"
			if !e.Success {
				status = "failed"
			}
			fmt.Fprintf(w, "%-20s %-8s %-8s %s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				status,
				(time.Duration(e.DurationMs) * time.Millisecond).String(),
				strings.TrimSpace(e.FullCommand),
			)
		}
		return nil
	})
}
