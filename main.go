// Package main provides the scribe CLI entry point.
// scribe uploads meeting recordings to a transcription backend and works
// with the speaker-attributed transcripts and insights it returns.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/scribe-cli/cmd"
	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/pkg/buildinfo"
	"github.com/otherjamesbrown/scribe-cli/pkg/cmdlog"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// Global flags and state.
var (
	backendURL   string
	timeout      time.Duration
	outputFormat string
	debug        bool

	// cfg holds the loaded configuration.
	cfg *config.CLIConfig

	// deps is shared by every subcommand.
	deps = cmd.DefaultDeps()

	// Command logging state.
	cmdStartTime  time.Time
	cmdOutputBuf  *bytes.Buffer
	outputCapture *outputTee
)

// outputTee captures output while still writing to the original destination.
type outputTee struct {
	writer io.Writer
	buffer *bytes.Buffer
}

func (t *outputTee) Write(p []byte) (n int, err error) {
	t.buffer.Write(p)
	return t.writer.Write(p)
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Scribe CLI - meeting transcription and insights",
	Long: `scribe sends meeting recordings to a transcription backend and works with
the speaker-attributed transcript and meeting insights it returns.

COMMON WORKFLOWS:
  Transcribe:        scribe upload standup.mp3 --rename A=Alice --insights
  Keep a copy:       scribe upload standup.mp3 --save standup.json
  Revisit later:     scribe open standup.json --insights
  Export documents:  scribe export transcript standup.json
                     scribe export calendar standup.json --event 0
  Browser UI:        scribe serve

SETUP:
  scribe config init          Write ~/.scribe/config.yaml with defaults
  scribe config set backend_url http://gpu-box:8000
  scribe auth login           Store the backend API key
  scribe status               Check the backend is reachable`,
	SilenceUsage: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		cmdStartTime = time.Now()

		cmdOutputBuf = &bytes.Buffer{}
		outputCapture = &outputTee{writer: os.Stdout, buffer: cmdOutputBuf}

		if skipsConfig(c) {
			return nil
		}

		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if err := applyFlags(loaded); err != nil {
			return err
		}
		logger := cmd.NewLogger(loaded)
		logging.SetGlobal(logger)

		cfg = loaded
		deps.Config = cfg
		deps.Logger = logger

		// Capture output for the command log.
		if cfg.CommandLog.IsConfigured() {
			c.SetOut(outputCapture)
		}
		return nil
	},
}

// skipsConfig reports whether a command runs without loading configuration.
func skipsConfig(c *cobra.Command) bool {
	switch c.Name() {
	case "version", "help", "completion", "init", "set":
		return true
	}
	return false
}

// applyFlags overrides loaded configuration with command-line flags.
func applyFlags(c *config.CLIConfig) error {
	if backendURL != "" {
		c.BackendURL = backendURL
	}
	if timeout != 0 {
		c.Timeout = timeout
	}
	if outputFormat != "" {
		c.OutputFormat = config.OutputFormat(outputFormat)
	}
	if debug {
		c.Debug = true
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// Version command flags.
var versionOutputJSON bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the scribe CLI.

Examples:
  scribe version
  scribe version --output-json`,
	RunE: func(c *cobra.Command, args []string) error {
		info := buildinfo.Get("scribe")
		out := c.OutOrStdout()

		if versionOutputJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		fmt.Fprintf(out, "scribe version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  user agent: %s\n", buildinfo.UserAgent())
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and modify the scribe CLI configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current CLI configuration values.`,
	RunE: func(c *cobra.Command, args []string) error {
		if cfg == nil {
			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
		}

		configPath, _ := config.ConfigPath()
		out := c.OutOrStdout()

		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:    %s\n", configPath)
		fmt.Fprintf(out, "  Backend URL:    %s\n", cfg.BackendURL)
		fmt.Fprintf(out, "  Upload URL:     %s\n", cfg.UploadURL())
		fmt.Fprintf(out, "  Timeout:        %s\n", cfg.Timeout)
		fmt.Fprintf(out, "  Output format:  %s\n", cfg.OutputFormat)
		fmt.Fprintf(out, "  Listen address: %s\n", cfg.ListenAddress)
		fmt.Fprintf(out, "  Max upload:     %d MB\n", cfg.MaxUploadMB)
		fmt.Fprintf(out, "  Debug:          %t\n", cfg.Debug)
		fmt.Fprintf(out, "  Events:         %s\n", describeRedis(cfg.Redis))
		fmt.Fprintf(out, "  Command log:    %s\n", describeCommandLog(cfg.CommandLog))

		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(c *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}
		out := c.OutOrStdout()

		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'scribe config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Backend URL:    %s\n", defaultCfg.BackendURL)
		fmt.Fprintf(out, "  Timeout:        %s\n", defaultCfg.Timeout)
		fmt.Fprintf(out, "  Output format:  %s\n", defaultCfg.OutputFormat)
		fmt.Fprintf(out, "  Listen address: %s\n", defaultCfg.ListenAddress)

		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  backend_url     - Transcription backend base URL
  upload_path     - Upload endpoint path (default /upload)
  timeout         - Request timeout (e.g., 90s, 10m)
  output_format   - Default output format (text, json, yaml)
  listen_address  - Address for 'scribe serve'
  max_upload_mb   - Largest accepted audio file in MB
  debug           - Enable debug logging (true/false)
  log_json        - Log JSON lines instead of console output (true/false)
  redis_addr      - Redis address for event publishing (empty disables)

Examples:
  scribe config set backend_url http://gpu-box:8000
  scribe config set timeout 15m
  scribe config set output_format json`,
	Args: cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		currentCfg, err := config.LoadConfig()
		if err != nil {
			// If config doesn't exist or is invalid, start with defaults.
			currentCfg = config.DefaultConfig()
		}

		if err := setConfigValue(currentCfg, key, value); err != nil {
			return err
		}
		if err := currentCfg.Validate(); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}

		if err := config.SaveConfig(currentCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(c.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

// setConfigValue applies one key to c.
func setConfigValue(c *config.CLIConfig, key, value string) error {
	switch key {
	case "backend_url":
		c.BackendURL = value
	case "upload_path":
		c.UploadPath = value
	case "timeout":
		duration, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		c.Timeout = duration
	case "output_format":
		format := config.OutputFormat(value)
		if !format.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
		}
		c.OutputFormat = format
	case "listen_address":
		c.ListenAddress = value
	case "max_upload_mb":
		mb, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid max_upload_mb value: %w", err)
		}
		c.MaxUploadMB = mb
	case "debug":
		b, err := parseBool(key, value)
		if err != nil {
			return err
		}
		c.Debug = b
	case "log_json":
		b, err := parseBool(key, value)
		if err != nil {
			return err
		}
		c.LogJSON = b
	case "redis_addr":
		if value == "" {
			c.Redis = nil
			return nil
		}
		if c.Redis == nil {
			c.Redis = &config.RedisConfig{}
		}
		c.Redis.Addr = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func parseBool(key, value string) (bool, error) {
	switch value {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s value: %s (must be true or false)", key, value)
}

func describeRedis(r *config.RedisConfig) string {
	if !r.IsConfigured() {
		return "(disabled)"
	}
	return fmt.Sprintf("%s (channels %s.*)", r.Addr, r.GetChannelPrefix())
}

func describeCommandLog(c *config.CommandLogConfig) string {
	if !c.IsConfigured() {
		return "(disabled)"
	}
	return fmt.Sprintf("%s@%s/%s", c.User, c.Host, c.Database)
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for scribe.

To load completions:

Bash:
  $ source <(scribe completion bash)

Zsh:
  $ scribe completion zsh > "${fpath[1]}/_scribe"

Fish:
  $ scribe completion fish | source

PowerShell:
  PS> scribe completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(c *cobra.Command, args []string) error {
		out := c.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "transcription backend base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "request timeout (e.g., 90s, 10m)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "default output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add command groups for organized help output.
	rootCmd.AddGroup(
		&cobra.Group{ID: "meetings", Title: "Meetings:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	// Meetings
	uploadCmd := cmd.NewUploadCommand(deps)
	uploadCmd.GroupID = "meetings"
	rootCmd.AddCommand(uploadCmd)

	openCmd := cmd.NewOpenCommand(deps)
	openCmd.GroupID = "meetings"
	rootCmd.AddCommand(openCmd)

	exportCmd := cmd.NewExportCommand(deps)
	exportCmd.GroupID = "meetings"
	rootCmd.AddCommand(exportCmd)

	serveCmd := cmd.NewServeCommand(deps)
	serveCmd.GroupID = "meetings"
	rootCmd.AddCommand(serveCmd)

	// Operations
	statusCmd := cmd.NewStatusCommand(deps)
	statusCmd.GroupID = "ops"
	rootCmd.AddCommand(statusCmd)

	historyCmd := cmd.NewHistoryCommand(deps)
	historyCmd.GroupID = "ops"
	rootCmd.AddCommand(historyCmd)

	// Setup
	configCmd.GroupID = "setup"
	rootCmd.AddCommand(configCmd)

	authCmd := cmd.NewAuthCommand(deps)
	authCmd.GroupID = "setup"
	rootCmd.AddCommand(authCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)

	// Config subcommands.
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Execute root command and capture the error for logging.
	cmdErr := rootCmd.ExecuteContext(ctx)

	// Logged here to capture both success and failure.
	logCommandExecution(os.Args, cmdErr)

	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
		stop()
		os.Exit(1)
	}
}

// logCommandExecution records the CLI command in the command log.
// This is best-effort: failures are only reported in debug mode.
func logCommandExecution(args []string, cmdErr error) {
	if cfg == nil || !cfg.CommandLog.IsConfigured() {
		return
	}

	if len(args) > 1 {
		switch args[1] {
		case "version", "help", "completion", "history":
			return
		}
	}

	entry := cmdlog.NewCommandEntry(getCommandName(args), getCommandArgs(args), cmdStartTime, cmdErr)
	if cmdOutputBuf != nil {
		entry.Response = cmdOutputBuf.String()
	}

	// PersistentPreRunE set the global logger before cfg was assigned.
	log := logging.Global()

	client, err := cmdlog.NewClient(cfg.CommandLog)
	if err != nil {
		if cfg.Debug {
			log.Warn("Command log unavailable", logging.Err(err))
		}
		return
	}
	defer client.Close()

	logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.LogCommand(logCtx, entry); err != nil {
		if cfg.Debug {
			log.Warn("Failed to log command", logging.Err(err), logging.F("command", entry.Command))
		}
	}
}

// getCommandName extracts the command name from args (e.g., "upload" from ["scribe", "upload", "a.mp3"]).
func getCommandName(args []string) string {
	for i := 1; i < len(args); i++ {
		if !strings.HasPrefix(args[i], "-") {
			return args[i]
		}
	}
	return "scribe"
}

// getCommandArgs extracts the arguments after the command name.
func getCommandArgs(args []string) []string {
	for i := 1; i < len(args); i++ {
		if !strings.HasPrefix(args[i], "-") {
			if i+1 >= len(args) {
				return nil
			}
			return args[i+1:]
		}
	}
	return nil
}
