package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/scribe-cli/credentials"
)

// authOptions holds the auth login flags.
type authOptions struct {
	apiKey         string
	nonInteractive bool
	verify         bool
}

// NewAuthCommand creates the auth command group.
func NewAuthCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the backend API key",
		Long: `Manage the API key sent to the transcription backend.

The key is stored encrypted in ~/.scribe/credentials.yaml. The encryption
key lives in the system keyring, or comes from SCRIBE_ENCRYPTION_KEY (64 hex
characters), or is derived from SCRIBE_PASSPHRASE.

SCRIBE_API_KEY takes precedence over the stored key.`,
	}

	cmd.AddCommand(newAuthLoginCommand(deps))
	cmd.AddCommand(newAuthLogoutCommand(deps))
	cmd.AddCommand(newAuthStatusCommand(deps))
	return cmd
}

func newAuthLoginCommand(deps *CommandDeps) *cobra.Command {
	opts := &authOptions{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key",
		Long: `Store the backend API key.

Examples:
  # Prompt for the key (input is hidden)
  scribe auth login

  # Pass the key directly and check it against the backend
  scribe auth login --api-key sk-abc123... --verify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), deps, cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key to store")
	cmd.Flags().BoolVar(&opts.nonInteractive, "non-interactive", false, "Fail instead of prompting for input")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "Ping the backend with the key before storing it")
	return cmd
}

func newAuthLogoutCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API key",
		Long: `Remove the stored API key. SCRIBE_API_KEY is not affected.

Examples:
  scribe auth logout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(deps, cmd.OutOrStdout())
		},
	}
}

func newAuthStatusCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which API key is active",
		Long: `Show where the active API key comes from, masked.

Examples:
  scribe auth status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(deps, cmd.OutOrStdout())
		},
	}
}

func runLogin(ctx context.Context, deps *CommandDeps, in io.Reader, out io.Writer, opts *authOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := deps.config()
	if err != nil {
		return err
	}

	apiKey := strings.TrimSpace(opts.apiKey)
	if apiKey == "" {
		if opts.nonInteractive {
			return fmt.Errorf("no API key provided (use --api-key)")
		}
		apiKey, err = promptForAPIKey(in, out)
		if err != nil {
			return err
		}
	}
	if err := validateAPIKey(apiKey); err != nil {
		return err
	}

	if opts.verify {
		backend, err := deps.NewBackend(cfg, apiKey, deps.logger())
		if err != nil {
			return fmt.Errorf("creating backend client: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := backend.Ping(pingCtx); err != nil {
			return fmt.Errorf("verifying API key: %w", err)
		}
	}

	store, err := deps.CredentialStore()
	if err != nil {
		return fmt.Errorf("initializing credential store: %w", err)
	}
	if err := store.Save(&credentials.Credentials{APIKey: apiKey, BackendURL: cfg.BackendURL}); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	credPath, _ := credentials.CredentialsPath()
	fmt.Fprintln(out, "API key stored.")
	fmt.Fprintf(out, "  API Key: %s\n", credentials.MaskAPIKey(apiKey))
	fmt.Fprintf(out, "  Backend: %s\n", cfg.BackendURL)
	fmt.Fprintf(out, "  Stored in: %s (%s)\n", credPath, store.KeyDescription())
	return nil
}

// promptForAPIKey reads the key with echo off when in is a terminal.
func promptForAPIKey(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "API Key: ")

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// validateAPIKey performs basic validation on a key.
func validateAPIKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("API key is empty")
	}
	if len(apiKey) < 8 {
		return fmt.Errorf("API key is too short")
	}
	if strings.ContainsAny(apiKey, " \t\r\n") {
		return fmt.Errorf("API key must not contain whitespace")
	}
	return nil
}

func runLogout(deps *CommandDeps, out io.Writer) error {
	store, err := deps.CredentialStore()
	if err != nil {
		return fmt.Errorf("initializing credential store: %w", err)
	}

	if !store.Exists() {
		fmt.Fprintln(out, "No stored credentials found.")
		return nil
	}
	if err := store.Delete(); err != nil {
		return fmt.Errorf("removing credentials: %w", err)
	}
	fmt.Fprintln(out, "Logged out. The stored API key has been removed.")

	if os.Getenv(credentials.EnvAPIKey) != "" {
		fmt.Fprintf(out, "\nNote: %s is still set.\n", credentials.EnvAPIKey)
		fmt.Fprintf(out, "Unset it with: unset %s\n", credentials.EnvAPIKey)
	}
	return nil
}

func runAuthStatus(deps *CommandDeps, out io.Writer) error {
	fmt.Fprintln(out, "Authentication Status")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)

	envKey := os.Getenv(credentials.EnvAPIKey)
	if envKey != "" {
		fmt.Fprintf(out, "%s: %s (active)\n\n", credentials.EnvAPIKey, credentials.MaskAPIKey(envKey))
	}

	path, err := credentials.CredentialsPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "Stored API key: none")
		if envKey == "" {
			fmt.Fprintln(out, "\nNo API key configured. Run 'scribe auth login' if the backend requires one.")
		}
		return nil
	}

	store, err := deps.CredentialStore()
	if err != nil {
		return fmt.Errorf("initializing credential store: %w", err)
	}
	creds, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	fmt.Fprintln(out, "Stored API key:")
	fmt.Fprintf(out, "  API Key: %s\n", credentials.MaskAPIKey(creds.APIKey))
	fmt.Fprintf(out, "  Key ID: %s\n", credentials.KeyID(creds.APIKey))
	if creds.BackendURL != "" {
		fmt.Fprintf(out, "  Backend: %s\n", creds.BackendURL)
	}
	fmt.Fprintf(out, "  Last Updated: %s\n", creds.LastUpdated.Format(time.RFC3339))
	fmt.Fprintf(out, "  Encryption: %s\n", store.KeyDescription())

	fmt.Fprintln(out)
	if envKey != "" {
		fmt.Fprintf(out, "Active source: environment (%s takes precedence)\n", credentials.EnvAPIKey)
	} else {
		fmt.Fprintln(out, "Active source: stored credentials")
	}
	return nil
}
