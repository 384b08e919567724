// Package cmd provides CLI commands for the scribe tool.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/otherjamesbrown/scribe-cli/client"
	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/credentials"
	"github.com/otherjamesbrown/scribe-cli/pkg/cmdlog"
	"github.com/otherjamesbrown/scribe-cli/pkg/events"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/session"
)

// Backend is the transcription service as the commands use it.
// *client.Client satisfies it.
type Backend interface {
	session.Backend
	Ping(ctx context.Context) (*client.PingResult, error)
}

// CommandDeps holds the dependencies shared by the scribe commands.
type CommandDeps struct {
	Config *config.CLIConfig
	Logger logging.Logger

	LoadConfig      func() (*config.CLIConfig, error)
	APIKey          func() (string, error)
	NewBackend      func(cfg *config.CLIConfig, apiKey string, log logging.Logger) (Backend, error)
	NewPublisher    func(cfg *config.RedisConfig, log logging.Logger) (*events.Publisher, error)
	NewCommandLog   func(cfg *config.CommandLogConfig) (*cmdlog.Client, error)
	CredentialStore func() (*credentials.Store, error)
	Now             func() time.Time
}

// DefaultDeps returns the default dependencies for production use.
func DefaultDeps() *CommandDeps {
	return &CommandDeps{
		LoadConfig: config.LoadConfig,
		APIKey:     credentials.ActiveAPIKey,
		NewBackend: func(cfg *config.CLIConfig, apiKey string, log logging.Logger) (Backend, error) {
			c, err := client.FromConfig(cfg, apiKey, log)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		NewPublisher:    events.NewPublisherFromConfig,
		NewCommandLog:   cmdlog.NewClient,
		CredentialStore: credentials.NewStore,
		Now:             time.Now,
	}
}

// config returns the loaded configuration, loading it on first use.
func (d *CommandDeps) config() (*config.CLIConfig, error) {
	if d.Config != nil {
		return d.Config, nil
	}
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	d.Config = cfg
	return cfg, nil
}

func (d *CommandDeps) logger() logging.Logger {
	if d.Logger == nil {
		return logging.NewNopLogger()
	}
	return d.Logger
}

func (d *CommandDeps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// backend builds the transcription client with the active API key.
func (d *CommandDeps) backend(cfg *config.CLIConfig) (Backend, error) {
	apiKey, err := d.APIKey()
	if err != nil {
		return nil, fmt.Errorf("resolving API key: %w", err)
	}
	b, err := d.NewBackend(cfg, apiKey, d.logger())
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	return b, nil
}

// publisher connects the event publisher. A nil publisher is returned, and
// is safe to use, when Redis is not configured.
func (d *CommandDeps) publisher(cfg *config.CLIConfig) (*events.Publisher, error) {
	if d.NewPublisher == nil || !cfg.Redis.IsConfigured() {
		return nil, nil
	}
	p, err := d.NewPublisher(cfg.Redis, d.logger())
	if err != nil {
		return nil, fmt.Errorf("connecting event publisher: %w", err)
	}
	return p, nil
}
