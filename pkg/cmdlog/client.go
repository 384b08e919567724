// Package cmdlog records scribe command runs and persisted log entries in
// PostgreSQL.
package cmdlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"

	"github.com/otherjamesbrown/scribe-cli/config"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// maxTextLen bounds stored error messages and responses.
const maxTextLen = 500

// Client provides command log database operations.
type Client struct {
	db    *sql.DB
	agent string
}

// CommandEntry represents one CLI command run.
type CommandEntry struct {
	ID           int64     `json:"id"`
	Agent        string    `json:"agent"`
	Command      string    `json:"command"`
	Args         []string  `json:"args"`
	FullCommand  string    `json:"full_command"`
	DurationMs   int       `json:"duration_ms"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Response     string    `json:"response,omitempty"`
	Hostname     string    `json:"hostname,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewClient opens a connection pool from configuration.
func NewClient(cfg *config.CommandLogConfig) (*Client, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("command log not configured")
	}

	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A CLI needs very few connections.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewClientWithDB(db, cfg.GetAgent()), nil
}

// NewClientWithDB wraps an existing handle.
func NewClientWithDB(db *sql.DB, agent string) *Client {
	return &Client{db: db, agent: agent}
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// NewCommandEntry builds an entry for a finished command.
func NewCommandEntry(command string, args []string, started time.Time, runErr error) *CommandEntry {
	e := &CommandEntry{
		Command:     command,
		Args:        args,
		FullCommand: strings.TrimSpace("scribe " + command + " " + strings.Join(args, " ")),
		DurationMs:  int(time.Since(started).Milliseconds()),
		Success:     runErr == nil,
	}
	if runErr != nil {
		e.ErrorMessage = runErr.Error()
	}
	return e
}

// LogCommand records a CLI command run.
func (c *Client) LogCommand(ctx context.Context, entry *CommandEntry) error {
	agent := entry.Agent
	if agent == "" {
		agent = c.agent
	}

	hostname := entry.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	args := entry.Args
	if args == nil {
		args = []string{}
	}

	_, err := c.db.ExecContext(ctx, insertCommandSQL,
		agent,
		entry.Command,
		pq.Array(args),
		entry.FullCommand,
		entry.DurationMs,
		entry.Success,
		nullIfEmpty(truncate(entry.ErrorMessage, maxTextLen)),
		nullIfEmpty(truncate(entry.Response, maxTextLen)),
		nullIfEmpty(hostname),
	)
	if err != nil {
		return fmt.Errorf("logging command: %w", err)
	}

	return nil
}

// History returns recent commands, newest first. An empty agent matches all.
func (c *Client) History(ctx context.Context, agent string, limit int) ([]CommandEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.QueryContext(ctx, historySQL, nullIfEmpty(agent), limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []CommandEntry
	for rows.Next() {
		var e CommandEntry
		var errorMsg, response, hostname sql.NullString

		err := rows.Scan(
			&e.ID,
			&e.Agent,
			&e.Command,
			pq.Array(&e.Args),
			&e.FullCommand,
			&e.DurationMs,
			&e.Success,
			&errorMsg,
			&response,
			&hostname,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		e.ErrorMessage = errorMsg.String
		e.Response = response.String
		e.Hostname = hostname.String

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return entries, nil
}

// WriteBatch stores log entries in one transaction. It lets a Client back
// a logging.DBSink.
func (c *Client) WriteBatch(ctx context.Context, entries []logging.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertLogSQL)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		fields, err := encodeFields(e.Fields)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			e.Timestamp,
			e.Level,
			e.Service,
			e.Message,
			fields,
			nullIfEmpty(e.TraceID),
			nullIfEmpty(e.RequestID),
			nullIfEmpty(e.Caller),
		); err != nil {
			return fmt.Errorf("inserting log entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing log batch: %w", err)
	}
	return nil
}

var _ logging.LogWriter = (*Client)(nil)

// encodeFields renders fields as a JSON object, never null.
func encodeFields(fields map[string]string) ([]byte, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding log fields: %w", err)
	}
	return data, nil
}

// truncate truncates a string to maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// nullIfEmpty returns nil if s is empty, otherwise returns s.
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
