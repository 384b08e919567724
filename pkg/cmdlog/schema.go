package cmdlog

import (
	"context"
	"fmt"
)

// schema creates the tables scribe writes to. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS scribe_commands (
		id            BIGSERIAL PRIMARY KEY,
		agent         TEXT NOT NULL,
		command       TEXT NOT NULL,
		args          TEXT[] NOT NULL DEFAULT '{}',
		full_command  TEXT NOT NULL,
		duration_ms   INTEGER NOT NULL,
		success       BOOLEAN NOT NULL,
		error_message TEXT,
		response      TEXT,
		hostname      TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS scribe_commands_agent_created_idx
		ON scribe_commands (agent, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS scribe_logs (
		id         BIGSERIAL PRIMARY KEY,
		logged_at  TIMESTAMPTZ NOT NULL,
		level      TEXT NOT NULL,
		service    TEXT NOT NULL,
		message    TEXT NOT NULL,
		fields     JSONB NOT NULL DEFAULT '{}',
		trace_id   TEXT,
		request_id TEXT,
		caller     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS scribe_logs_logged_at_idx ON scribe_logs (logged_at DESC)`,
}

const insertCommandSQL = `
	INSERT INTO scribe_commands
		(agent, command, args, full_command, duration_ms, success, error_message, response, hostname)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const historySQL = `
	SELECT id, agent, command, args, full_command, duration_ms, success,
	       error_message, response, hostname, created_at
	FROM scribe_commands
	WHERE $1::text IS NULL OR agent = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2`

const insertLogSQL = `
	INSERT INTO scribe_logs
		(logged_at, level, service, message, fields, trace_id, request_id, caller)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// EnsureSchema creates the command log tables if they are missing.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
