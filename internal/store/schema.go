package store

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_configs (
	id             UUID PRIMARY KEY,
	agent_id       TEXT NOT NULL,
	agent_name     TEXT NOT NULL DEFAULT '',
	prompts        JSONB NOT NULL DEFAULT '{}'::jsonb,
	voice_settings JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS calls (
	id                  UUID PRIMARY KEY,
	driver_name         TEXT NOT NULL,
	load_number         TEXT NOT NULL,
	agent_config_id     UUID NOT NULL REFERENCES agent_configs(id),
	gps_location        TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT 'queued',
	retell_call_id      TEXT NOT NULL DEFAULT '',
	retell_access_token TEXT NOT NULL DEFAULT '',
	transcript          JSONB NOT NULL DEFAULT '[]'::jsonb,
	dialog_state        JSONB,
	summary             JSONB,
	started_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at        TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls (started_at DESC);
CREATE INDEX IF NOT EXISTS idx_calls_retell_call_id ON calls (retell_call_id);
`

// EnsureSchema creates the tables if they do not exist yet. Idempotent, run
// at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
