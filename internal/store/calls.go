package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/checkcall/internal/dialog"
)

// Call statuses.
const (
	StatusQueued     = "queued"
	StatusNotJoined  = "not_joined"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Call is one check-in call record. Transcript and summary are stored as
// jsonb; DialogState is nil for rows written before a reply was computed,
// in which case state is recovered from transcript markers.
type Call struct {
	ID                uuid.UUID        `json:"id"`
	DriverName        string           `json:"driver_name"`
	LoadNumber        string           `json:"load_number"`
	AgentConfigID     uuid.UUID        `json:"agent_config_id"`
	GPSLocation       string           `json:"gps_location,omitempty"`
	Status            string           `json:"status"`
	RetellCallID      string           `json:"retell_call_id,omitempty"`
	RetellAccessToken string           `json:"retell_call_access_token,omitempty"`
	Transcript        []dialog.Message `json:"transcript"`
	DialogState       *dialog.State    `json:"dialog_state,omitempty"`
	Summary           json.RawMessage  `json:"summary,omitempty"`
	StartedAt         time.Time        `json:"started_at"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
}

const callColumns = `id, driver_name, load_number, agent_config_id, gps_location, status,
	retell_call_id, retell_access_token, transcript, dialog_state, summary, started_at, completed_at`

func (s *Store) CreateCall(ctx context.Context, c *Call) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO calls (id, driver_name, load_number, agent_config_id, gps_location, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.DriverName, c.LoadNumber, c.AgentConfigID, c.GPSLocation, c.Status, c.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

func (s *Store) GetCall(ctx context.Context, id uuid.UUID) (*Call, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1`, id)
	return scanCall(row)
}

// GetCallByRetellID resolves a call from the platform's call id, used when a
// webhook event arrives without our metadata attached.
func (s *Store) GetCallByRetellID(ctx context.Context, retellCallID string) (*Call, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE retell_call_id = $1`, retellCallID)
	return scanCall(row)
}

func (s *Store) ListCalls(ctx context.Context) ([]Call, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+callColumns+` FROM calls ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

func (s *Store) UpdateCallStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE calls SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCallHandles records the platform call id and access token returned by
// the voice platform when a call is created.
func (s *Store) SetCallHandles(ctx context.Context, id uuid.UUID, status, retellCallID, accessToken string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE calls SET status = $1, retell_call_id = $2, retell_access_token = $3
		WHERE id = $4`,
		status, retellCallID, accessToken, id,
	)
	if err != nil {
		return fmt.Errorf("set call handles: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendTranscript appends messages to a call's transcript. The jsonb
// concatenation runs as one statement, so Postgres row locking serializes
// concurrent appends for the same call and no update is lost.
func (s *Store) AppendTranscript(ctx context.Context, id uuid.UUID, msgs []dialog.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	payload, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal transcript messages: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE calls SET transcript = COALESCE(transcript, '[]'::jsonb) || $1::jsonb
		WHERE id = $2`,
		payload, id,
	)
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetDialogState(ctx context.Context, id uuid.UUID, st dialog.State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal dialog state: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE calls SET dialog_state = $1::jsonb WHERE id = $2`, payload, id)
	if err != nil {
		return fmt.Errorf("set dialog state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetSummary(ctx context.Context, id uuid.UUID, summary any) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE calls SET summary = $1::jsonb WHERE id = $2`, payload, id)
	if err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteCall marks a call completed with its summary in one update.
func (s *Store) CompleteCall(ctx context.Context, id uuid.UUID, summary any) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE calls SET status = $1, summary = $2::jsonb, completed_at = now()
		WHERE id = $3`,
		StatusCompleted, payload, id,
	)
	if err != nil {
		return fmt.Errorf("complete call: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*Call, error) {
	var (
		c             Call
		transcriptRaw []byte
		stateRaw      []byte
		summaryRaw    []byte
	)
	err := row.Scan(
		&c.ID, &c.DriverName, &c.LoadNumber, &c.AgentConfigID, &c.GPSLocation, &c.Status,
		&c.RetellCallID, &c.RetellAccessToken, &transcriptRaw, &stateRaw, &summaryRaw,
		&c.StartedAt, &c.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan call: %w", err)
	}

	if len(transcriptRaw) > 0 {
		if err := json.Unmarshal(transcriptRaw, &c.Transcript); err != nil {
			return nil, fmt.Errorf("parse transcript: %w", err)
		}
	}
	if len(stateRaw) > 0 {
		var st dialog.State
		if err := json.Unmarshal(stateRaw, &st); err != nil {
			return nil, fmt.Errorf("parse dialog state: %w", err)
		}
		c.DialogState = &st
	}
	if len(summaryRaw) > 0 {
		c.Summary = json.RawMessage(summaryRaw)
	}
	return &c, nil
}
