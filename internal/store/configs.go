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

// Prompts is the conversational part of an agent configuration.
type Prompts struct {
	SystemPrompt            string   `json:"system_prompt,omitempty"`
	GreetingTemplate        string   `json:"greeting_template"`
	EmergencyTriggerPhrases []string `json:"emergency_trigger_phrases"`
}

// AgentConfig registers a voice-platform agent together with its prompts.
// VoiceSettings is opaque to this service and round-tripped untouched.
type AgentConfig struct {
	ID            uuid.UUID       `json:"id"`
	AgentID       string          `json:"agent_id"`
	AgentName     string          `json:"agent_name"`
	Prompts       Prompts         `json:"prompts"`
	VoiceSettings json.RawMessage `json:"voice_settings,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Conversation assembles the dialog configuration for this agent.
func (a AgentConfig) Conversation() dialog.Config {
	return dialog.Config{
		GreetingTemplate:        a.Prompts.GreetingTemplate,
		EmergencyTriggerPhrases: a.Prompts.EmergencyTriggerPhrases,
		VoiceSettings:           a.VoiceSettings,
	}
}

func (s *Store) CreateAgentConfig(ctx context.Context, a *AgentConfig) error {
	prompts, err := json.Marshal(a.Prompts)
	if err != nil {
		return fmt.Errorf("marshal prompts: %w", err)
	}
	var voice []byte
	if len(a.VoiceSettings) > 0 {
		voice = a.VoiceSettings
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO agent_configs (id, agent_id, agent_name, prompts, voice_settings, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6)`,
		a.ID, a.AgentID, a.AgentName, prompts, voice, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert agent config: %w", err)
	}
	return nil
}

func (s *Store) GetAgentConfig(ctx context.Context, id uuid.UUID) (*AgentConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, agent_id, agent_name, prompts, voice_settings, created_at
		FROM agent_configs WHERE id = $1`, id)
	return scanAgentConfig(row)
}

func (s *Store) ListAgentConfigs(ctx context.Context) ([]AgentConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id, agent_name, prompts, voice_settings, created_at
		FROM agent_configs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query agent configs: %w", err)
	}
	defer rows.Close()

	var configs []AgentConfig
	for rows.Next() {
		a, err := scanAgentConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent configs: %w", err)
	}
	return configs, nil
}

func scanAgentConfig(row rowScanner) (*AgentConfig, error) {
	var (
		a          AgentConfig
		promptsRaw []byte
		voiceRaw   []byte
	)
	err := row.Scan(&a.ID, &a.AgentID, &a.AgentName, &promptsRaw, &voiceRaw, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent config: %w", err)
	}
	if len(promptsRaw) > 0 {
		if err := json.Unmarshal(promptsRaw, &a.Prompts); err != nil {
			return nil, fmt.Errorf("parse prompts: %w", err)
		}
	}
	if len(voiceRaw) > 0 {
		a.VoiceSettings = json.RawMessage(voiceRaw)
	}
	return &a, nil
}
