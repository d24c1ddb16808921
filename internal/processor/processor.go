package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/checkcall/internal/dialog"
	"github.com/MikeSquared-Agency/checkcall/internal/events"
	"github.com/MikeSquared-Agency/checkcall/internal/notify"
	"github.com/MikeSquared-Agency/checkcall/internal/retell"
	"github.com/MikeSquared-Agency/checkcall/internal/store"
	"github.com/MikeSquared-Agency/checkcall/internal/summary"
)

// ErrPlatform marks failures talking to the voice platform, so the API layer
// can surface them as a bad gateway instead of a server fault.
var ErrPlatform = errors.New("voice platform error")

// Processor orchestrates the check-in call pipeline: call creation on the
// voice platform, webhook event handling, next-utterance decisions and
// post-call summarization.
type Processor struct {
	store         *store.Store
	engine        *dialog.Engine
	retell        *retell.Client
	events        *events.Client
	notifier      *notify.Poster
	publicBaseURL string
	logger        *slog.Logger
}

func New(s *store.Store, r *retell.Client, ev *events.Client, n *notify.Poster, publicBaseURL string, logger *slog.Logger) *Processor {
	return &Processor{
		store:         s,
		engine:        dialog.NewEngine(),
		retell:        r,
		events:        ev,
		notifier:      n,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

type StartCallRequest struct {
	DriverName    string    `json:"driver_name"`
	LoadNumber    string    `json:"load_number"`
	AgentConfigID uuid.UUID `json:"agent_config_id"`
	GPSLocation   string    `json:"gps_location,omitempty"`
}

type RegisterAgentRequest struct {
	AgentName          string          `json:"agent_name"`
	VoiceID            string          `json:"voice_id"`
	ConversationFlowID string          `json:"conversation_flow_id"`
	Prompts            store.Prompts   `json:"prompts"`
	VoiceSettings      json.RawMessage `json:"voice_settings,omitempty"`
}

// StartCall creates a call record and a matching web call on the platform.
// The record is created first so the platform metadata can carry its id; a
// platform failure leaves the row marked failed for the audit trail.
func (p *Processor) StartCall(ctx context.Context, req StartCallRequest) (*store.Call, error) {
	if req.DriverName == "" || req.LoadNumber == "" {
		return nil, fmt.Errorf("driver_name and load_number are required")
	}
	agent, err := p.store.GetAgentConfig(ctx, req.AgentConfigID)
	if err != nil {
		return nil, fmt.Errorf("load agent config: %w", err)
	}

	call := &store.Call{
		ID:            uuid.New(),
		DriverName:    req.DriverName,
		LoadNumber:    req.LoadNumber,
		AgentConfigID: agent.ID,
		GPSLocation:   req.GPSLocation,
		Status:        store.StatusQueued,
		StartedAt:     time.Now().UTC(),
	}
	if err := p.store.CreateCall(ctx, call); err != nil {
		return nil, fmt.Errorf("create call: %w", err)
	}

	web, err := p.retell.StartWebCall(ctx, agent.AgentID, req.DriverName, req.LoadNumber, map[string]string{
		"call_id": call.ID.String(),
	})
	if err != nil {
		if uerr := p.store.UpdateCallStatus(ctx, call.ID, store.StatusFailed); uerr != nil {
			p.logger.Error("failed to mark call failed", "call_id", call.ID, "error", uerr)
		}
		return nil, fmt.Errorf("%w: %v", ErrPlatform, err)
	}

	if err := p.store.SetCallHandles(ctx, call.ID, store.StatusNotJoined, web.CallID, web.AccessToken); err != nil {
		return nil, fmt.Errorf("store call handles: %w", err)
	}
	call.Status = store.StatusNotJoined
	call.RetellCallID = web.CallID
	call.RetellAccessToken = web.AccessToken

	p.logger.Info("call created", "call_id", call.ID, "retell_call_id", web.CallID, "driver", req.DriverName)
	return call, nil
}

func (p *Processor) GetCall(ctx context.Context, id uuid.UUID) (*store.Call, error) {
	return p.store.GetCall(ctx, id)
}

func (p *Processor) ListCalls(ctx context.Context) ([]store.Call, error) {
	return p.store.ListCalls(ctx)
}

// NextReply computes and records the agent's next utterance for a call.
// State is taken from the stored record when present and recovered from
// transcript markers otherwise.
func (p *Processor) NextReply(ctx context.Context, callID uuid.UUID) (string, error) {
	call, err := p.store.GetCall(ctx, callID)
	if err != nil {
		return "", err
	}
	agent, err := p.store.GetAgentConfig(ctx, call.AgentConfigID)
	if err != nil {
		return "", fmt.Errorf("load agent config: %w", err)
	}

	var st dialog.State
	if call.DialogState != nil {
		st = *call.DialogState
	} else {
		st = dialog.StateFromTranscript(call.Transcript)
	}
	wasEscalated := st.EmergencyEscalated

	decision, err := p.engine.Next(call.Transcript, agent.Conversation(), dialog.Context{
		DriverName:  call.DriverName,
		LoadNumber:  call.LoadNumber,
		GPSLocation: call.GPSLocation,
	}, st)
	if err != nil {
		return "", fmt.Errorf("compute reply: %w", err)
	}

	msg := dialog.Message{
		Role:      dialog.RoleAgent,
		Text:      decision.Reply,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.store.AppendTranscript(ctx, call.ID, []dialog.Message{msg}); err != nil {
		return "", fmt.Errorf("append reply: %w", err)
	}
	if err := p.store.SetDialogState(ctx, call.ID, decision.State); err != nil {
		return "", fmt.Errorf("store dialog state: %w", err)
	}

	if decision.State.EmergencyEscalated && !wasEscalated {
		p.publish(events.SubjectCallEscalated, call, "")
		if p.notifier != nil {
			if err := p.notifier.PostEscalation(ctx, call.ID.String(), call.DriverName, call.LoadNumber, nil); err != nil {
				p.logger.Error("failed to post escalation alert", "call_id", call.ID, "error", err)
			}
		}
	}

	return decision.Reply, nil
}

// RefreshSummary recomputes and stores the summary from the current
// transcript, without touching call status.
func (p *Processor) RefreshSummary(ctx context.Context, callID uuid.UUID) (summary.Summary, error) {
	call, err := p.store.GetCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	sum := summary.Summarize(call.Transcript)
	if err := p.store.SetSummary(ctx, call.ID, sum); err != nil {
		return nil, fmt.Errorf("store summary: %w", err)
	}
	return sum, nil
}

// HandlePlatformEvent is the NATS handler for voice.platform.event.
func (p *Processor) HandlePlatformEvent(subject string, data []byte) {
	ctx := context.Background()

	evt, err := ParsePlatformEvent(data)
	if err != nil {
		p.logger.Error("failed to parse platform event", "subject", subject, "error", err)
		return
	}
	if err := p.ProcessEvent(ctx, evt); err != nil {
		p.logger.Error("failed to process platform event", "type", evt.Type, "error", err)
	}
}

// ProcessEvent applies one normalized platform event to the call record.
func (p *Processor) ProcessEvent(ctx context.Context, evt PlatformEvent) error {
	call, err := p.resolveCall(ctx, evt)
	if err != nil {
		return err
	}

	switch evt.Type {
	case EventCallStarted:
		if err := p.store.UpdateCallStatus(ctx, call.ID, store.StatusInProgress); err != nil {
			return fmt.Errorf("mark call in progress: %w", err)
		}
		p.publish(events.SubjectCallStarted, call, "")
		p.logger.Info("call started", "call_id", call.ID)
		return nil

	case EventTranscriptUpdated:
		if len(evt.Messages) == 0 {
			return nil
		}
		if err := p.store.AppendTranscript(ctx, call.ID, evt.Messages); err != nil {
			return fmt.Errorf("append transcript: %w", err)
		}
		return nil

	case EventCallEnded:
		if len(evt.Messages) > 0 {
			// Final events may carry the full transcript; only append what we
			// have not seen yet.
			if delta := evt.Messages[min(len(call.Transcript), len(evt.Messages)):]; len(delta) > 0 {
				if err := p.store.AppendTranscript(ctx, call.ID, delta); err != nil {
					return fmt.Errorf("append final transcript: %w", err)
				}
				call.Transcript = append(call.Transcript, delta...)
			}
		}

		sum := summary.Summarize(call.Transcript)
		if err := p.store.CompleteCall(ctx, call.ID, sum); err != nil {
			return fmt.Errorf("complete call: %w", err)
		}
		p.publish(events.SubjectCallCompleted, call, sum.Outcome())

		if em, ok := sum.(summary.EmergencySummary); ok && p.notifier != nil {
			if err := p.notifier.PostEscalation(ctx, call.ID.String(), call.DriverName, call.LoadNumber, &em); err != nil {
				p.logger.Error("failed to post escalation alert", "call_id", call.ID, "error", err)
			}
		}
		p.logger.Info("call completed", "call_id", call.ID, "outcome", sum.Outcome())
		return nil

	default:
		p.logger.Debug("ignoring platform event", "type", evt.Type)
		return nil
	}
}

func (p *Processor) resolveCall(ctx context.Context, evt PlatformEvent) (*store.Call, error) {
	if evt.InternalID != "" {
		id, err := uuid.Parse(evt.InternalID)
		if err != nil {
			return nil, fmt.Errorf("bad call id in event metadata: %w", err)
		}
		return p.store.GetCall(ctx, id)
	}
	if evt.RetellCallID != "" {
		return p.store.GetCallByRetellID(ctx, evt.RetellCallID)
	}
	return nil, fmt.Errorf("platform event carries no call id")
}

// RegisterAgent creates the agent on the voice platform and records its
// configuration locally.
func (p *Processor) RegisterAgent(ctx context.Context, req RegisterAgentRequest) (*store.AgentConfig, error) {
	if req.Prompts.GreetingTemplate == "" {
		return nil, dialog.ErrNoGreetingTemplate
	}

	agent, err := p.retell.CreateAgent(ctx, req.AgentName, req.VoiceID, req.ConversationFlowID, p.publicBaseURL+"/webhook/retell")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlatform, err)
	}

	cfg := &store.AgentConfig{
		ID:            uuid.New(),
		AgentID:       agent.AgentID,
		AgentName:     req.AgentName,
		Prompts:       req.Prompts,
		VoiceSettings: req.VoiceSettings,
		CreatedAt:     time.Now().UTC(),
	}
	if err := p.store.CreateAgentConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("store agent config: %w", err)
	}

	p.logger.Info("agent registered", "agent_id", agent.AgentID, "name", req.AgentName)
	return cfg, nil
}

func (p *Processor) GetAgentConfig(ctx context.Context, id uuid.UUID) (*store.AgentConfig, error) {
	return p.store.GetAgentConfig(ctx, id)
}

func (p *Processor) ListAgentConfigs(ctx context.Context) ([]store.AgentConfig, error) {
	return p.store.ListAgentConfigs(ctx)
}

func (p *Processor) GetConversationFlow(ctx context.Context, flowID, version string) (json.RawMessage, error) {
	flow, err := p.retell.GetConversationFlow(ctx, flowID, version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlatform, err)
	}
	return flow, nil
}

func (p *Processor) UpdateConversationFlow(ctx context.Context, flowID string, patch json.RawMessage) (json.RawMessage, error) {
	flow, err := p.retell.UpdateConversationFlow(ctx, flowID, patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlatform, err)
	}
	return flow, nil
}

func (p *Processor) publish(subject string, call *store.Call, outcome string) {
	if p.events == nil {
		return
	}
	evt := events.CallEvent{
		CallID:     call.ID.String(),
		DriverName: call.DriverName,
		LoadNumber: call.LoadNumber,
		Outcome:    outcome,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.events.Publish(subject, evt); err != nil {
		p.logger.Error("failed to publish event", "subject", subject, "error", err)
	}
}
