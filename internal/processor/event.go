package processor

import (
	"encoding/json"
	"fmt"

	"github.com/MikeSquared-Agency/checkcall/internal/dialog"
)

// Platform event types after normalization.
const (
	EventCallStarted       = "call_started"
	EventTranscriptUpdated = "transcript_updated"
	EventCallEnded         = "call_ended"
)

// PlatformEvent is a normalized voice-platform webhook event. The platform
// is loose about shapes across event versions, so parsing tolerates the
// variants we have seen rather than pinning one schema.
type PlatformEvent struct {
	Type         string
	RetellCallID string
	// InternalID is our call id, recovered from metadata when present.
	InternalID string
	Messages   []dialog.Message
}

type rawMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Text    string `json:"text"`
}

type rawEvent struct {
	Event  string `json:"event"`
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Call   *struct {
		CallID           string            `json:"call_id"`
		Metadata         map[string]string `json:"metadata"`
		TranscriptObject []rawMessage      `json:"transcript_object"`
	} `json:"call"`
	Metadata map[string]string `json:"metadata"`
	Messages []rawMessage      `json:"messages"`
	Payload  *struct {
		Messages []rawMessage `json:"messages"`
	} `json:"payload"`
}

// ParsePlatformEvent normalizes a raw webhook or NATS payload. The event name
// may arrive as "event" or "type" and with dots or underscores; the call id
// may sit at the top level or nested under "call".
func ParsePlatformEvent(data []byte) (PlatformEvent, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return PlatformEvent{}, fmt.Errorf("parse platform event: %w", err)
	}

	evt := PlatformEvent{Type: normalizeEventType(firstNonEmpty(raw.Event, raw.Type))}
	if evt.Type == "" {
		return PlatformEvent{}, fmt.Errorf("platform event has no type")
	}

	evt.RetellCallID = raw.CallID
	msgs := raw.Messages
	meta := raw.Metadata
	if raw.Call != nil {
		evt.RetellCallID = firstNonEmpty(evt.RetellCallID, raw.Call.CallID)
		if len(msgs) == 0 {
			msgs = raw.Call.TranscriptObject
		}
		if meta == nil {
			meta = raw.Call.Metadata
		}
	}
	if len(msgs) == 0 && raw.Payload != nil {
		msgs = raw.Payload.Messages
	}
	if meta != nil {
		evt.InternalID = meta["call_id"]
	}

	for _, m := range msgs {
		text := firstNonEmpty(m.Content, m.Text)
		if m.Role == "" && text == "" {
			continue
		}
		evt.Messages = append(evt.Messages, dialog.Message{Role: dialog.Role(m.Role), Text: text})
	}
	return evt, nil
}

func normalizeEventType(t string) string {
	switch t {
	case "call_started", "call.started", "call_queued":
		return EventCallStarted
	case "transcript_updated", "transcript.updated", "transcript.delta":
		return EventTranscriptUpdated
	case "call_ended", "call.ended", "call_analyzed", "call.completed":
		return EventCallEnded
	default:
		return t
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
