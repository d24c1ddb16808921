package processor

import (
	"testing"
)

func TestParsePlatformEvent_RetellWebhookShape(t *testing.T) {
	payload := []byte(`{
		"event": "call_started",
		"call": {
			"call_id": "retell_abc",
			"metadata": {"call_id": "9f3a2f9e-9c1d-4a57-9a57-0c2f2f7a1b11"}
		}
	}`)

	evt, err := ParsePlatformEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.Type != EventCallStarted {
		t.Errorf("type = %q", evt.Type)
	}
	if evt.RetellCallID != "retell_abc" {
		t.Errorf("retell call id = %q", evt.RetellCallID)
	}
	if evt.InternalID != "9f3a2f9e-9c1d-4a57-9a57-0c2f2f7a1b11" {
		t.Errorf("internal id = %q", evt.InternalID)
	}
}

func TestParsePlatformEvent_TranscriptVariants(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "top-level messages with content",
			payload: `{"type":"transcript.updated","call_id":"retell_abc","messages":[{"role":"user","content":"rolling through Tucson"}]}`,
		},
		{
			name:    "payload messages with text",
			payload: `{"event":"transcript_updated","call_id":"retell_abc","payload":{"messages":[{"role":"user","text":"rolling through Tucson"}]}}`,
		},
		{
			name:    "nested transcript_object",
			payload: `{"event":"transcript_updated","call":{"call_id":"retell_abc","transcript_object":[{"role":"user","content":"rolling through Tucson"}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := ParsePlatformEvent([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if evt.Type != EventTranscriptUpdated {
				t.Errorf("type = %q", evt.Type)
			}
			if len(evt.Messages) != 1 {
				t.Fatalf("messages = %+v", evt.Messages)
			}
			if evt.Messages[0].Text != "rolling through Tucson" {
				t.Errorf("text = %q", evt.Messages[0].Text)
			}
			if !evt.Messages[0].Role.IsDriver() {
				t.Errorf("role %q should count as driver", evt.Messages[0].Role)
			}
		})
	}
}

func TestParsePlatformEvent_EndedAliases(t *testing.T) {
	for _, name := range []string{"call_ended", "call.ended", "call_analyzed", "call.completed"} {
		evt, err := ParsePlatformEvent([]byte(`{"event":"` + name + `","call_id":"retell_abc"}`))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if evt.Type != EventCallEnded {
			t.Errorf("%s normalized to %q", name, evt.Type)
		}
	}
}

func TestParsePlatformEvent_MissingType(t *testing.T) {
	if _, err := ParsePlatformEvent([]byte(`{"call_id":"retell_abc"}`)); err == nil {
		t.Fatal("expected error for event without type")
	}
}

func TestParsePlatformEvent_BadJSON(t *testing.T) {
	if _, err := ParsePlatformEvent([]byte(`{"event":`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
