package dialog

import "encoding/json"

// Role tags who authored a transcript message. The voice platform labels
// driver turns either "driver" or "user" depending on the surface; both mean
// the driver.
type Role string

const (
	RoleAgent  Role = "agent"
	RoleDriver Role = "driver"
	RoleUser   Role = "user"
)

// IsDriver reports whether the role belongs to the driver side of the call.
func (r Role) IsDriver() bool {
	return r == RoleDriver || r == RoleUser
}

// Message is one turn of a call transcript. Transcripts are append-only and
// chronological; the engine never mutates them.
type Message struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Config is the per-agent conversation configuration. VoiceSettings is
// accepted and round-tripped but never consulted here — it belongs to the
// voice platform.
type Config struct {
	GreetingTemplate        string          `json:"greeting_template"`
	EmergencyTriggerPhrases []string        `json:"emergency_trigger_phrases"`
	VoiceSettings           json.RawMessage `json:"voice_settings,omitempty"`
}

// Validate reports the one configuration defect the engine refuses to work
// around: a missing greeting template would produce a broken opening line.
func (c Config) Validate() error {
	if c.GreetingTemplate == "" {
		return ErrNoGreetingTemplate
	}
	return nil
}

// Context carries the per-call facts the engine substitutes into utterances.
type Context struct {
	DriverName  string `json:"driver_name"`
	LoadNumber  string `json:"load_number"`
	GPSLocation string `json:"gps_location,omitempty"`
}

// State is the conversation state carried alongside the transcript and
// updated by the caller after each decision. Counters used to be recovered
// only by scanning utterances for marker substrings; keeping them explicit
// removes the dependence on marker survival in stored text, and makes
// emergency escalation sticky instead of re-derived per turn.
type State struct {
	RepeatCount        int  `json:"repeat_count"`
	ProbeCount         int  `json:"probe_count"`
	EmergencyEscalated bool `json:"emergency_escalated"`
}
