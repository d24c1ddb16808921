package dialog

import (
	"errors"
	"regexp"
	"strings"
)

// Marker literals embedded in retry utterances. They are part of the
// returned text and must survive verbatim in stored history: besides the
// explicit State record, they are the only way to recover retry counts from
// a bare transcript.
const (
	MarkerRepeatRequest = "[repeat_request]"
	MarkerProbeRequest  = "[probe_request]"
)

// Retry budgets before the engine gives up on a recovery strategy.
const (
	maxRepeatRequests = 2
	maxProbeRequests  = 2
)

// Fixed utterances. The escalation line doubles as the recovery signal for
// StateFromTranscript, so its wording is load-bearing.
const (
	replyEmergency = "Understood. Are you safe and pulled over? Are there any injuries? " +
		"Where exactly are you located? I'm connecting you to a human dispatcher now."
	replyRepeatRequest  = MarkerRepeatRequest + " I had trouble hearing that. Could you please repeat your status and location?"
	replyGarbledHandoff = "I'm still having trouble hearing you. I'll connect you to a dispatcher who can assist."
	replyProbeRequest   = MarkerProbeRequest + " Thanks. Could you share your current location, ETA, and any delays?"
	replyPoliteClosing  = "Thanks for the update. We'll follow up later. Drive safe."
	replyArrivalProbe   = "Great. Are you in a door yet, and do you expect detention or lumper?"
	replyDelayProbe     = "Thanks for letting me know. What's your updated ETA and precise location?"
	replyDefaultProbe   = "Thanks. What's your exact location and ETA to destination? Any delays to report?"

	escalationSignal = "connecting you to a human dispatcher"
)

var ErrNoGreetingTemplate = errors.New("conversation config has no greeting template")

var (
	arrivalTopicRe = regexp.MustCompile(`(?i)arriv|dock|unload`)
	delayTopicRe   = regexp.MustCompile(`(?i)delay|late|traffic|weather|breakdown`)
)

// Decision is the engine's output for one driver turn: the next agent
// utterance and the conversation state after emitting it. The caller stores
// both; the engine keeps nothing.
type Decision struct {
	Reply string
	State State
}

// turn bundles the inputs of a single evaluation so rules share one view.
type turn struct {
	transcript []Message
	cfg        Config
	ctx        Context
	driverText string
	state      State
}

// rule is one guarded transition. Rules are evaluated in slice order and the
// first one that fires wins; a rule may advance the turn state as part of
// firing.
type rule struct {
	name string
	fire func(t *turn) (string, bool)
}

// Engine decides the agent's next utterance from the conversation so far.
// It is stateless and safe for concurrent use; all per-call state travels
// in the State value.
type Engine struct {
	rules []rule
}

// NewEngine builds the engine with its fixed rule chain. Order is the
// contract: emergency beats garbled beats uncooperative beats conflict
// beats topic follow-ups, with the greeting short-circuiting everything on
// the first agent turn.
func NewEngine() *Engine {
	return &Engine{rules: []rule{
		{name: "opening", fire: ruleOpening},
		{name: "emergency", fire: ruleEmergency},
		{name: "garbled", fire: ruleGarbled},
		{name: "uncooperative", fire: ruleUncooperative},
		{name: "gps_conflict", fire: ruleConflict},
		{name: "topic_followup", fire: ruleTopic},
		{name: "default", fire: ruleDefault},
	}}
}

// Next computes the agent's next utterance. It is total over its inputs:
// empty transcripts, missing context fields and malformed text all produce
// an utterance. The only error is a config without a greeting template.
func (e *Engine) Next(transcript []Message, cfg Config, ctx Context, st State) (Decision, error) {
	if err := cfg.Validate(); err != nil {
		return Decision{}, err
	}
	if ctx.DriverName == "" {
		ctx.DriverName = "driver"
	}

	t := &turn{
		transcript: transcript,
		cfg:        cfg,
		ctx:        ctx,
		driverText: LastDriverMessage(transcript),
		state:      st,
	}
	for _, r := range e.rules {
		if reply, ok := r.fire(t); ok {
			return Decision{Reply: reply, State: t.state}, nil
		}
	}
	// The default rule always fires.
	return Decision{Reply: replyDefaultProbe, State: t.state}, nil
}

// StateFromTranscript reconstructs conversation state from stored history
// alone: marker occurrences give the retry counters and the escalation
// utterance marks a past emergency pivot. Used when a caller has only the
// transcript (older records, offline tooling).
func StateFromTranscript(transcript []Message) State {
	st := State{
		RepeatCount: CountMarkerOccurrences(transcript, MarkerRepeatRequest),
		ProbeCount:  CountMarkerOccurrences(transcript, MarkerProbeRequest),
	}
	for _, m := range transcript {
		if m.Role == RoleAgent && strings.Contains(strings.ToLower(m.Text), escalationSignal) {
			st.EmergencyEscalated = true
			break
		}
	}
	return st
}

func ruleOpening(t *turn) (string, bool) {
	for _, m := range t.transcript {
		if m.Role == RoleAgent {
			return "", false
		}
	}
	r := strings.NewReplacer(
		"{driver_name}", t.ctx.DriverName,
		"{load_number}", t.ctx.LoadNumber,
	)
	return r.Replace(t.cfg.GreetingTemplate), true
}

func ruleEmergency(t *turn) (string, bool) {
	// Once escalated, stay escalated: the pivot must not depend on the
	// driver repeating a trigger phrase on every turn.
	if t.state.EmergencyEscalated || IsEmergency(t.driverText, t.cfg.EmergencyTriggerPhrases) {
		t.state.EmergencyEscalated = true
		return replyEmergency, true
	}
	return "", false
}

func ruleGarbled(t *turn) (string, bool) {
	if !LooksGarbled(t.driverText) {
		return "", false
	}
	if t.state.RepeatCount < maxRepeatRequests {
		t.state.RepeatCount++
		return replyRepeatRequest, true
	}
	// No marker on the hand-off line, so the count stops growing and the
	// platform is expected to end the call.
	return replyGarbledHandoff, true
}

func ruleUncooperative(t *turn) (string, bool) {
	if !LooksUncooperative(t.driverText) {
		return "", false
	}
	if t.state.ProbeCount < maxProbeRequests {
		t.state.ProbeCount++
		return replyProbeRequest, true
	}
	return replyPoliteClosing, true
}

func ruleConflict(t *turn) (string, bool) {
	if t.ctx.GPSLocation == "" || !DetectConflict(t.driverText, t.ctx.GPSLocation) {
		return "", false
	}
	return "Appreciate the update. Our GPS shows you near " + t.ctx.GPSLocation + ". Does that sound right?", true
}

func ruleTopic(t *turn) (string, bool) {
	if arrivalTopicRe.MatchString(t.driverText) {
		return replyArrivalProbe, true
	}
	if delayTopicRe.MatchString(t.driverText) {
		return replyDelayProbe, true
	}
	return "", false
}

func ruleDefault(t *turn) (string, bool) {
	return replyDefaultProbe, true
}
