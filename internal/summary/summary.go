// Package summary distills a finished call transcript into a structured
// outcome record. Extraction is layered text-pattern heuristics: each field
// tries an ordered family of patterns and takes the first match, falling
// back to a documented default. It never fails — a transcript that matches
// nothing yields a routine record full of defaults.
package summary

import (
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/checkcall/internal/dialog"
)

// Call outcomes.
const (
	OutcomeEmergency = "Emergency Escalation"
	OutcomeArrival   = "Arrival Confirmation"
	OutcomeInTransit = "In-Transit Update"
)

// Driver statuses for routine calls.
const (
	StatusDriving   = "Driving"
	StatusDelayed   = "Delayed"
	StatusArrived   = "Arrived"
	StatusUnloading = "Unloading"
)

// Summary is one of the two mutually exclusive outcome records.
type Summary interface {
	Outcome() string
}

// EmergencySummary records a call that pivoted to emergency escalation.
type EmergencySummary struct {
	CallOutcome       string `json:"call_outcome"`
	EmergencyType     string `json:"emergency_type"`
	SafetyStatus      string `json:"safety_status"`
	InjuryStatus      string `json:"injury_status"`
	EmergencyLocation string `json:"emergency_location"`
	LoadSecure        bool   `json:"load_secure"`
	EscalationStatus  string `json:"escalation_status"`
}

func (s EmergencySummary) Outcome() string { return s.CallOutcome }

// RoutineSummary records an ordinary check-in.
type RoutineSummary struct {
	CallOutcome             string `json:"call_outcome"`
	DriverStatus            string `json:"driver_status"`
	CurrentLocation         string `json:"current_location"`
	ETA                     string `json:"eta"`
	DelayReason             string `json:"delay_reason"`
	UnloadingStatus         string `json:"unloading_status"`
	PODReminderAcknowledged bool   `json:"pod_reminder_acknowledged"`
}

func (s RoutineSummary) Outcome() string { return s.CallOutcome }

// emergencyKeywords anywhere in the transcript routes the whole call to the
// emergency record.
var emergencyKeywords = []string{
	"accident",
	"crash",
	"emergency",
	"blowout",
	"breakdown",
	"medical",
	"911",
}

var (
	arrivedRe   = regexp.MustCompile(`(?i)\barriv(ed|ing)\b|at (the )?receiver|at dock`)
	unloadingRe = regexp.MustCompile(`(?i)\bunload(ing|ed)\b|lumper|detention|in door`)
	delayedRe   = regexp.MustCompile(`(?i)\bdelay(ed)?\b|traffic|weather|breakdown|accident`)

	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)on (I-[0-9]+(?: [NSEW])?(?: near [\w ,.-]+)?)`),
		regexp.MustCompile(`(?i)near ([\w ,.-]+)`),
		regexp.MustCompile(`(?i)at ([\w ,.-]+)`),
		regexp.MustCompile(`(?i)by ([\w ,.-]+)`),
	}

	etaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)eta (?:is|around|about)?\s*([\w: ]+(?:am|pm)?)`),
		regexp.MustCompile(`(?i)(tomorrow|today|tonight|\b[0-9]{1,2}[:.][0-9]{2}\s*(?:am|pm))`),
	}

	trafficRe    = regexp.MustCompile(`(?i)traffic`)
	weatherRe    = regexp.MustCompile(`(?i)weather|snow|rain|ice|wind`)
	mechanicalRe = regexp.MustCompile(`(?i)breakdown|blowout|mechanic|tire`)

	inDoorRe        = regexp.MustCompile(`(?i)(in door [0-9]+)`)
	lumperWaitRe    = regexp.MustCompile(`(?i)waiting for lumper`)
	detentionRe     = regexp.MustCompile(`(?i)detention`)
	ackRe           = regexp.MustCompile(`(?i)(will do|okay|ok|got it|sure|yes)\b`)
	loadDamageRe    = regexp.MustCompile(`(?i)load (?:shift|spilled|lost|damaged)`)
	accidentTypeRe  = regexp.MustCompile(`(?i)accident|crash`)
	breakdownTypeRe = regexp.MustCompile(`(?i)blowout|breakdown|mechanic|tire|engine`)
	medicalTypeRe   = regexp.MustCompile(`(?i)medical|hurt|injur`)
	safeRe          = regexp.MustCompile(`(?i)safe|ok|okay|fine|no danger`)
	unsafeRe        = regexp.MustCompile(`(?i)not safe|in danger|help`)
	noInjuryRe      = regexp.MustCompile(`(?i)no injur|not hurt|fine`)
	injuryRe        = regexp.MustCompile(`(?i)injur|hurt|bleed|ambulance`)
)

// Summarize converts a finished transcript into its outcome record. Pure and
// deterministic: the same transcript always yields the same record.
func Summarize(transcript []dialog.Message) Summary {
	texts := make([]string, len(transcript))
	for i, m := range transcript {
		texts[i] = m.Text
	}
	fullText := strings.Join(texts, "\n")

	if containsAny(fullText, emergencyKeywords) {
		return EmergencySummary{
			CallOutcome:       OutcomeEmergency,
			EmergencyType:     extractEmergencyType(fullText),
			SafetyStatus:      extractSafetyStatus(fullText),
			InjuryStatus:      extractInjuryStatus(fullText),
			EmergencyLocation: firstOr(locationPatterns, fullText, "Unknown"),
			LoadSecure:        !loadDamageRe.MatchString(fullText),
			EscalationStatus:  "Connected to Human Dispatcher",
		}
	}

	status := inferDriverStatus(fullText)
	outcome := OutcomeInTransit
	if status == StatusArrived || status == StatusUnloading {
		outcome = OutcomeArrival
	}
	return RoutineSummary{
		CallOutcome:             outcome,
		DriverStatus:            status,
		CurrentLocation:         firstOr(locationPatterns, fullText, "Unknown"),
		ETA:                     firstOr(etaPatterns, fullText, "Unknown"),
		DelayReason:             extractDelayReason(fullText),
		UnloadingStatus:         extractUnloadingStatus(fullText),
		PODReminderAcknowledged: ackRe.MatchString(fullText),
	}
}

// firstFind applies an ordered pattern family and returns the first match:
// the first capture group when the pattern has one, the whole match
// otherwise.
func firstFind(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if re.NumSubexp() > 0 {
			return strings.TrimSpace(m[1]), true
		}
		return strings.TrimSpace(m[0]), true
	}
	return "", false
}

func firstOr(patterns []*regexp.Regexp, text, fallback string) string {
	if v, ok := firstFind(patterns, text); ok {
		return v
	}
	return fallback
}

func containsAny(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// inferDriverStatus picks the first matching stage in priority order:
// arrival phrasing, then unloading, then delay; an unremarkable transcript
// means the driver is still rolling.
func inferDriverStatus(text string) string {
	if arrivedRe.MatchString(text) {
		return StatusArrived
	}
	if unloadingRe.MatchString(text) {
		return StatusUnloading
	}
	if delayedRe.MatchString(text) {
		return StatusDelayed
	}
	return StatusDriving
}

func extractDelayReason(text string) string {
	switch {
	case trafficRe.MatchString(text):
		return "Heavy Traffic"
	case weatherRe.MatchString(text):
		return "Weather"
	case mechanicalRe.MatchString(text):
		return "Mechanical"
	default:
		return "None"
	}
}

func extractUnloadingStatus(text string) string {
	if m := inDoorRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if lumperWaitRe.MatchString(text) {
		return "Waiting for Lumper"
	}
	if detentionRe.MatchString(text) {
		return "Detention"
	}
	return "N/A"
}

func extractEmergencyType(text string) string {
	switch {
	case accidentTypeRe.MatchString(text):
		return "Accident"
	case breakdownTypeRe.MatchString(text):
		return "Breakdown"
	case medicalTypeRe.MatchString(text):
		return "Medical"
	default:
		return "Other"
	}
}

func extractSafetyStatus(text string) string {
	switch {
	case safeRe.MatchString(text):
		return "Driver confirmed everyone is safe"
	case unsafeRe.MatchString(text):
		return "Safety not confirmed"
	default:
		return "Unknown"
	}
}

func extractInjuryStatus(text string) string {
	switch {
	case noInjuryRe.MatchString(text):
		return "No injuries reported"
	case injuryRe.MatchString(text):
		return "Injuries reported"
	default:
		return "Unknown"
	}
}
