package summary

import (
	"reflect"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/checkcall/internal/dialog"
)

func transcriptOf(texts ...string) []dialog.Message {
	msgs := make([]dialog.Message, len(texts))
	role := dialog.RoleAgent
	for i, txt := range texts {
		msgs[i] = dialog.Message{Role: role, Text: txt}
		if role == dialog.RoleAgent {
			role = dialog.RoleDriver
		} else {
			role = dialog.RoleAgent
		}
	}
	return msgs
}

func TestSummarizeEmergencyAccident(t *testing.T) {
	transcript := transcriptOf(
		"Hi Alex, this is Dispatch with a check call on load L-100.",
		"there was an accident on I-40",
		"Understood. Are you safe and pulled over? Are there any injuries?",
		"we are safe, no injuries, load is fine",
	)

	s := Summarize(transcript)
	es, ok := s.(EmergencySummary)
	if !ok {
		t.Fatalf("expected EmergencySummary, got %T", s)
	}
	if es.CallOutcome != OutcomeEmergency {
		t.Errorf("CallOutcome = %q, expected %q", es.CallOutcome, OutcomeEmergency)
	}
	if es.EmergencyType != "Accident" {
		t.Errorf("EmergencyType = %q, expected Accident", es.EmergencyType)
	}
	if es.SafetyStatus != "Driver confirmed everyone is safe" {
		t.Errorf("SafetyStatus = %q", es.SafetyStatus)
	}
	if es.InjuryStatus != "No injuries reported" {
		t.Errorf("InjuryStatus = %q", es.InjuryStatus)
	}
	if es.EmergencyLocation != "I-40" {
		t.Errorf("EmergencyLocation = %q, expected I-40", es.EmergencyLocation)
	}
	if !es.LoadSecure {
		t.Error("expected LoadSecure = true when no damage phrasing present")
	}
	if es.EscalationStatus != "Connected to Human Dispatcher" {
		t.Errorf("EscalationStatus = %q", es.EscalationStatus)
	}
}

func TestSummarizeEmergencyBreakdownWithDamage(t *testing.T) {
	transcript := transcriptOf(
		"Can you give me an update?",
		"tire blowout, the load shifted when I pulled over, send help",
	)

	s := Summarize(transcript)
	es, ok := s.(EmergencySummary)
	if !ok {
		t.Fatalf("expected EmergencySummary, got %T", s)
	}
	if es.EmergencyType != "Breakdown" {
		t.Errorf("EmergencyType = %q, expected Breakdown", es.EmergencyType)
	}
	if es.LoadSecure {
		t.Error("expected LoadSecure = false with load shift phrasing")
	}
	if es.EmergencyLocation != "Unknown" {
		t.Errorf("EmergencyLocation = %q, expected Unknown", es.EmergencyLocation)
	}
}

func TestSummarizeEmergencyDefaults(t *testing.T) {
	s := Summarize(transcriptOf("status?", "911 situation out here"))
	es, ok := s.(EmergencySummary)
	if !ok {
		t.Fatalf("expected EmergencySummary, got %T", s)
	}
	if es.EmergencyType != "Other" {
		t.Errorf("EmergencyType = %q, expected Other", es.EmergencyType)
	}
	if es.SafetyStatus != "Unknown" {
		t.Errorf("SafetyStatus = %q, expected Unknown", es.SafetyStatus)
	}
	if es.InjuryStatus != "Unknown" {
		t.Errorf("InjuryStatus = %q, expected Unknown", es.InjuryStatus)
	}
}

func TestSummarizeRoutineUnloading(t *testing.T) {
	transcript := transcriptOf(
		"Hi Alex, this is Dispatch with a check call on load L-100.",
		"I'm near Flagstaff, AZ, eta tomorrow 8am, in door 42, will do",
	)

	s := Summarize(transcript)
	rs, ok := s.(RoutineSummary)
	if !ok {
		t.Fatalf("expected RoutineSummary, got %T", s)
	}
	if rs.DriverStatus != StatusUnloading {
		t.Errorf("DriverStatus = %q, expected %q", rs.DriverStatus, StatusUnloading)
	}
	if rs.CallOutcome != OutcomeArrival {
		t.Errorf("CallOutcome = %q, expected %q", rs.CallOutcome, OutcomeArrival)
	}
	if !strings.HasPrefix(rs.CurrentLocation, "Flagstaff, AZ") {
		t.Errorf("CurrentLocation = %q, expected Flagstaff, AZ prefix", rs.CurrentLocation)
	}
	if rs.ETA != "tomorrow 8am" {
		t.Errorf("ETA = %q, expected %q", rs.ETA, "tomorrow 8am")
	}
	if rs.UnloadingStatus != "in door 42" {
		t.Errorf("UnloadingStatus = %q, expected %q", rs.UnloadingStatus, "in door 42")
	}
	if !rs.PODReminderAcknowledged {
		t.Error("expected PODReminderAcknowledged = true")
	}
	if rs.DelayReason != "None" {
		t.Errorf("DelayReason = %q, expected None", rs.DelayReason)
	}
}

func TestSummarizeRoutineDelayed(t *testing.T) {
	transcript := transcriptOf(
		"Any update on your status?",
		"delayed, heavy traffic on the bypass, maybe two more hours",
	)

	s := Summarize(transcript)
	rs, ok := s.(RoutineSummary)
	if !ok {
		t.Fatalf("expected RoutineSummary, got %T", s)
	}
	if rs.DriverStatus != StatusDelayed {
		t.Errorf("DriverStatus = %q, expected %q", rs.DriverStatus, StatusDelayed)
	}
	if rs.CallOutcome != OutcomeInTransit {
		t.Errorf("CallOutcome = %q, expected %q", rs.CallOutcome, OutcomeInTransit)
	}
	if rs.DelayReason != "Heavy Traffic" {
		t.Errorf("DelayReason = %q, expected Heavy Traffic", rs.DelayReason)
	}
	if rs.ETA != "Unknown" {
		t.Errorf("ETA = %q, expected Unknown", rs.ETA)
	}
}

func TestSummarizeRoutineArrived(t *testing.T) {
	s := Summarize(transcriptOf("status?", "arrived at the receiver a few minutes ago"))
	rs, ok := s.(RoutineSummary)
	if !ok {
		t.Fatalf("expected RoutineSummary, got %T", s)
	}
	if rs.DriverStatus != StatusArrived {
		t.Errorf("DriverStatus = %q, expected %q", rs.DriverStatus, StatusArrived)
	}
	if rs.CallOutcome != OutcomeArrival {
		t.Errorf("CallOutcome = %q, expected %q", rs.CallOutcome, OutcomeArrival)
	}
}

func TestSummarizeWeatherAndLumper(t *testing.T) {
	s := Summarize(transcriptOf("status?", "snow everywhere, waiting for lumper at the dock"))
	rs, ok := s.(RoutineSummary)
	if !ok {
		t.Fatalf("expected RoutineSummary, got %T", s)
	}
	if rs.DriverStatus != StatusUnloading {
		t.Errorf("DriverStatus = %q, expected %q", rs.DriverStatus, StatusUnloading)
	}
	if rs.DelayReason != "Weather" {
		t.Errorf("DelayReason = %q, expected Weather", rs.DelayReason)
	}
	if rs.UnloadingStatus != "Waiting for Lumper" {
		t.Errorf("UnloadingStatus = %q, expected Waiting for Lumper", rs.UnloadingStatus)
	}
}

func TestSummarizeEmptyTranscript(t *testing.T) {
	s := Summarize(nil)
	rs, ok := s.(RoutineSummary)
	if !ok {
		t.Fatalf("expected RoutineSummary, got %T", s)
	}
	want := RoutineSummary{
		CallOutcome:     OutcomeInTransit,
		DriverStatus:    StatusDriving,
		CurrentLocation: "Unknown",
		ETA:             "Unknown",
		DelayReason:     "None",
		UnloadingStatus: "N/A",
	}
	if rs != want {
		t.Errorf("got %+v, expected %+v", rs, want)
	}
}

func TestSummarizeIdempotent(t *testing.T) {
	transcript := transcriptOf(
		"Hi Alex, this is Dispatch.",
		"on I-10 near Indio, CA, eta is 4:30 pm, no delays",
		"Thanks. Anything else?",
		"nope, will do on the POD",
	)

	first := Summarize(transcript)
	second := Summarize(transcript)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Summarize is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
