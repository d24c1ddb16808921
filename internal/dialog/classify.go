package dialog

import (
	"regexp"
	"strings"
)

// Classification primitives. All comparisons are case-insensitive and
// operate on a single string or a transcript slice; none of them retain
// state between calls.

var (
	disallowedCharRe = regexp.MustCompile(`[^a-zA-Z0-9\s,.?!'-]`)
	roadTokenRe      = regexp.MustCompile(`(?i)I-[0-9]+|\b(?:hwy|highway|interstate|street|ave|road)\b`)
	alphaWordRe      = regexp.MustCompile(`[A-Za-z]{3,}`)
)

// shortAnswers is the closed set of non-informative one-word replies that
// count as uncooperative when they are the entire message.
var shortAnswers = map[string]bool{
	"yes":     true,
	"no":      true,
	"ok":      true,
	"okay":    true,
	"fine":    true,
	"good":    true,
	"driving": true,
}

// IsEmergency reports whether any configured trigger phrase occurs in text.
func IsEmergency(text string, triggers []string) bool {
	lowered := strings.ToLower(text)
	for _, t := range triggers {
		if t != "" && strings.Contains(lowered, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// LooksUncooperative reports whether the entire reply, after trimming
// whitespace and at most one trailing period, is one of the closed set of
// one-word acknowledgments. Partial or multi-word answers never match.
func LooksUncooperative(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimSuffix(s, ".")
	return shortAnswers[s]
}

// LooksGarbled reports whether the reply is too short to carry meaning,
// carries the platform's inaudibility tag, or contains characters outside
// letters, digits, whitespace and basic punctuation. Apostrophes and
// hyphens are allowed so contractions and highway names ("I'm on I-10")
// pass the filter.
func LooksGarbled(text string) bool {
	if len(strings.TrimSpace(text)) <= 2 {
		return true
	}
	if strings.Contains(strings.ToLower(text), "[inaudible]") {
		return true
	}
	return disallowedCharRe.MatchString(text)
}

// DetectConflict reports whether the driver's stated position disagrees with
// the GPS-reported location. The heuristic is intentionally approximate: if
// the text names a road or highway, it conflicts unless the expected
// location appears verbatim in the text; otherwise the first two longer
// words are checked for membership in the expected location. Short place
// names and common words can misfire — that behavior is deliberate and
// pinned by tests.
func DetectConflict(text, expectedLocation string) bool {
	if expectedLocation == "" {
		return false
	}
	loweredText := strings.ToLower(text)
	loweredExpected := strings.ToLower(expectedLocation)

	if roadTokenRe.MatchString(text) {
		return !strings.Contains(loweredText, loweredExpected)
	}

	var words []string
	for _, w := range alphaWordRe.FindAllString(text, -1) {
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return false
	}
	if len(words) > 2 {
		words = words[:2]
	}
	for _, w := range words {
		if strings.Contains(loweredExpected, strings.ToLower(w)) {
			return false
		}
	}
	return true
}

// CountMarkerOccurrences counts agent-authored messages whose text contains
// the marker substring. Markers are part of the stored utterance, so the
// count is monotonically non-decreasing as the transcript grows.
func CountMarkerOccurrences(transcript []Message, marker string) int {
	n := 0
	for _, m := range transcript {
		if m.Role == RoleAgent && strings.Contains(m.Text, marker) {
			n++
		}
	}
	return n
}

// LastDriverMessage returns the text of the most recent driver-authored
// message, or "" if the driver has not spoken yet.
func LastDriverMessage(transcript []Message) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role.IsDriver() {
			return transcript[i].Text
		}
	}
	return ""
}
