package service

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

const maxHeuristicReason = 500

var (
	fenceMarker      = regexp.MustCompile("```[a-zA-Z]*")
	braceCandidate   = regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	confidencePct    = regexp.MustCompile(`(\d{1,3})\s*%`)
	approvedKeywords = []string{"approved", "authorize"}
	deniedKeywords   = []string{"denied", "reject"}
	condKeywords     = []string{"conditional", "additional"}
)

// ParseDecision turns generated text into a well-formed decision. It never
// fails: unusable text yields either a heuristic decision or the fallback.
func ParseDecision(text string) domain.Decision {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.FallbackDecision("empty response from the generation service")
	}

	unfenced := strings.TrimSpace(fenceMarker.ReplaceAllString(text, ""))
	if d, ok := decodeDecision(unfenced, false); ok {
		return d
	}

	for _, candidate := range braceCandidate.FindAllString(unfenced, -1) {
		if d, ok := decodeDecision(candidate, true); ok {
			return d
		}
	}

	return heuristicDecision(unfenced)
}

// decodeDecision parses one JSON object. Candidates found by scanning must
// carry both decision and reason; a whole-text parse only needs decision.
func decodeDecision(raw string, requireReason bool) (domain.Decision, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return domain.Decision{}, false
	}
	if _, ok := fields["decision"]; !ok {
		return domain.Decision{}, false
	}
	if _, ok := fields["reason"]; requireReason && !ok {
		return domain.Decision{}, false
	}

	status, _ := domain.ParseDecisionStatus(stringField(fields["decision"]))
	return domain.Decision{
		Decision:              status,
		Reason:                stringField(fields["reason"]),
		ConfidenceScore:       confidenceField(fields["confidence_score"]),
		MissingDocumentation:  listField(fields["missing_documentation"]),
		AlternativeTreatments: listField(fields["alternative_treatments"]),
		AppealGuidance:        stringField(fields["appeal_guidance"]),
	}, true
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return ""
	}
	return strings.Trim(string(raw), `"`)
}

func confidenceField(raw json.RawMessage) int {
	if len(raw) == 0 {
		return domain.DefaultConfidenceScore
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return clampConfidence(int(math.Round(n)))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return clampConfidence(int(math.Round(f)))
		}
	}
	return domain.DefaultConfidenceScore
}

func clampConfidence(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	default:
		return n
	}
}

// listField accepts only a JSON array of strings; anything else is empty.
func listField(raw json.RawMessage) []string {
	var items []any
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func heuristicDecision(text string) domain.Decision {
	lower := strings.ToLower(text)

	status := domain.DecisionPending
	switch {
	case containsAny(lower, approvedKeywords):
		status = domain.DecisionApproved
	case containsAny(lower, deniedKeywords):
		status = domain.DecisionDenied
	case containsAny(lower, condKeywords):
		status = domain.DecisionConditional
	}

	confidence := domain.DefaultConfidenceScore
	if m := confidencePct.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			confidence = clampConfidence(n)
		}
	}

	return domain.Decision{
		Decision:              status,
		Reason:                truncateRunes(text, maxHeuristicReason),
		ConfidenceScore:       confidence,
		MissingDocumentation:  []string{},
		AlternativeTreatments: []string{},
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
