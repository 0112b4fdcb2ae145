package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// Fact patterns run against case-folded text. They are best-effort signal
// extraction; downstream denials depend on their exact behavior, so changes
// here change decisions.
var (
	xrayMention    = regexp.MustCompile(`x[- ]?rays?`)
	xrayCompletion = regexp.MustCompile(`\b(?:performed|done|completed)\b`)
	xrayNegations  = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:no|without)\s+(?:prior\s+|previous\s+)?x[- ]?rays?\b`),
		regexp.MustCompile(`x[- ]?rays?\s+(?:was\s+|were\s+|has\s+|have\s+)?(?:not|never)\s+(?:been\s+)?(?:performed|done|completed|obtained)`),
	}

	ptSynonyms = regexp.MustCompile(`physical therapy|physiotherapy|physiothérapie|kinésithérapie|rééducation|\bpt\b`)
	ptNegation = regexp.MustCompile(`not attempted|not tried|not done`)

	durationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*-?\s*weeks?\s+(?:of\s+)?(?:conservative|treatment|nsaids?)`),
		regexp.MustCompile(`(?:conservative|treatment|nsaids?)[^.\d]{0,30}?(\d+)\s*-?\s*weeks?`),
		regexp.MustCompile(`(\d+)\s*semaines?\s+(?:de\s+)?(?:traitement|conservateur)`),
	}

	painPatterns = []*regexp.Regexp{
		// N/10 but not dates such as 5/10/2024
		regexp.MustCompile(`(?:^|[^/\d])(10|[0-9])\s*/\s*10(?:[^/\d]|$)`),
		regexp.MustCompile(`pain\s+(?:score|level)\s+(?:of\s+|is\s+|:\s*)?(10|[0-9])\b`),
	}

	peaceOfMindPhrases = []string{
		"peace of mind", "reassurance", "just to be sure", "just to be safe", "tranquillité d'esprit",
	}
	medicalNecessityPhrases = []string{
		"medically necessary", "medical necessity", "clinically indicated", "nécessité médicale",
		"red flag", "neurological deficit", "progressive weakness",
	}

	hba1cPattern      = regexp.MustCompile(`hba1c\s*(?:of|is|was|at|=|:)?\s*(\d{1,2}(?:[.,]\d+)?)\s*%?`)
	failedMedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`failed\s+(\d+|one|two|three|four|five)\s+(?:prior\s+|previous\s+|oral\s+)?(?:medications?|therapies|drugs|agents)`),
		regexp.MustCompile(`(\d+|one|two|three|four|five)\s+(?:prior\s+|previous\s+)?failed\s+(?:medications?|therapies|drugs|agents)`),
		regexp.MustCompile(`(\d+|one|two|three|four|five)\s+(?:prior\s+|previous\s+)?(?:medications?|therapies|drugs|agents)\s+(?:have\s+|had\s+)?failed`),
	}
	secondOpinion      = regexp.MustCompile(`second opinion|second avis`)
	histologyConfirmed = regexp.MustCompile(`histolog\w*\s+confirm|biopsy[- ]proven|biopsy\s+confirmed|pathology\s+confirmed|confirmed\s+(?:by\s+)?(?:histology|biopsy|pathology)`)
	stagingComplete    = regexp.MustCompile(`staging\s+(?:is\s+|was\s+)?(?:complete|completed|done)|complete\s+staging|\bstage\s+(?:[0-4]|iv|i{1,3})\b|\bt[0-4]\s*n[0-3]\s*m[01]\b`)
	psychEvaluation    = regexp.MustCompile(`psychiatric\s+(?:evaluation|assessment)|évaluation\s+psychiatrique|evaluated\s+by\s+(?:a\s+)?psychiatrist`)
	echoPattern        = regexp.MustCompile(`echocardiogra\w*|\becho\b|échographie cardiaque`)
	ecgPattern         = regexp.MustCompile(`\becg\b|\bekg\b|electrocardiogra\w*`)
	priorImaging       = regexp.MustCompile(`(?:prior|previous|recent)\s+(?:imaging|x[- ]?rays?|mri|ct|scan)`)
	progressNotes      = regexp.MustCompile(`progress\s+notes?|notes\s+de\s+progression`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
}

// ExtractClinicalFacts mines structured signals from a request's history,
// provider notes and treatment text. It is deterministic and never fails;
// absent signals default to false or zero.
func ExtractClinicalFacts(history, providerNotes, treatment string) domain.ClinicalFacts {
	return ExtractFactsFromText(joinClinicalText(history, providerNotes, treatment))
}

// ExtractFactsFromText runs the fact patterns over already case-folded text.
func ExtractFactsFromText(text string) domain.ClinicalFacts {
	facts := domain.ClinicalFacts{
		XRayPerformed:              xrayPerformed(text),
		PhysicalTherapyAttempted:   ptSynonyms.MatchString(text) && !ptNegation.MatchString(text),
		ConservativeTreatmentWeeks: maxIntMatch(text, durationPatterns),
		PainScore:                  firstIntMatch(text, painPatterns),
		PeaceOfMindRequest:         containsAny(text, peaceOfMindPhrases),
		MedicalNecessity:           containsAny(text, medicalNecessityPhrases),
		HbA1c:                      hba1cValue(text),
		FailedMedications:          maxIntMatch(text, failedMedPatterns),
		SecondOpinion:              secondOpinion.MatchString(text),
		HistologyConfirmed:         histologyConfirmed.MatchString(text),
		StagingComplete:            stagingComplete.MatchString(text),
		PsychiatricEvaluation:      psychEvaluation.MatchString(text),
		CardiacWorkup:              echoPattern.MatchString(text) && ecgPattern.MatchString(text),
		ProgressNotes:              progressNotes.MatchString(text),
	}
	facts.PriorImaging = facts.XRayPerformed || priorImaging.MatchString(text)
	return facts
}

func xrayPerformed(text string) bool {
	if !xrayMention.MatchString(text) || !xrayCompletion.MatchString(text) {
		return false
	}
	for _, neg := range xrayNegations {
		if neg.MatchString(text) {
			return false
		}
	}
	return true
}

// maxIntMatch returns the largest integer captured by any pattern, or zero.
func maxIntMatch(text string, patterns []*regexp.Regexp) int {
	best := 0
	for _, p := range patterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if n := parseCount(m[1]); n > best {
				best = n
			}
		}
	}
	return best
}

// firstIntMatch returns the integer from the first pattern, in declared
// order, that matches at all.
func firstIntMatch(text string, patterns []*regexp.Regexp) int {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return parseCount(m[1])
		}
	}
	return 0
}

func parseCount(s string) int {
	if n, ok := numberWords[s]; ok {
		return n
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func hba1cValue(text string) float64 {
	m := hba1cPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
