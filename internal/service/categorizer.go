package service

import (
	"regexp"
	"strings"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// categoryKeywords is checked in declaration order and the first category with
// a matching keyword wins. Order matters: "mri" must precede "imaging" because
// the two share vocabulary.
var categoryKeywords = []struct {
	category domain.TreatmentCategory
	keywords []string
}{
	{domain.CategoryDiabetes, []string{
		"diabetes", "diabète", "diabete", "metformin", "insulin", "hba1c",
		"glycemia", "glycémie", "blood glucose", "ozempic", "semaglutide", "glp-1",
	}},
	{domain.CategoryMRI, []string{"mri", "irm", "magnetic resonance", "résonance magnétique"}},
	{domain.CategoryPhysicalTherapy, []string{
		"physical therapy", "physiotherapy", "physiothérapie", "kinésithérapie", "rehabilitation", "rééducation",
	}},
	{domain.CategorySurgery, []string{"surgery", "surgical", "chirurgie", "operation", "opération", "intervention"}},
	{domain.CategoryImaging, []string{
		"ct scan", "scanner", "ultrasound", "échographie", "radiograph", "radiographie", "x-ray", "imaging", "imagerie",
	}},
	{domain.CategoryCancerTreatment, []string{
		"chemotherapy", "chimiothérapie", "radiotherapy", "radiothérapie", "radiation therapy",
		"oncology", "oncologie", "cancer", "immunotherapy",
	}},
	{domain.CategoryMentalHealth, []string{
		"psychiatry", "psychiatrie", "psychiatric", "psychology", "psychologie", "psychotherapy",
		"depression", "dépression", "anxiety", "anxiété",
	}},
	{domain.CategoryCardiology, []string{
		"cardiology", "cardiologie", "cardiac", "cardiaque", "heart", "cœur", "coeur", "ecg", "echocardiogram", "stent",
	}},
	{domain.CategoryOrthopedic, []string{
		"orthopedic", "orthopaedic", "orthopédie", "joint", "articulation", "fracture", "bone",
	}},
}

// categoryPatterns anchors every keyword at a word start so short keywords
// such as "irm" or "ecg" do not fire inside longer words ("confirmed").
var categoryPatterns = compileCategoryPatterns()

func compileCategoryPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(categoryKeywords))
	for i, entry := range categoryKeywords {
		quoted := make([]string, len(entry.keywords))
		for j, kw := range entry.keywords {
			quoted[j] = regexp.QuoteMeta(foldText(kw))
		}
		patterns[i] = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)`)
	}
	return patterns
}

// CategorizeTreatment maps a treatment description to its clinical category.
// It is pure and total: text matching nothing yields CategoryNone.
func CategorizeTreatment(treatment string) domain.TreatmentCategory {
	text := foldText(treatment)
	if strings.TrimSpace(text) == "" {
		return domain.CategoryNone
	}
	for i, pattern := range categoryPatterns {
		if pattern.MatchString(text) {
			return categoryKeywords[i].category
		}
	}
	return domain.CategoryNone
}
