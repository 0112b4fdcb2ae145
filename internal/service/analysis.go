package service

import (
	"strings"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

type approvalProfile struct {
	probability  float64
	requirements []string
	typicalTime  string
}

// approvalTable is keyed by canonical insurer, then by treatment keyword.
var approvalTable = map[string][]struct {
	keyword string
	profile approvalProfile
}{
	"BlueCross": {
		{"ozempic", approvalProfile{0.85, []string{"Prior diabetes medications tried", "HbA1c > 7%"}, "48-72 hours"}},
		{"mri", approvalProfile{0.70, []string{"6 weeks conservative treatment", "Failed physical therapy"}, "3-5 days"}},
	},
	"Aetna": {
		{"ozempic", approvalProfile{0.78, []string{"2 prior medications failed", "BMI criteria"}, "5-7 days"}},
	},
	"UnitedHealthcare": {
		{"ozempic", approvalProfile{0.82, []string{"Metformin trial", "A1C documentation"}, "2-4 days"}},
	},
}

var defaultApprovalProfile = approvalProfile{
	probability:  0.65,
	requirements: []string{"Standard prior authorization requirements"},
	typicalTime:  "5-10 days",
}

// AnalyzeApproval estimates the approval odds for a treatment at intake.
// The estimate is informational only.
func AnalyzeApproval(rules domain.RuleRepository, insurer, treatment string) *domain.ApprovalAnalysis {
	profile := defaultApprovalProfile
	if canonical, ok := rules.CanonicalInsurer(insurer); ok {
		folded := foldText(treatment)
		for _, row := range approvalTable[canonical] {
			if strings.Contains(folded, row.keyword) {
				profile = row.profile
				break
			}
		}
	}

	return &domain.ApprovalAnalysis{
		ApprovalProbability: profile.probability,
		Requirements:        append([]string{}, profile.requirements...),
		TypicalApprovalTime: profile.typicalTime,
		NextSteps:           nextSteps(profile.probability),
	}
}

func nextSteps(probability float64) []string {
	switch {
	case probability > 0.8:
		return []string{"High approval probability - submit immediately"}
	case probability > 0.6:
		return []string{"Moderate approval probability - review requirements", "Consider additional documentation"}
	default:
		return []string{"Low approval probability - review case carefully", "Consider alternative treatments"}
	}
}
