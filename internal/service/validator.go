package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// requirementCheck maps one requirement token onto the facts it inspects.
type requirementCheck struct {
	violated func(f domain.ClinicalFacts) bool
	message  func(f domain.ClinicalFacts) string
}

func fixedMessage(msg string) func(domain.ClinicalFacts) string {
	return func(domain.ClinicalFacts) string { return msg }
}

func minimumWeeks(weeks int) requirementCheck {
	return requirementCheck{
		violated: func(f domain.ClinicalFacts) bool { return f.ConservativeTreatmentWeeks < weeks },
		message: func(f domain.ClinicalFacts) string {
			return fmt.Sprintf("Conservative treatment duration insufficient: %d weeks (minimum %d required)",
				f.ConservativeTreatmentWeeks, weeks)
		},
	}
}

// requirementChecks must cover every domain.RequirementToken.
var requirementChecks = map[domain.RequirementToken]requirementCheck{
	domain.RequireXRay: {
		violated: func(f domain.ClinicalFacts) bool { return !f.XRayPerformed },
		message:  fixedMessage("X-ray not performed (required before MRI or advanced imaging)"),
	},
	domain.RequireConservativeTreatment6Weeks: minimumWeeks(6),
	domain.RequireConservativeTreatment12Week: minimumWeeks(12),
	domain.RequirePainScore7: {
		violated: func(f domain.ClinicalFacts) bool { return f.PainScore < 7 },
		message: func(f domain.ClinicalFacts) string {
			return fmt.Sprintf("Pain score insufficient: %d/10 (minimum 7 required)", f.PainScore)
		},
	},
	domain.RequirePhysicalTherapyAttempted: {
		violated: func(f domain.ClinicalFacts) bool { return !f.PhysicalTherapyAttempted },
		message:  fixedMessage("Physical therapy not attempted or not documented"),
	},
	domain.RequireHbA1c8: {
		violated: func(f domain.ClinicalFacts) bool { return f.HbA1c < 8 },
		message: func(f domain.ClinicalFacts) string {
			if f.HbA1c == 0 {
				return "HbA1c not documented (minimum 8% required)"
			}
			return fmt.Sprintf("HbA1c insufficient: %.1f%% (minimum 8%% required)", f.HbA1c)
		},
	},
	domain.RequireTwoFailedMedications: {
		violated: func(f domain.ClinicalFacts) bool { return f.FailedMedications < 2 },
		message: func(f domain.ClinicalFacts) string {
			return fmt.Sprintf("Insufficient prior medication failures: %d (minimum 2 required)", f.FailedMedications)
		},
	},
	domain.RequireSecondOpinion: {
		violated: func(f domain.ClinicalFacts) bool { return !f.SecondOpinion },
		message:  fixedMessage("Second medical opinion not documented"),
	},
	domain.RequireHistologyConfirmed: {
		violated: func(f domain.ClinicalFacts) bool { return !f.HistologyConfirmed },
		message:  fixedMessage("Histological confirmation not documented"),
	},
	domain.RequireStagingComplete: {
		violated: func(f domain.ClinicalFacts) bool { return !f.StagingComplete },
		message:  fixedMessage("Cancer staging not complete"),
	},
	domain.RequirePsychiatricEvaluation: {
		violated: func(f domain.ClinicalFacts) bool { return !f.PsychiatricEvaluation },
		message:  fixedMessage("Psychiatric evaluation not documented"),
	},
	domain.RequireCardiacWorkup: {
		violated: func(f domain.ClinicalFacts) bool { return !f.CardiacWorkup },
		message:  fixedMessage("Cardiac workup incomplete (recent echocardiogram and ECG required)"),
	},
	domain.RequirePriorImaging: {
		violated: func(f domain.ClinicalFacts) bool { return !f.PriorImaging },
		message:  fixedMessage("Recent imaging not documented"),
	},
	domain.RequireProgressNotes: {
		violated: func(f domain.ClinicalFacts) bool { return !f.ProgressNotes },
		message:  fixedMessage("Progress notes not documented"),
	},
}

// Violation messages for insurers with strict medical-necessity escalation.
const (
	violationPeaceOfMind = "Request made for peace of mind rather than medical necessity"
	violationNoNecessity = "Medical necessity not documented"
)

// RuleValidator compares clinical facts with an insurance rule's minimum requirements.
type RuleValidator struct {
	logger *logrus.Logger
}

// NewRuleValidator creates a new rule validator
func NewRuleValidator(logger *logrus.Logger) *RuleValidator {
	return &RuleValidator{logger: logger}
}

// Validate returns the ordered violations for facts under rule. Requirement
// tokens without a check are never treated as passed silently: they are
// logged and reported in UnhandledRequirements.
func (v *RuleValidator) Validate(facts domain.ClinicalFacts, rule domain.InsuranceRule, insurer string) domain.ValidationResult {
	violations := []string{}
	var unhandled []domain.RequirementToken

	for _, token := range rule.MinimumRequirements {
		check, ok := requirementChecks[token]
		if !ok {
			unhandled = append(unhandled, token)
			v.logger.WithFields(logrus.Fields{
				"insurer":  insurer,
				"category": rule.Category,
				"token":    string(token),
			}).Warn("Requirement token has no check")
			continue
		}
		if check.violated(facts) {
			violations = append(violations, check.message(facts))
		}
	}

	if rule.StrictNecessity {
		if facts.PeaceOfMindRequest {
			violations = append(violations, violationPeaceOfMind)
		}
		if !facts.MedicalNecessity {
			violations = append(violations, violationNoNecessity)
		}
	}

	result := domain.NewValidationResult(violations, facts)
	result.UnhandledRequirements = unhandled

	v.logger.WithFields(logrus.Fields{
		"insurer":    insurer,
		"category":   rule.Category,
		"violations": len(violations),
		"auto_deny":  result.AutoDeny,
	}).Debug("Rule validation completed")

	return result
}
