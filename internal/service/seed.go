package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// DemoRequests returns the demo requests loaded by the seed command.
func DemoRequests() []*domain.Request {
	at := func(hour int) time.Time { return time.Date(2025, 6, 10, hour, 0, 0, 0, time.UTC) }

	return []*domain.Request{
		{
			ID:            "demo-001",
			PatientInfo:   "John Doe, age 45, member BC123456789",
			Treatment:     "Ozempic",
			Insurance:     "BlueCross",
			History:       "Type 2 diabetes; HbA1c 8.4%; failed 2 prior medications (metformin, glipizide)",
			ProviderNotes: "Medically necessary for glycemic control",
			Urgency:       "Standard",
			Status:        domain.StatusAnalyzed,
			Timestamp:     at(10),
			Patient: &domain.PatientInfo{
				Name: "John Doe", Age: "45", InsuranceType: "BlueCross", MemberID: "BC123456789",
				MedicalHistory: []string{"Type 2 diabetes"},
			},
			Analysis: &domain.ApprovalAnalysis{
				ApprovalProbability: 0.85,
				Requirements:        []string{"Prior diabetes medications tried", "HbA1c > 7%"},
				TypicalApprovalTime: "48-72 hours",
				NextSteps:           nextSteps(0.85),
			},
		},
		{
			ID:            "demo-002",
			PatientInfo:   "Jane Smith, age 38, member AE987654321",
			Treatment:     "MRI Knee",
			Insurance:     "Aetna",
			History:       "Knee pain for 3 weeks, no x-ray performed",
			ProviderNotes: "Patient requests imaging for peace of mind",
			Urgency:       "Standard",
			Status:        domain.StatusAnalyzed,
			Timestamp:     at(11),
			Patient: &domain.PatientInfo{
				Name: "Jane Smith", Age: "38", InsuranceType: "Aetna", MemberID: "AE987654321",
				MedicalHistory: []string{},
			},
			Analysis: &domain.ApprovalAnalysis{
				ApprovalProbability: 0.65,
				Requirements:        []string{"Standard prior authorization requirements"},
				TypicalApprovalTime: "5-10 days",
				NextSteps:           nextSteps(0.65),
			},
		},
		{
			ID:            "demo-003",
			PatientInfo:   "Robert Johnson, age 62, member UH456789123",
			Treatment:     "Physical therapy for lower back pain",
			Insurance:     "UnitedHealthcare",
			History:       "Chronic lower back pain, 8 weeks of NSAIDs, pain score 6/10",
			ProviderNotes: "Clinically indicated after failed medication management",
			Urgency:       "Standard",
			Status:        domain.StatusAnalyzed,
			Timestamp:     at(12),
			Patient: &domain.PatientInfo{
				Name: "Robert Johnson", Age: "62", InsuranceType: "UnitedHealthcare", MemberID: "UH456789123",
				MedicalHistory: []string{"Chronic lower back pain"},
			},
			Analysis: &domain.ApprovalAnalysis{
				ApprovalProbability: 0.65,
				Requirements:        []string{"Standard prior authorization requirements"},
				TypicalApprovalTime: "5-10 days",
				NextSteps:           nextSteps(0.65),
			},
		},
	}
}

// SeedDemoRequests stores the demo requests that are not already present and
// returns how many were created.
func SeedDemoRequests(ctx context.Context, store domain.RequestStore) (int, error) {
	created := 0
	for _, req := range DemoRequests() {
		_, err := store.Get(ctx, req.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return created, fmt.Errorf("checking %s: %w", req.ID, err)
		}
		if err := store.Create(ctx, req); err != nil {
			return created, fmt.Errorf("creating %s: %w", req.ID, err)
		}
		created++
	}
	return created, nil
}
