package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trialguard-server/internal/domain"
)

// wellFormedTrial returns a record that passes every structural check.
func wellFormedTrial() domain.TrialRecord {
	return domain.TrialRecord{
		NCTID:        "NCT01234567",
		Title:        "A Study of Trastuzumab Deruxtecan in HER2-Positive Breast Cancer",
		Phase:        domain.Phase3,
		BriefSummary: "Evaluates efficacy and safety in previously treated patients with advanced disease.",
		InclusionCriteria: []string{
			"HER2-positive breast cancer",
			"Prior trastuzumab therapy",
			"ECOG 0-1",
		},
		ExclusionCriteria: []string{
			"Untreated brain metastases",
			"Prior T-DM1 therapy",
		},
		CancerType: domain.CancerBreast,
	}
}

func TestTrialValidator_WellFormedRecord(t *testing.T) {
	v := NewTrialValidator(quietLogger())

	outcome := v.Validate([]domain.TrialRecord{wellFormedTrial()})

	assert.True(t, outcome.IsValid)
	assert.Empty(t, outcome.Errors)
	assert.Empty(t, outcome.Warnings)
}

func TestTrialValidator_StructuralErrors(t *testing.T) {
	v := NewTrialValidator(quietLogger())

	tests := []struct {
		name    string
		mutate  func(tr *domain.TrialRecord)
		message string
	}{
		{
			name:    "malformed NCT ID",
			mutate:  func(tr *domain.TrialRecord) { tr.NCTID = "NCT123" },
			message: `trial[0]: nct_id "NCT123" does not match NCT00000000 format`,
		},
		{
			name:    "short title",
			mutate:  func(tr *domain.TrialRecord) { tr.Title = "Short" },
			message: "trial[0]: title is missing or shorter than 10 characters",
		},
		{
			name:    "unenumerated phase",
			mutate:  func(tr *domain.TrialRecord) { tr.Phase = "Phase IV" },
			message: `trial[0]: phase "Phase IV" is not one of the enumerated phases`,
		},
		{
			name:    "short summary",
			mutate:  func(tr *domain.TrialRecord) { tr.BriefSummary = "Too short." },
			message: "trial[0]: brief summary is missing or shorter than 20 characters",
		},
		{
			name:    "too few inclusion criteria",
			mutate:  func(tr *domain.TrialRecord) { tr.InclusionCriteria = []string{"one", "two"} },
			message: "trial[0]: fewer than 3 inclusion criteria",
		},
		{
			name:    "too few exclusion criteria",
			mutate:  func(tr *domain.TrialRecord) { tr.ExclusionCriteria = []string{"one"} },
			message: "trial[0]: fewer than 2 exclusion criteria",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trial := wellFormedTrial()
			tt.mutate(&trial)

			outcome := v.Validate([]domain.TrialRecord{trial})

			assert.False(t, outcome.IsValid)
			assert.Contains(t, outcome.Errors, tt.message)
		})
	}
}

func TestTrialValidator_UnknownCancerTypeIsWarningOnly(t *testing.T) {
	v := NewTrialValidator(quietLogger())

	trial := wellFormedTrial()
	trial.CancerType = "pancreatic"

	outcome := v.Validate([]domain.TrialRecord{trial})

	assert.True(t, outcome.IsValid)
	assert.Contains(t, outcome.Warnings, `trial[0]: cancer type "pancreatic" is outside the known set`)
}

func TestTrialValidator_IndexedMessagesAcrossRecords(t *testing.T) {
	v := NewTrialValidator(quietLogger())

	bad := wellFormedTrial()
	bad.NCTID = "bogus"

	outcome := v.Validate([]domain.TrialRecord{wellFormedTrial(), bad})

	assert.False(t, outcome.IsValid)
	assert.Contains(t, outcome.Errors, `trial[1]: nct_id "bogus" does not match NCT00000000 format`)
}
