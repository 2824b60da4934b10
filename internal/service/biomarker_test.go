package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trialguard-server/internal/domain"
)

func TestResolveBiomarkerStatus(t *testing.T) {
	tests := []struct {
		name       string
		biomarkers map[string]string
		marker     string
		expected   domain.BiomarkerStatus
	}{
		{
			name:     "nil map resolves unknown",
			marker:   "her2",
			expected: domain.BiomarkerUnknown,
		},
		{
			name:       "empty marker resolves unknown",
			biomarkers: map[string]string{"HER2": "positive"},
			expected:   domain.BiomarkerUnknown,
		},
		{
			name:       "exact key positive",
			biomarkers: map[string]string{"HER2": "positive"},
			marker:     "her2",
			expected:   domain.BiomarkerPositive,
		},
		{
			name:       "substring key match is case-insensitive",
			biomarkers: map[string]string{"HER2 IHC status": "Negative"},
			marker:     "her2",
			expected:   domain.BiomarkerNegative,
		},
		{
			name:       "IHC 3+ is positive",
			biomarkers: map[string]string{"HER2": "3+"},
			marker:     "her2",
			expected:   domain.BiomarkerPositive,
		},
		{
			name:       "plus sign alone reads positive",
			biomarkers: map[string]string{"ER": "+"},
			marker:     "er",
			expected:   domain.BiomarkerPositive,
		},
		{
			name:       "zero reads negative",
			biomarkers: map[string]string{"HER2": "0"},
			marker:     "her2",
			expected:   domain.BiomarkerNegative,
		},
		{
			name:       "hyphenated value reads negative",
			biomarkers: map[string]string{"PR": "PR-"},
			marker:     "pr",
			expected:   domain.BiomarkerNegative,
		},
		{
			name:       "unclassifiable value resolves unknown",
			biomarkers: map[string]string{"HER2": "equivocal"},
			marker:     "her2",
			expected:   domain.BiomarkerUnknown,
		},
		{
			name:       "no matching key resolves unknown",
			biomarkers: map[string]string{"PD-L1": "positive"},
			marker:     "her2",
			expected:   domain.BiomarkerUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveBiomarkerStatus(tt.biomarkers, tt.marker)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveBiomarkerStatus_PositiveWinsOverNegative(t *testing.T) {
	// A value containing both phrasings resolves positive because the
	// positive check runs first.
	got := ResolveBiomarkerStatus(map[string]string{"HER2": "positive, previously negative"}, "her2")
	assert.Equal(t, domain.BiomarkerPositive, got)
}

func TestResolveBiomarkerStatus_DeterministicKeyOrder(t *testing.T) {
	// Both "ER" and "HER2" contain "er" as a substring. The scan is over
	// sorted keys, so "ER" wins every time.
	biomarkers := map[string]string{
		"ER":   "negative",
		"HER2": "positive",
	}

	for i := 0; i < 50; i++ {
		assert.Equal(t, domain.BiomarkerNegative, ResolveBiomarkerStatus(biomarkers, "er"))
	}
}

func TestClassifyBiomarkerValue_Totality(t *testing.T) {
	// Every input resolves to exactly one of the three states.
	inputs := []string{"", "positive", "negative", "3+", "2+", "1+", "0", "+", "-", "equivocal", "  Positive  ", "POS/NEG unknown???"}
	for _, in := range inputs {
		got := classifyBiomarkerValue(in)
		assert.Contains(t, []domain.BiomarkerStatus{
			domain.BiomarkerUnknown, domain.BiomarkerPositive, domain.BiomarkerNegative,
		}, got, "input %q", in)
	}
}
