package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trialguard-server/internal/domain"
)

func TestProfileValidator_NilProfile(t *testing.T) {
	v := NewProfileValidator(quietLogger())

	outcome := v.Validate(nil)

	assert.False(t, outcome.IsValid)
	assert.Contains(t, outcome.Errors, "profile is missing")
}

func TestProfileValidator_Age(t *testing.T) {
	v := NewProfileValidator(quietLogger())

	t.Run("missing age is a warning, not an error", func(t *testing.T) {
		outcome := v.Validate(&domain.PatientProfile{Age: 0, Conditions: []string{"hypertension"}})

		assert.True(t, outcome.IsValid)
		assert.Contains(t, outcome.Warnings, "age was not extracted from the patient description")
	})

	t.Run("pediatric age is an error", func(t *testing.T) {
		outcome := v.Validate(&domain.PatientProfile{Age: 15, Conditions: []string{"hypertension"}})

		assert.False(t, outcome.IsValid)
	})

	t.Run("implausible age is an error", func(t *testing.T) {
		outcome := v.Validate(&domain.PatientProfile{Age: 130, Conditions: []string{"hypertension"}})

		assert.False(t, outcome.IsValid)
	})
}

func TestProfileValidator_Stage(t *testing.T) {
	v := NewProfileValidator(quietLogger())

	base := func(stage string) *domain.PatientProfile {
		return &domain.PatientProfile{Age: 60, Stage: stage, Conditions: []string{"hypertension"}}
	}

	t.Run("known stage passes", func(t *testing.T) {
		assert.True(t, v.Validate(base("Stage IIIA")).IsValid)
	})

	t.Run("trailing annotation after a known designation passes", func(t *testing.T) {
		assert.True(t, v.Validate(base("Stage IV (metastatic)")).IsValid)
	})

	t.Run("unknown notation fails", func(t *testing.T) {
		outcome := v.Validate(base("Stage 2"))

		assert.False(t, outcome.IsValid)
		assert.Contains(t, outcome.Errors[0], "does not match any known stage notation")
	})

	t.Run("stage 0 alone is accepted", func(t *testing.T) {
		assert.True(t, v.Validate(base("Stage 0")).IsValid)
	})

	t.Run("stage 0 with metastatic condition is contradictory", func(t *testing.T) {
		p := base("Stage 0")
		p.Conditions = []string{"metastatic breast cancer"}

		outcome := v.Validate(p)

		assert.False(t, outcome.IsValid)
		assert.Contains(t, outcome.Errors, "stage 0 contradicts a metastatic condition")
	})
}

func TestProfileValidator_ECOG(t *testing.T) {
	v := NewProfileValidator(quietLogger())

	outcome := v.Validate(&domain.PatientProfile{
		Age:               60,
		Conditions:        []string{"hypertension"},
		PerformanceStatus: "ECOG 7",
	})

	assert.False(t, outcome.IsValid)
	assert.Contains(t, outcome.Errors[0], "outside the 0-5 scale")
}

func TestProfileValidator_TNBCContradiction(t *testing.T) {
	v := NewProfileValidator(quietLogger())

	outcome := v.Validate(&domain.PatientProfile{
		Age:        55,
		Conditions: []string{"triple-negative breast cancer"},
		Stage:      "Stage II",
		Biomarkers: map[string]string{"HER2": "positive", "ER": "negative", "PR": "negative"},
	})

	assert.False(t, outcome.IsValid)
	assert.Contains(t, outcome.Errors, "triple-negative diagnosis contradicts HER2-positive biomarker")
}

func TestProfileValidator_Warnings(t *testing.T) {
	v := NewProfileValidator(quietLogger())

	t.Run("no conditions", func(t *testing.T) {
		outcome := v.Validate(&domain.PatientProfile{Age: 60})

		assert.True(t, outcome.IsValid)
		assert.Contains(t, outcome.Warnings, "no conditions were extracted")
	})

	t.Run("cancer without stage", func(t *testing.T) {
		outcome := v.Validate(&domain.PatientProfile{
			Age:        60,
			Conditions: []string{"lung carcinoma"},
		})

		assert.True(t, outcome.IsValid)
		assert.Contains(t, outcome.Warnings, "cancer diagnosis without a documented stage")
	})

	t.Run("breast cancer without biomarkers", func(t *testing.T) {
		outcome := v.Validate(&domain.PatientProfile{
			Age:        60,
			Conditions: []string{"breast cancer"},
			Stage:      "Stage II",
		})

		assert.True(t, outcome.IsValid)
		assert.Contains(t, outcome.Warnings, "breast cancer diagnosis without biomarker data")
	})
}
