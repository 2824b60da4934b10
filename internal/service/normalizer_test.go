package service

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialguard-server/internal/domain"
)

// quietLogger returns a logger that discards output in tests.
func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNormalizeAndInfer_NilProfile(t *testing.T) {
	n := NewProfileNormalizer(quietLogger())

	p := n.NormalizeAndInfer(nil, "")

	require.NotNil(t, p)
	assert.Equal(t, domain.GenderUnknown, p.Gender)
}

func TestNormalizeAndInfer_DoesNotMutateInput(t *testing.T) {
	n := NewProfileNormalizer(quietLogger())

	original := &domain.PatientProfile{
		Age:        200,
		Gender:     "F",
		Stage:      "stage iiia",
		Biomarkers: map[string]string{"her-2": "positive"},
	}

	_ = n.NormalizeAndInfer(original, "")

	assert.Equal(t, 200, original.Age)
	assert.Equal(t, domain.Gender("F"), original.Gender)
	assert.Equal(t, "stage iiia", original.Stage)
	assert.Equal(t, map[string]string{"her-2": "positive"}, original.Biomarkers)
}

func TestNormalizeAndInfer_FieldCorrections(t *testing.T) {
	n := NewProfileNormalizer(quietLogger())

	tests := []struct {
		name   string
		in     domain.PatientProfile
		verify func(t *testing.T, p *domain.PatientProfile)
	}{
		{
			name: "age clamped to upper bound",
			in:   domain.PatientProfile{Age: 200},
			verify: func(t *testing.T, p *domain.PatientProfile) {
				assert.Equal(t, 120, p.Age)
			},
		},
		{
			name: "negative age clamped to zero",
			in:   domain.PatientProfile{Age: -4},
			verify: func(t *testing.T, p *domain.PatientProfile) {
				assert.Equal(t, 0, p.Age)
			},
		},
		{
			name: "unrecognized gender becomes unknown",
			in:   domain.PatientProfile{Gender: "F"},
			verify: func(t *testing.T, p *domain.PatientProfile) {
				assert.Equal(t, domain.GenderUnknown, p.Gender)
			},
		},
		{
			name: "stage canonicalized",
			in:   domain.PatientProfile{Stage: "stage iiia"},
			verify: func(t *testing.T, p *domain.PatientProfile) {
				assert.Equal(t, "Stage IIIA", p.Stage)
			},
		},
		{
			name: "bare performance digit becomes ECOG notation",
			in:   domain.PatientProfile{PerformanceStatus: "2"},
			verify: func(t *testing.T, p *domain.PatientProfile) {
				assert.Equal(t, "ECOG 2", p.PerformanceStatus)
			},
		},
		{
			name: "existing ECOG notation left alone",
			in:   domain.PatientProfile{PerformanceStatus: "ECOG 1"},
			verify: func(t *testing.T, p *domain.PatientProfile) {
				assert.Equal(t, "ECOG 1", p.PerformanceStatus)
			},
		},
		{
			name: "biomarker keys reduced to uppercase alphanumerics",
			in:   domain.PatientProfile{Biomarkers: map[string]string{"her-2/neu": "positive"}},
			verify: func(t *testing.T, p *domain.PatientProfile) {
				assert.Equal(t, "positive", p.Biomarkers["HER2NEU"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.verify(t, n.NormalizeAndInfer(&tt.in, ""))
		})
	}
}

func TestNormalizeAndInfer_BiomarkerInference(t *testing.T) {
	n := NewProfileNormalizer(quietLogger())

	t.Run("triple-negative condition implies all three negative", func(t *testing.T) {
		p := n.NormalizeAndInfer(&domain.PatientProfile{
			Conditions: []string{"Triple-negative breast cancer"},
		}, "")

		assert.Equal(t, "negative", p.Biomarkers["HER2"])
		assert.Equal(t, "negative", p.Biomarkers["ER"])
		assert.Equal(t, "negative", p.Biomarkers["PR"])
	})

	t.Run("explicit positive phrasing in raw text", func(t *testing.T) {
		p := n.NormalizeAndInfer(&domain.PatientProfile{}, "62-year-old woman with HER2+ metastatic breast cancer")

		assert.Equal(t, "positive", p.Biomarkers["HER2"])
	})

	t.Run("hormone receptor phrasing fills ER and PR but not HER2", func(t *testing.T) {
		p := n.NormalizeAndInfer(&domain.PatientProfile{
			Conditions: []string{"HR+ breast cancer"},
		}, "")

		assert.Equal(t, "positive", p.Biomarkers["ER"])
		assert.Equal(t, "positive", p.Biomarkers["PR"])
		_, ok := p.Biomarkers["HER2"]
		assert.False(t, ok, "HER2 must not be inferred from hormone-receptor phrasing")
	})

	t.Run("explicit positive beats triple-negative phrasing", func(t *testing.T) {
		p := n.NormalizeAndInfer(&domain.PatientProfile{}, "her2 positive relapse after tnbc diagnosis")

		assert.Equal(t, "positive", p.Biomarkers["HER2"])
		assert.Equal(t, "negative", p.Biomarkers["ER"])
	})

	t.Run("existing biomarker entry is never overwritten", func(t *testing.T) {
		p := n.NormalizeAndInfer(&domain.PatientProfile{
			Conditions: []string{"triple negative breast cancer"},
			Biomarkers: map[string]string{"HER2": "3+"},
		}, "")

		assert.Equal(t, "3+", p.Biomarkers["HER2"])
		assert.Equal(t, "negative", p.Biomarkers["ER"])
	})
}

func TestNormalizeAndInfer_Idempotent(t *testing.T) {
	n := NewProfileNormalizer(quietLogger())

	in := &domain.PatientProfile{
		Age:               200,
		Gender:            "F",
		Conditions:        []string{"Triple-negative breast cancer", "hypertension"},
		Medications:       []string{"metformin"},
		Stage:             "stage iv",
		PerformanceStatus: "1",
		Biomarkers:        map[string]string{"pd-l1": "positive"},
	}

	once := n.NormalizeAndInfer(in, "")
	twice := n.NormalizeAndInfer(once, "")

	assert.Equal(t, once, twice)
}

func TestStageToken(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Stage IIIA", "IIIA"},
		{"stage iv", "IV"},
		{"  IV  ", "IV"},
		{"Stage IV (metastatic)", "IV (METASTATIC)"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, StageToken(tt.in), "input %q", tt.in)
	}
}
