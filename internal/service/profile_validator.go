package service

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/trialguard-server/internal/domain"
)

// cancerTerms marks a condition as cancer-bearing for the advisory
// missing-stage warning.
var cancerTerms = []string{"cancer", "carcinoma", "tumor", "sarcoma", "lymphoma", "leukemia", "melanoma"}

// ProfileValidator checks plausibility and internal consistency of a
// structured patient profile. Pure: it never mutates its input.
type ProfileValidator struct {
	logger *logrus.Logger
}

// NewProfileValidator creates a new profile validator.
func NewProfileValidator(logger *logrus.Logger) *ProfileValidator {
	return &ProfileValidator{logger: logger}
}

// Validate returns a ValidationOutcome for the profile. Errors mark
// contradictions and impossibilities; warnings are advisory and never
// block downstream processing.
func (v *ProfileValidator) Validate(profile *domain.PatientProfile) domain.ValidationOutcome {
	var errs, warnings []string

	if profile == nil {
		return domain.NewValidationOutcome([]string{"profile is missing"}, nil)
	}

	// Age 0 means the extractor found nothing, which is advisory only.
	switch {
	case profile.Age == 0:
		warnings = append(warnings, "age was not extracted from the patient description")
	case profile.Age < 18 || profile.Age > 120:
		errs = append(errs, fmt.Sprintf("age %d is outside the plausible adult range [18,120]", profile.Age))
	}

	stageTok := StageToken(profile.Stage)
	if profile.Stage != "" && stageTok != "0" && !knownStageToken(stageTok) {
		errs = append(errs, fmt.Sprintf("stage %q does not match any known stage notation", profile.Stage))
	}

	if stageTok == "0" && anyContains(profile.Conditions, "metastatic") {
		errs = append(errs, "stage 0 contradicts a metastatic condition")
	}

	if ecog, ok := parseECOG(profile.PerformanceStatus); ok && (ecog < 0 || ecog > 5) {
		errs = append(errs, fmt.Sprintf("ECOG performance status %d is outside the 0-5 scale", ecog))
	}

	if patientHasTNBCCondition(profile) {
		for _, marker := range []string{"HER2", "ER", "PR"} {
			if ResolveBiomarkerStatus(profile.Biomarkers, marker) == domain.BiomarkerPositive {
				errs = append(errs, fmt.Sprintf("triple-negative diagnosis contradicts %s-positive biomarker", marker))
			}
		}
	}

	if len(profile.Conditions) == 0 {
		warnings = append(warnings, "no conditions were extracted")
	}

	if profile.Stage == "" && hasCancerCondition(profile.Conditions) {
		warnings = append(warnings, "cancer diagnosis without a documented stage")
	}

	if len(profile.Biomarkers) == 0 && anyContains(profile.Conditions, "breast cancer") {
		warnings = append(warnings, "breast cancer diagnosis without biomarker data")
	}

	if v.logger != nil && len(errs) > 0 {
		v.logger.WithFields(logrus.Fields{
			"errors":   len(errs),
			"warnings": len(warnings),
		}).Warn("Patient profile failed validation")
	}

	return domain.NewValidationOutcome(errs, warnings)
}

// knownStageToken reports whether the token's leading stage designation
// is in the closed stage vocabulary. Trailing annotations such as
// "IV (metastatic)" are ignored. The bare "0" token is not in the
// vocabulary; Validate exempts it so the stage-0 contradiction check
// owns that case (see DESIGN.md, Stage "0").
func knownStageToken(tok string) bool {
	if tok == "" {
		return false
	}
	lead := leadingStageDesignation(tok)
	return domain.StageVocabulary[lead]
}

// leadingStageDesignation takes the longest prefix built from stage
// designation characters (roman numerals plus the A/B/C substage letters).
func leadingStageDesignation(tok string) string {
	end := 0
	for end < len(tok) {
		switch tok[end] {
		case 'I', 'V', 'A', 'B', 'C', '0':
			end++
		default:
			return tok[:end]
		}
	}
	return tok
}

// parseECOG extracts the first digit of a performance status string.
func parseECOG(status string) (int, bool) {
	for _, r := range status {
		if unicode.IsDigit(r) {
			return int(r - '0'), true
		}
	}
	return 0, false
}

// patientHasTNBCCondition reports whether any condition names a
// triple-negative diagnosis.
func patientHasTNBCCondition(profile *domain.PatientProfile) bool {
	for _, c := range profile.Conditions {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "triple negative") || strings.Contains(lc, "triple-negative") || strings.Contains(lc, "tnbc") {
			return true
		}
	}
	return false
}

// hasCancerCondition reports whether any condition is cancer-bearing.
func hasCancerCondition(conditions []string) bool {
	for _, c := range conditions {
		if containsAny(strings.ToLower(c), cancerTerms) {
			return true
		}
	}
	return false
}

// anyContains reports whether any entry contains the needle,
// case-insensitively.
func anyContains(entries []string, needle string) bool {
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e), needle) {
			return true
		}
	}
	return false
}
