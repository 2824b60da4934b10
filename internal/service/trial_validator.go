package service

import (
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/trialguard-server/internal/domain"
)

// nctIDPattern is the registry identifier format: "NCT" plus 8 digits.
var nctIDPattern = regexp.MustCompile(`^NCT\d{8}$`)

const (
	minTitleLength       = 10
	minSummaryLength     = 20
	minInclusionCriteria = 3
	minExclusionCriteria = 2
)

// TrialValidator checks structural completeness of trial records. It
// runs over the whole catalog, off the per-match hot path.
type TrialValidator struct {
	logger *logrus.Logger
}

// NewTrialValidator creates a new trial record validator.
func NewTrialValidator(logger *logrus.Logger) *TrialValidator {
	return &TrialValidator{logger: logger}
}

// Validate returns one ValidationOutcome covering all records. Each
// message is prefixed with the record's ordinal index for traceability.
func (v *TrialValidator) Validate(trials []domain.TrialRecord) domain.ValidationOutcome {
	var errs, warnings []string

	for i, trial := range trials {
		if !nctIDPattern.MatchString(trial.NCTID) {
			errs = append(errs, fmt.Sprintf("trial[%d]: nct_id %q does not match NCT00000000 format", i, trial.NCTID))
		}
		if len(trial.Title) < minTitleLength {
			errs = append(errs, fmt.Sprintf("trial[%d]: title is missing or shorter than %d characters", i, minTitleLength))
		}
		if !trial.Phase.IsValid() {
			errs = append(errs, fmt.Sprintf("trial[%d]: phase %q is not one of the enumerated phases", i, string(trial.Phase)))
		}
		if len(trial.BriefSummary) < minSummaryLength {
			errs = append(errs, fmt.Sprintf("trial[%d]: brief summary is missing or shorter than %d characters", i, minSummaryLength))
		}
		if len(trial.InclusionCriteria) < minInclusionCriteria {
			errs = append(errs, fmt.Sprintf("trial[%d]: fewer than %d inclusion criteria", i, minInclusionCriteria))
		}
		if len(trial.ExclusionCriteria) < minExclusionCriteria {
			errs = append(errs, fmt.Sprintf("trial[%d]: fewer than %d exclusion criteria", i, minExclusionCriteria))
		}
		if !trial.CancerType.IsValid() {
			warnings = append(warnings, fmt.Sprintf("trial[%d]: cancer type %q is outside the known set", i, string(trial.CancerType)))
		}
	}

	if v.logger != nil {
		v.logger.WithFields(logrus.Fields{
			"trials":   len(trials),
			"errors":   len(errs),
			"warnings": len(warnings),
		}).Debug("Completed trial record validation")
	}

	return domain.NewValidationOutcome(errs, warnings)
}
