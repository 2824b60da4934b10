// Package domain contains the core business entities and types for
// deterministic clinical-trial eligibility guardrails: patient profiles,
// trial records, upstream AI verdicts and the override verdicts the
// guardrail engine layers on top of them.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// BiomarkerStatus is the tri-state resolution of a named biomarker.
// It is an enumerated sum type rather than a string so that rule
// conditions over it are exhaustiveness-checkable at build time.
type BiomarkerStatus int

const (
	BiomarkerUnknown BiomarkerStatus = iota
	BiomarkerPositive
	BiomarkerNegative
)

// String returns the wire representation of the status.
func (s BiomarkerStatus) String() string {
	switch s {
	case BiomarkerPositive:
		return "positive"
	case BiomarkerNegative:
		return "negative"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its lowercase wire form.
func (s BiomarkerStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the lowercase wire form; anything unrecognized
// resolves to unknown, never an error.
func (s *BiomarkerStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "positive":
		*s = BiomarkerPositive
	case "negative":
		*s = BiomarkerNegative
	default:
		*s = BiomarkerUnknown
	}
	return nil
}

// Gender represents the extracted patient gender.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

// IsValid reports whether the gender is one of the enumerated values.
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	default:
		return false
	}
}

// TrialPhase represents the clinical-trial phase of a record.
type TrialPhase string

const (
	Phase1 TrialPhase = "Phase 1"
	Phase2 TrialPhase = "Phase 2"
	Phase3 TrialPhase = "Phase 3"
)

// IsValid reports whether the phase is one of the three enumerated phases.
func (p TrialPhase) IsValid() bool {
	switch p {
	case Phase1, Phase2, Phase3:
		return true
	default:
		return false
	}
}

// String returns the string representation of the phase.
func (p TrialPhase) String() string {
	return string(p)
}

// CancerType is the closed set of cancer types a trial record may carry.
type CancerType string

const (
	CancerBreast     CancerType = "breast"
	CancerLung       CancerType = "lung"
	CancerColorectal CancerType = "colorectal"
	CancerProstate   CancerType = "prostate"
	CancerOther      CancerType = "other"
)

// IsValid reports whether the cancer type is in the closed set.
func (c CancerType) IsValid() bool {
	switch c {
	case CancerBreast, CancerLung, CancerColorectal, CancerProstate, CancerOther:
		return true
	default:
		return false
	}
}

// OverrideStatus is the status a guardrail override forces onto a match.
type OverrideStatus string

const (
	OverrideMatch     OverrideStatus = "match"
	OverrideUncertain OverrideStatus = "uncertain"
	OverrideExclude   OverrideStatus = "exclude"
)

// IsValid reports whether the override status is one of the enumerated values.
func (o OverrideStatus) IsValid() bool {
	switch o {
	case OverrideMatch, OverrideUncertain, OverrideExclude:
		return true
	default:
		return false
	}
}

// Severity orders override statuses for strictest-wins combination:
// exclude dominates uncertain dominates match.
func (o OverrideStatus) Severity() int {
	switch o {
	case OverrideExclude:
		return 3
	case OverrideUncertain:
		return 2
	case OverrideMatch:
		return 1
	default:
		return 0
	}
}

// ConfidenceLevel is the upstream model's self-reported confidence.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// IsValid reports whether the confidence level is one of the enumerated values.
func (c ConfidenceLevel) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// Validation errors for structural data integrity.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidPhase          = errors.New("invalid trial phase")
	ErrInvalidOverrideStatus = errors.New("invalid override status")
	ErrInvalidConfidence     = errors.New("invalid confidence level")
)

// StageVocabulary is the closed set of recognized cancer stage tokens.
// Profile validation accepts a stage whose leading stage designation is
// in this set.
var StageVocabulary = map[string]bool{
	"I": true, "IA": true, "IB": true,
	"II": true, "IIA": true, "IIB": true,
	"III": true, "IIIA": true, "IIIB": true, "IIIC": true,
	"IV": true, "IVA": true, "IVB": true,
}

// Validate ensures a trial phase read from external data is usable.
func ValidatePhase(p TrialPhase) error {
	if !p.IsValid() {
		return fmt.Errorf("phase validation: %w: %q", ErrInvalidPhase, string(p))
	}
	return nil
}
