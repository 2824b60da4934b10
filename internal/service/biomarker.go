package service

import (
	"sort"
	"strings"

	"github.com/trialguard-server/internal/domain"
)

// ResolveBiomarkerStatus derives a tri-state status for a named
// biomarker from a free-form biomarker mapping. The marker name is
// matched case-insensitively as a substring of the existing keys; keys
// are scanned in sorted order so the result is deterministic for maps
// that contain more than one matching key.
//
// The function is total: any input resolves to exactly one of positive,
// negative or unknown and it never fails.
func ResolveBiomarkerStatus(biomarkers map[string]string, marker string) domain.BiomarkerStatus {
	if len(biomarkers) == 0 || marker == "" {
		return domain.BiomarkerUnknown
	}

	needle := strings.ToLower(marker)

	keys := make([]string, 0, len(biomarkers))
	for k := range biomarkers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !strings.Contains(strings.ToLower(key), needle) {
			continue
		}
		return classifyBiomarkerValue(biomarkers[key])
	}

	return domain.BiomarkerUnknown
}

// classifyBiomarkerValue inspects a free-text biomarker value. The
// positive check runs before the negative check, so a value containing
// both phrasings resolves to positive.
func classifyBiomarkerValue(value string) domain.BiomarkerStatus {
	v := strings.ToLower(strings.TrimSpace(value))

	if strings.Contains(v, "positive") || strings.Contains(v, "+") || v == "3+" || v == "2+" {
		return domain.BiomarkerPositive
	}
	if strings.Contains(v, "negative") || strings.Contains(v, "-") || v == "0" || v == "1+" {
		return domain.BiomarkerNegative
	}

	return domain.BiomarkerUnknown
}
