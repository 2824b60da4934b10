package service

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/trialguard-server/internal/domain"
)

// ProfileNormalizer canonicalizes extracted patient profiles and infers
// missing biomarkers from free text. It never fails: malformed fields
// are corrected or left for the validator to flag.
type ProfileNormalizer struct {
	logger *logrus.Logger
}

// NewProfileNormalizer creates a new profile normalizer.
func NewProfileNormalizer(logger *logrus.Logger) *ProfileNormalizer {
	return &ProfileNormalizer{logger: logger}
}

// markerInference describes the keyword scan for one inferable biomarker.
type markerInference struct {
	marker          string
	hormoneReceptor bool // HR+/hormone-receptor phrasing implies this marker
	tnbcImpliesNeg  bool
}

// inferenceOrder is the fixed scan order for biomarker inference.
var inferenceOrder = []markerInference{
	{marker: "HER2", tnbcImpliesNeg: true},
	{marker: "ER", hormoneReceptor: true, tnbcImpliesNeg: true},
	{marker: "PR", hormoneReceptor: true, tnbcImpliesNeg: true},
}

// NormalizeAndInfer returns a corrected copy of the profile. rawText is
// the original free-form patient description when available; it widens
// the corpus used for biomarker inference. Idempotent: re-running on an
// already-normalized profile is a no-op.
func (n *ProfileNormalizer) NormalizeAndInfer(profile *domain.PatientProfile, rawText string) *domain.PatientProfile {
	if profile == nil {
		return &domain.PatientProfile{Gender: domain.GenderUnknown}
	}

	p := profile.Clone()

	if p.Age < 0 {
		p.Age = 0
	}
	if p.Age > 120 {
		p.Age = 120
	}

	if !p.Gender.IsValid() {
		p.Gender = domain.GenderUnknown
	}

	if p.Stage != "" {
		if tok := StageToken(p.Stage); tok != "" {
			p.Stage = "Stage " + tok
		}
	}

	p.PerformanceStatus = normalizePerformanceStatus(p.PerformanceStatus)
	p.Biomarkers = rekeyBiomarkers(p.Biomarkers)

	n.inferBiomarkers(p, rawText)

	return p
}

// StageToken extracts the canonical stage token from a stage string:
// uppercased, "STAGE" prefix stripped, whitespace collapsed.
func StageToken(stage string) string {
	tok := strings.ToUpper(strings.TrimSpace(stage))
	tok = strings.TrimPrefix(tok, "STAGE")
	return strings.Join(strings.Fields(tok), " ")
}

// normalizePerformanceStatus canonicalizes a bare performance-status
// digit to "ECOG <digit>" when the ECOG token is missing.
func normalizePerformanceStatus(status string) string {
	if status == "" {
		return status
	}
	if strings.Contains(strings.ToLower(status), "ecog") {
		return status
	}
	for _, r := range status {
		if unicode.IsDigit(r) {
			return "ECOG " + string(r)
		}
	}
	return status
}

// rekeyBiomarkers re-keys every biomarker entry to an uppercase
// alphanumeric-only key. Collisions are last-write-wins in the original
// enumeration order, which for a Go map is its sorted key order.
func rekeyBiomarkers(biomarkers map[string]string) map[string]string {
	if biomarkers == nil {
		return nil
	}

	keys := make([]string, 0, len(biomarkers))
	for k := range biomarkers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(biomarkers))
	for _, k := range keys {
		rk := rekey(k)
		if rk == "" {
			continue
		}
		out[rk] = biomarkers[k]
	}
	return out
}

// rekey strips a biomarker key down to its uppercase alphanumeric form.
func rekey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// inferBiomarkers fills in HER2/ER/PR when the extractor left them blank
// but the combined free text mentions them. The branch precedence is
// fixed: explicit positive phrasing, explicit negative phrasing, a
// triple-negative diagnosis, then hormone-receptor phrasing for ER/PR.
// The first matching branch wins; no match leaves the marker absent.
func (n *ProfileNormalizer) inferBiomarkers(p *domain.PatientProfile, rawText string) {
	corpus := buildCorpus(p, rawText)
	if corpus == "" {
		return
	}

	for _, inf := range inferenceOrder {
		if _, ok := p.Biomarkers[inf.marker]; ok {
			continue
		}

		status, found := scanMarker(corpus, inf)
		if !found {
			continue
		}

		if p.Biomarkers == nil {
			p.Biomarkers = make(map[string]string)
		}
		p.Biomarkers[inf.marker] = status.String()

		if n.logger != nil {
			n.logger.WithFields(logrus.Fields{
				"marker": inf.marker,
				"status": status.String(),
			}).Debug("Inferred biomarker status from free text")
		}
	}
}

// buildCorpus joins conditions, medications, prior treatments and the
// optional raw text into one lowercase search string.
func buildCorpus(p *domain.PatientProfile, rawText string) string {
	parts := make([]string, 0, len(p.Conditions)+len(p.Medications)+len(p.PriorTreatments)+1)
	parts = append(parts, p.Conditions...)
	parts = append(parts, p.Medications...)
	parts = append(parts, p.PriorTreatments...)
	if rawText != "" {
		parts = append(parts, rawText)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// scanMarker applies the fixed-precedence keyword scan for one marker.
func scanMarker(corpus string, inf markerInference) (domain.BiomarkerStatus, bool) {
	m := strings.ToLower(inf.marker)

	positives := []string{m + "+", m + "-positive", m + " positive", m + "pos"}
	if containsAny(corpus, positives) {
		return domain.BiomarkerPositive, true
	}

	negatives := []string{m + "-", m + "-negative", m + " negative", m + "neg"}
	if containsAny(corpus, negatives) {
		return domain.BiomarkerNegative, true
	}

	// TNBC is HER2-/ER-/PR- by definition.
	if inf.tnbcImpliesNeg && containsAny(corpus, []string{"triple negative", "triple-negative", "tnbc"}) {
		return domain.BiomarkerNegative, true
	}

	if inf.hormoneReceptor && containsAny(corpus, []string{"hr+", "hr-positive", "hormone receptor positive"}) {
		return domain.BiomarkerPositive, true
	}

	return domain.BiomarkerUnknown, false
}

// containsAny reports whether s contains any of the needles.
func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
