package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trialguard-server/internal/domain"
)

// noOverrideReasoning is the terminal reasoning when no rule tripped.
const noOverrideReasoning = "No guardrail override applied; AI assessment stands."

// GuardrailEngine evaluates a fixed ordered sequence of deterministic
// clinical rules against a (patient, trial, AI verdict) triple and
// produces an override decision plus an accumulated flag list.
//
// All rules run every time; there is no short-circuit and the engine
// never fails. Every rule whose trigger condition holds appends its
// flags; an override-setting rule also overwrites the override fields.
// Historically the overwrite is unconditional, so the last triggered
// rule wins even when an earlier rule was stricter. StrictestWins in
// the config switches to exclude > uncertain > match with the lower
// score winning ties.
type GuardrailEngine struct {
	logger        *logrus.Logger
	strictestWins bool
	rules         []guardrailRule
}

// guardrailRule is one deterministic clinical rule.
type guardrailRule struct {
	Name        string
	Description string
	Evaluate    func(rc *ruleContext) ruleOutcome
}

// ruleOutcome is what a single rule contributes: zero or more flags and
// at most one override.
type ruleOutcome struct {
	Flags    []string
	Override *ruleOverride
}

// ruleOverride carries the override fields a triggered rule forces.
type ruleOverride struct {
	Score     int
	Status    domain.OverrideStatus
	Reasoning string
}

// ruleContext holds the facts derived once per evaluation that the
// rules inspect.
type ruleContext struct {
	patient *domain.PatientProfile
	trial   *domain.TrialRecord
	verdict *domain.AIVerdict

	her2 domain.BiomarkerStatus

	trialText     string // title + summary + inclusion criteria, lowercased
	exclusionText string // exclusion criteria, lowercased
	treatmentText string // prior treatments + medications, lowercased
	patientText   string // conditions + prior treatments, lowercased

	stageToken        string
	patientMetastatic bool
	patientEarlyStage bool
	patientTNBC       bool

	ecog    int
	hasECOG bool
}

// NewGuardrailEngine creates a new guardrail rule engine.
func NewGuardrailEngine(logger *logrus.Logger, cfg domain.GuardrailConfig) *GuardrailEngine {
	e := &GuardrailEngine{
		logger:        logger,
		strictestWins: cfg.StrictestWins,
	}

	// Evaluation order matters: each override-setting rule overwrites
	// the fields any earlier rule set.
	e.rules = []guardrailRule{
		{Name: "her2_requirement", Description: "HER2 requirement mismatch", Evaluate: evaluateHER2Requirement},
		{Name: "stage_mismatch", Description: "Disease stage mismatch", Evaluate: evaluateStageMismatch},
		{Name: "prior_treatment", Description: "Prior treatment requirements", Evaluate: evaluatePriorTreatment},
		{Name: "ecog_requirement", Description: "ECOG performance requirement", Evaluate: evaluateECOGRequirement},
		{Name: "tnbc_consistency", Description: "TNBC/HER2 subtype consistency", Evaluate: evaluateTNBCConsistency},
		{Name: "brain_metastases", Description: "Brain metastases exclusion", Evaluate: evaluateBrainMetastases},
		{Name: "ai_consistency", Description: "AI explanation consistency check", Evaluate: evaluateAIConsistency},
	}

	return e
}

// Apply evaluates all guardrail rules in their fixed order and returns
// the resulting verdict. Pure and deterministic: no I/O, no retained
// state, never fails.
func (e *GuardrailEngine) Apply(patient *domain.PatientProfile, trial *domain.TrialRecord, verdict *domain.AIVerdict) domain.GuardrailVerdict {
	rc := newRuleContext(patient, trial, verdict)

	out := domain.GuardrailVerdict{
		Flags:     []string{},
		Reasoning: noOverrideReasoning,
	}

	for _, rule := range e.rules {
		result := rule.Evaluate(rc)
		out.Flags = append(out.Flags, result.Flags...)

		if result.Override == nil {
			continue
		}
		if e.strictestWins && !stricter(*result.Override, &out) {
			continue
		}

		score := result.Override.Score
		out.ShouldOverride = true
		out.OverrideScore = &score
		out.OverrideStatus = result.Override.Status
		out.Reasoning = result.Override.Reasoning
	}

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"nct_id":          trial.NCTID,
			"should_override": out.ShouldOverride,
			"override_status": string(out.OverrideStatus),
			"flags":           len(out.Flags),
		}).Debug("Completed guardrail evaluation")
	}

	return out
}

// stricter reports whether the candidate override dominates the current
// verdict under strictest-wins combination.
func stricter(candidate ruleOverride, current *domain.GuardrailVerdict) bool {
	if !current.ShouldOverride {
		return true
	}
	cs, vs := candidate.Status.Severity(), current.OverrideStatus.Severity()
	if cs != vs {
		return cs > vs
	}
	return current.OverrideScore == nil || candidate.Score < *current.OverrideScore
}

// newRuleContext derives the per-evaluation facts all rules share.
func newRuleContext(patient *domain.PatientProfile, trial *domain.TrialRecord, verdict *domain.AIVerdict) *ruleContext {
	if patient == nil {
		patient = &domain.PatientProfile{}
	}
	if trial == nil {
		trial = &domain.TrialRecord{}
	}
	if verdict == nil {
		verdict = &domain.AIVerdict{}
	}

	rc := &ruleContext{
		patient: patient,
		trial:   trial,
		verdict: verdict,
		her2:    ResolveBiomarkerStatus(patient.Biomarkers, "her2"),
	}

	inclusionParts := append([]string{trial.Title, trial.BriefSummary}, trial.InclusionCriteria...)
	rc.trialText = strings.ToLower(strings.Join(inclusionParts, " "))
	rc.exclusionText = strings.ToLower(strings.Join(trial.ExclusionCriteria, " "))

	treatments := append(append([]string(nil), patient.PriorTreatments...), patient.Medications...)
	rc.treatmentText = strings.ToLower(strings.Join(treatments, " "))

	docs := append(append([]string(nil), patient.Conditions...), patient.PriorTreatments...)
	rc.patientText = strings.ToLower(strings.Join(docs, " "))

	rc.stageToken = StageToken(patient.Stage)
	rc.patientMetastatic = strings.Contains(rc.stageToken, "IV") ||
		strings.Contains(strings.ToLower(patient.Stage), "metastatic") ||
		anyContains(patient.Conditions, "metastatic")
	rc.patientEarlyStage = rc.stageToken != "" && !rc.patientMetastatic &&
		!strings.HasPrefix(rc.stageToken, "IV") && strings.HasPrefix(rc.stageToken, "I")
	rc.patientTNBC = patientHasTNBCCondition(patient)

	rc.ecog, rc.hasECOG = parseECOG(patient.PerformanceStatus)

	return rc
}

// Rule 1: HER2 requirement mismatch.
func evaluateHER2Requirement(rc *ruleContext) ruleOutcome {
	requiresPositive := containsAny(rc.trialText, []string{"her2-positive", "her2 positive", "her2+"})
	requiresNegative := !requiresPositive &&
		containsAny(rc.trialText, []string{"her2-negative", "her2 negative", "triple negative", "triple-negative", "tnbc"})

	var out ruleOutcome

	switch {
	case requiresPositive && rc.her2 == domain.BiomarkerNegative:
		msg := "Trial requires HER2-positive disease but patient is HER2-negative"
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 15, Status: domain.OverrideExclude, Reasoning: msg}
	case requiresPositive && rc.her2 == domain.BiomarkerUnknown:
		msg := "Trial requires HER2-positive disease but patient HER2 status is unknown"
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 45, Status: domain.OverrideUncertain, Reasoning: msg}
	case requiresNegative && rc.her2 == domain.BiomarkerPositive:
		msg := "Trial requires HER2-negative disease but patient is HER2-positive"
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 15, Status: domain.OverrideExclude, Reasoning: msg}
	case requiresNegative && rc.her2 == domain.BiomarkerUnknown:
		msg := "Trial requires HER2-negative disease but patient HER2 status is unknown"
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 45, Status: domain.OverrideUncertain, Reasoning: msg}
	}

	return out
}

// Rule 2: disease stage mismatch.
func evaluateStageMismatch(rc *ruleContext) ruleOutcome {
	var out ruleOutcome

	trialMetastatic := containsAny(rc.trialText, []string{"metastatic", "advanced", "stage iv"})
	if trialMetastatic && rc.patientEarlyStage {
		msg := fmt.Sprintf("Trial targets metastatic/advanced disease but patient is early-stage (%s)", rc.patient.Stage)
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 20, Status: domain.OverrideExclude, Reasoning: msg}
	}

	trialEarly := containsAny(rc.trialText, []string{"early", "adjuvant", "neoadjuvant"})
	if trialEarly && rc.patientMetastatic {
		msg := "Trial targets early-stage disease but patient has metastatic disease"
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 20, Status: domain.OverrideExclude, Reasoning: msg}
	}

	return out
}

// Rule 3: prior-treatment requirements.
func evaluatePriorTreatment(rc *ruleContext) ruleOutcome {
	var out ruleOutcome

	requiresTrastuzumab := containsAny(rc.trialText, []string{"prior trastuzumab", "previous trastuzumab", "prior treatment with trastuzumab"})
	hadTrastuzumab := containsAny(rc.treatmentText, []string{"trastuzumab", "herceptin"})
	if requiresTrastuzumab && !hadTrastuzumab {
		msg := "Trial requires prior trastuzumab therapy not found in patient history"
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 25, Status: domain.OverrideExclude, Reasoning: msg}
	}

	requiresTaxane := containsAny(rc.trialText, []string{"prior taxane", "previous taxane", "prior treatment with a taxane"})
	hadTaxane := containsAny(rc.treatmentText, []string{"taxane", "paclitaxel", "docetaxel"})
	if requiresTaxane && !hadTaxane {
		msg := "Trial requires prior taxane therapy not found in patient history"
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 25, Status: domain.OverrideExclude, Reasoning: msg}
	}

	forbidsTDM1 := containsAny(rc.exclusionText, []string{"t-dm1", "trastuzumab emtansine", "kadcyla"})
	hadTDM1 := containsAny(rc.treatmentText, []string{"t-dm1", "trastuzumab emtansine", "kadcyla"})
	if forbidsTDM1 && hadTDM1 {
		msg := "Trial excludes prior T-DM1 therapy documented in patient history"
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 15, Status: domain.OverrideExclude, Reasoning: msg}
	}

	return out
}

// Rule 4: ECOG performance requirement.
func evaluateECOGRequirement(rc *ruleContext) ruleOutcome {
	var out ruleOutcome

	requiresECOG01 := containsAny(rc.trialText, []string{"ecog 0-1", "ecog performance status 0-1", "ecog ps 0-1", "ecog 0 or 1"})
	if requiresECOG01 && rc.hasECOG && rc.ecog > 1 {
		msg := fmt.Sprintf("Trial requires ECOG 0-1 but patient performance status is ECOG %d", rc.ecog)
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 30, Status: domain.OverrideExclude, Reasoning: msg}
	}

	return out
}

// Rule 5: TNBC/HER2 subtype consistency.
func evaluateTNBCConsistency(rc *ruleContext) ruleOutcome {
	var out ruleOutcome

	trialTargetsTNBC := containsAny(rc.trialText, []string{"triple negative", "triple-negative", "tnbc"})
	if trialTargetsTNBC && !rc.patientTNBC && rc.her2 == domain.BiomarkerPositive {
		msg := "Trial targets triple-negative disease but patient is HER2-positive"
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 15, Status: domain.OverrideExclude, Reasoning: msg}
	}

	return out
}

// Rule 6: brain metastases exclusion.
func evaluateBrainMetastases(rc *ruleContext) ruleOutcome {
	var out ruleOutcome

	forbidsBrainMets := containsAny(rc.exclusionText, []string{"brain metast", "cns metast", "brain mets", "central nervous system metast"})
	hasBrainMets := containsAny(rc.patientText, []string{"brain", "cranial"})
	if forbidsBrainMets && hasBrainMets {
		msg := "Trial excludes brain/CNS metastases documented in patient history"
		out.Flags = append(out.Flags, msg)
		out.Override = &ruleOverride{Score: 20, Status: domain.OverrideExclude, Reasoning: msg}
	}

	return out
}

// Rule 7: AI explanation consistency check. Flags only, never overrides.
func evaluateAIConsistency(rc *ruleContext) ruleOutcome {
	var out ruleOutcome

	explanation := strings.ToLower(rc.verdict.Explanation)
	if explanation == "" {
		return out
	}

	mentionsHER2Negative := containsAny(explanation, []string{"her2-negative", "her2 negative"})
	mentionsHER2Positive := containsAny(explanation, []string{"her2-positive", "her2 positive"})

	if mentionsHER2Negative && rc.her2 == domain.BiomarkerPositive {
		out.Flags = append(out.Flags, "AI explanation describes HER2-negative disease but patient resolves HER2-positive")
	}
	if mentionsHER2Positive && rc.her2 == domain.BiomarkerNegative {
		out.Flags = append(out.Flags, "AI explanation describes HER2-positive disease but patient resolves HER2-negative")
	}
	if containsAny(explanation, []string{"early-stage", "early stage"}) && rc.patientMetastatic {
		out.Flags = append(out.Flags, "AI explanation describes early-stage disease but patient has metastatic disease")
	}

	return out
}
