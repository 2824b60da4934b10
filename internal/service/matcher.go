package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trialguard-server/internal/domain"
)

// Assessor is the LLM-backed assessment collaborator: one advisory
// verdict per (profile, trial) pair. Its output is untrusted input to
// the guardrail engine.
type Assessor interface {
	Assess(ctx context.Context, profile *domain.PatientProfile, trial *domain.TrialRecord) (*domain.AIVerdict, error)
}

// MatchRecorder persists final match decisions. Advisory only; the
// matcher logs and continues when recording fails.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, result *domain.MatchResult) error
}

// MatchEvaluation is the full outcome of matching one patient against a
// set of trials.
type MatchEvaluation struct {
	Profile           *domain.PatientProfile   `json:"profile"`
	ProfileValidation domain.ValidationOutcome `json:"profile_validation"`
	Results           []domain.MatchResult     `json:"results"`
}

// MatcherService orchestrates the match pipeline: normalize and infer,
// validate (advisory), then per trial assess, guardrail and merge.
// Trial evaluations are independent, so they run concurrently bounded
// by a semaphore; the only ordering requirement is internal to a single
// guardrail evaluation.
type MatcherService struct {
	logger         *logrus.Logger
	normalizer     *ProfileNormalizer
	validator      *ProfileValidator
	trialValidator *TrialValidator
	engine         *GuardrailEngine
	assessor       Assessor
	recorder       MatchRecorder

	maxConcurrency int
}

// NewMatcherService creates a new matcher service. recorder may be nil.
func NewMatcherService(
	logger *logrus.Logger,
	engine *GuardrailEngine,
	assessor Assessor,
	recorder MatchRecorder,
	maxConcurrency int,
) *MatcherService {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &MatcherService{
		logger:         logger,
		normalizer:     NewProfileNormalizer(logger),
		validator:      NewProfileValidator(logger),
		trialValidator: NewTrialValidator(logger),
		engine:         engine,
		assessor:       assessor,
		recorder:       recorder,
		maxConcurrency: maxConcurrency,
	}
}

// EvaluateTrials runs the full pipeline for one patient against the
// given trials. Results keep the input trial order regardless of
// completion order.
func (m *MatcherService) EvaluateTrials(ctx context.Context, profile *domain.PatientProfile, rawText string, trials []domain.TrialRecord) (*MatchEvaluation, error) {
	start := time.Now()

	normalized := m.normalizer.NormalizeAndInfer(profile, rawText)
	validation := m.validator.Validate(normalized)

	results := make([]domain.MatchResult, len(trials))

	sem := make(chan struct{}, m.maxConcurrency)
	var wg sync.WaitGroup

	for i := range trials {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = m.evaluateOne(ctx, normalized, &trials[i])
		}(i)
	}
	wg.Wait()

	if m.recorder != nil {
		for i := range results {
			if err := m.recorder.RecordMatch(ctx, &results[i]); err != nil {
				m.logger.WithError(err).WithField("nct_id", results[i].NCTID).Warn("Failed to record match result")
			}
		}
	}

	m.logger.WithFields(logrus.Fields{
		"trials":          len(trials),
		"profile_valid":   validation.IsValid,
		"processing_time": time.Since(start),
	}).Info("Completed trial matching")

	return &MatchEvaluation{
		Profile:           normalized,
		ProfileValidation: validation,
		Results:           results,
	}, nil
}

// evaluateOne assesses a single trial and applies the guardrails. An
// assessment failure degrades to an empty advisory verdict: the
// deterministic rules still run.
func (m *MatcherService) evaluateOne(ctx context.Context, profile *domain.PatientProfile, trial *domain.TrialRecord) domain.MatchResult {
	verdict, err := m.assessor.Assess(ctx, profile, trial)
	if err != nil || verdict == nil {
		if err != nil {
			m.logger.WithError(err).WithField("nct_id", trial.NCTID).Warn("Assessment collaborator failed, applying guardrails to empty verdict")
		}
		verdict = &domain.AIVerdict{ConfidenceLevel: domain.ConfidenceLow}
	}

	guardrail := m.engine.Apply(profile, trial, verdict)

	result := domain.MatchResult{
		NCTID:       trial.NCTID,
		Title:       trial.Title,
		AIVerdict:   *verdict,
		Guardrail:   guardrail,
		FinalScore:  verdict.MatchScore,
		FinalStatus: domain.OverrideMatch,
		EvaluatedAt: time.Now().UTC(),
	}

	if guardrail.ShouldOverride {
		if guardrail.OverrideScore != nil {
			result.FinalScore = *guardrail.OverrideScore
		}
		result.FinalStatus = guardrail.OverrideStatus
	}

	return result
}

// ApplyGuardrails exposes the bare guardrail evaluation for callers
// that already hold an upstream verdict.
func (m *MatcherService) ApplyGuardrails(profile *domain.PatientProfile, trial *domain.TrialRecord, verdict *domain.AIVerdict) domain.GuardrailVerdict {
	return m.engine.Apply(profile, trial, verdict)
}

// NormalizeAndInfer exposes profile normalization and inference.
func (m *MatcherService) NormalizeAndInfer(profile *domain.PatientProfile, rawText string) *domain.PatientProfile {
	return m.normalizer.NormalizeAndInfer(profile, rawText)
}

// ValidateProfile exposes advisory profile validation.
func (m *MatcherService) ValidateProfile(profile *domain.PatientProfile) domain.ValidationOutcome {
	return m.validator.Validate(profile)
}

// ValidateTrials exposes trial record validation.
func (m *MatcherService) ValidateTrials(trials []domain.TrialRecord) domain.ValidationOutcome {
	return m.trialValidator.Validate(trials)
}
