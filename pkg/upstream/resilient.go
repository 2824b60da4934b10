package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/trialguard-server/internal/domain"
)

// ResilientUpstream wraps the collaborator clients with circuit
// breakers and a two-tier verdict cache: an in-memory LRU for hot
// entries backed by Redis for warm ones. When a breaker is open a
// cached verdict is still served if one exists.
type ResilientUpstream struct {
	extractor *ExtractorClient
	assessor  *AssessorClient

	extractorBreaker *gobreaker.CircuitBreaker
	assessorBreaker  *gobreaker.CircuitBreaker

	memoryCache *expirable.LRU[string, *domain.AIVerdict]
	remoteCache *VerdictCache

	logger *logrus.Logger
}

// NewResilientUpstream creates the resilient collaborator wrapper.
// remoteCache may be nil when Redis is disabled; the memory tier still
// applies.
func NewResilientUpstream(
	upstreamConfig domain.UpstreamConfig,
	cacheConfig domain.CacheConfig,
	remoteCache *VerdictCache,
	logger *logrus.Logger,
) *ResilientUpstream {
	memorySize := cacheConfig.MemorySize
	if memorySize <= 0 {
		memorySize = 1000
	}
	memoryTTL := cacheConfig.MemoryTTL
	if memoryTTL <= 0 {
		memoryTTL = 15 * time.Minute
	}

	return &ResilientUpstream{
		extractor:        NewExtractorClient(upstreamConfig.Extractor, logger),
		assessor:         NewAssessorClient(upstreamConfig.Assessor, logger),
		extractorBreaker: newBreaker("extractor", logger),
		assessorBreaker:  newBreaker("assessor", logger),
		memoryCache:      expirable.NewLRU[string, *domain.AIVerdict](memorySize, nil, memoryTTL),
		remoteCache:      remoteCache,
		logger:           logger,
	}
}

// newBreaker builds a circuit breaker tuned for chatty LLM backends.
func newBreaker(name string, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// Extract calls the extraction collaborator through its breaker.
// Extraction results are not cached: the same free text rarely repeats
// and the normalizer is cheap.
func (r *ResilientUpstream) Extract(ctx context.Context, rawText string) (*domain.PatientProfile, error) {
	result, err := r.extractorBreaker.Execute(func() (interface{}, error) {
		return r.extractor.Extract(ctx, rawText)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("extraction collaborator unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	return result.(*domain.PatientProfile), nil
}

// Assess returns the advisory verdict for one (profile, trial) pair,
// consulting the memory tier, then Redis, then the collaborator.
func (r *ResilientUpstream) Assess(ctx context.Context, profile *domain.PatientProfile, trial *domain.TrialRecord) (*domain.AIVerdict, error) {
	key := VerdictKey(profile, trial)

	if verdict, ok := r.memoryCache.Get(key); ok {
		return verdict, nil
	}

	if r.remoteCache != nil {
		if verdict, found, err := r.remoteCache.Get(ctx, key); err == nil && found {
			r.memoryCache.Add(key, verdict)
			return verdict, nil
		}
	}

	result, err := r.assessorBreaker.Execute(func() (interface{}, error) {
		return r.assessor.Assess(ctx, profile, trial)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("assessment collaborator unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("assessment failed: %w", err)
	}

	verdict := result.(*domain.AIVerdict)
	r.memoryCache.Add(key, verdict)

	if r.remoteCache != nil {
		if cacheErr := r.remoteCache.Set(ctx, key, verdict, 0); cacheErr != nil {
			r.logger.WithError(cacheErr).Debug("Failed to cache assessment verdict")
		}
	}

	return verdict, nil
}

// BreakerStates returns the current state of both circuit breakers for
// health reporting.
func (r *ResilientUpstream) BreakerStates() map[string]string {
	return map[string]string{
		"extractor": r.extractorBreaker.State().String(),
		"assessor":  r.assessorBreaker.State().String(),
	}
}

// Close releases the remote cache connection when present.
func (r *ResilientUpstream) Close() error {
	if r.remoteCache != nil {
		return r.remoteCache.Close()
	}
	return nil
}
