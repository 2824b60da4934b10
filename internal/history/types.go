// Package history persists final match decisions so clinicians can
// audit why a trial was surfaced or suppressed. Two backends are
// provided: SQLite for single-node deployments and PostgreSQL for
// shared ones.
package history

import (
	"context"
	"time"

	"github.com/trialguard-server/internal/domain"
)

// MatchRecord is one persisted match decision.
type MatchRecord struct {
	ID             int64                 `json:"id"`
	NCTID          string                `json:"nct_id"`
	Title          string                `json:"title"`
	AIScore        int                   `json:"ai_score"`
	FinalScore     int                   `json:"final_score"`
	FinalStatus    domain.OverrideStatus `json:"final_status"`
	ShouldOverride bool                  `json:"should_override"`
	Flags          []string              `json:"flags"`
	Reasoning      string                `json:"reasoning"`
	CreatedAt      time.Time             `json:"created_at"`
}

// Store is the persistence interface for match decisions.
type Store interface {
	RecordMatch(ctx context.Context, result *domain.MatchResult) error
	List(ctx context.Context, limit, offset int) ([]*MatchRecord, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// recordFromResult maps a match result onto its persisted form.
func recordFromResult(result *domain.MatchResult) *MatchRecord {
	return &MatchRecord{
		NCTID:          result.NCTID,
		Title:          result.Title,
		AIScore:        result.AIVerdict.MatchScore,
		FinalScore:     result.FinalScore,
		FinalStatus:    result.FinalStatus,
		ShouldOverride: result.Guardrail.ShouldOverride,
		Flags:          result.Guardrail.Flags,
		Reasoning:      result.Guardrail.Reasoning,
		CreatedAt:      result.EvaluatedAt,
	}
}
