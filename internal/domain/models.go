package domain

import (
	"time"
)

// PatientProfile is the structured patient description produced by the
// upstream extraction collaborator. Fields may be missing or malformed;
// the normalizer and validator are responsible for cleaning it up. After
// normalization: age is in [0,120], stage (if present) carries a known
// stage token, and biomarker keys are uppercase alphanumeric.
type PatientProfile struct {
	Age               int               `json:"age"`
	Gender            Gender            `json:"gender"`
	Conditions        []string          `json:"conditions"`
	Medications       []string          `json:"medications"`
	Allergies         []string          `json:"allergies"`
	Biomarkers        map[string]string `json:"biomarkers"`
	Stage             string            `json:"stage,omitempty"`
	PriorTreatments   []string          `json:"prior_treatments"`
	PerformanceStatus string            `json:"performance_status,omitempty"`
	LabValues         map[string]string `json:"lab_values"`
}

// Clone returns a deep copy of the profile. The normalizer works on a
// copy so callers never observe partial mutation.
func (p *PatientProfile) Clone() *PatientProfile {
	out := &PatientProfile{
		Age:               p.Age,
		Gender:            p.Gender,
		Stage:             p.Stage,
		PerformanceStatus: p.PerformanceStatus,
	}
	out.Conditions = append([]string(nil), p.Conditions...)
	out.Medications = append([]string(nil), p.Medications...)
	out.Allergies = append([]string(nil), p.Allergies...)
	out.PriorTreatments = append([]string(nil), p.PriorTreatments...)
	if p.Biomarkers != nil {
		out.Biomarkers = make(map[string]string, len(p.Biomarkers))
		for k, v := range p.Biomarkers {
			out.Biomarkers[k] = v
		}
	}
	if p.LabValues != nil {
		out.LabValues = make(map[string]string, len(p.LabValues))
		for k, v := range p.LabValues {
			out.LabValues[k] = v
		}
	}
	return out
}

// TrialRecord is a clinical trial as supplied by the trial-catalog
// collaborator. MatchType and MatchScore are provenance metadata from
// trial generation, not guardrail output.
type TrialRecord struct {
	NCTID             string     `json:"nct_id"`
	Title             string     `json:"title"`
	Phase             TrialPhase `json:"phase"`
	BriefSummary      string     `json:"brief_summary"`
	InclusionCriteria []string   `json:"inclusion_criteria"`
	ExclusionCriteria []string   `json:"exclusion_criteria"`
	CancerType        CancerType `json:"cancer_type"`
	MatchType         string     `json:"match_type,omitempty"`
	MatchScore        int        `json:"match_score,omitempty"`
}

// AIVerdict is the upstream model's per-trial assessment. It is
// read-only advisory input to the guardrail engine: its explanation is
// used only by the consistency-check rule and its score is the baseline
// an override replaces.
type AIVerdict struct {
	MatchScore       int             `json:"match_score"`
	ConfidenceLevel  ConfidenceLevel `json:"confidence_level"`
	InclusionMatches []string        `json:"inclusion_matches"`
	ExclusionFlags   []string        `json:"exclusion_flags"`
	UncertainFactors []string        `json:"uncertain_factors"`
	Explanation      string          `json:"explanation"`
	QuestionsToAsk   []string        `json:"questions_to_ask"`
}

// GuardrailVerdict is the deterministic override decision for one
// (patient, trial, AI verdict) triple. Created fresh per evaluation and
// never mutated after return. Flags accumulate across all triggered
// rules; the override fields reflect whichever override-setting rule
// tripped last.
type GuardrailVerdict struct {
	ShouldOverride bool           `json:"should_override"`
	OverrideScore  *int           `json:"override_score,omitempty"`
	OverrideStatus OverrideStatus `json:"override_status,omitempty"`
	Flags          []string       `json:"flags"`
	Reasoning      string         `json:"reasoning"`
}

// ValidationOutcome is the result of one validation call. Errors block
// trusting the record; warnings degrade confidence but do not block.
type ValidationOutcome struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NewValidationOutcome builds an outcome with IsValid derived from the
// error list.
func NewValidationOutcome(errs, warnings []string) ValidationOutcome {
	if errs == nil {
		errs = []string{}
	}
	if warnings == nil {
		warnings = []string{}
	}
	return ValidationOutcome{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// MatchResult is the merged outcome for a single trial: the upstream
// verdict plus the guardrail decision, with the final score/status
// reflecting any override.
type MatchResult struct {
	NCTID       string           `json:"nct_id"`
	Title       string           `json:"title"`
	AIVerdict   AIVerdict        `json:"ai_verdict"`
	Guardrail   GuardrailVerdict `json:"guardrail"`
	FinalScore  int              `json:"final_score"`
	FinalStatus OverrideStatus   `json:"final_status"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
}

// Configuration models.

// Config is the main application configuration.
type Config struct {
	Server     ServerConfig    `mapstructure:"server"`
	Upstream   UpstreamConfig  `mapstructure:"upstream"`
	Cache      CacheConfig     `mapstructure:"cache"`
	History    HistoryConfig   `mapstructure:"history"`
	Catalog    CatalogConfig   `mapstructure:"catalog"`
	Guardrails GuardrailConfig `mapstructure:"guardrails"`
	Logging    LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

// UpstreamConfig configures the extraction and assessment collaborators.
type UpstreamConfig struct {
	Extractor CollaboratorConfig `mapstructure:"extractor"`
	Assessor  CollaboratorConfig `mapstructure:"assessor"`
}

// CollaboratorConfig is the connection configuration for one upstream
// HTTP collaborator.
type CollaboratorConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

// CacheConfig configures the two-tier verdict cache.
type CacheConfig struct {
	RedisURL      string        `mapstructure:"redis_url"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	MaxRetries    int           `mapstructure:"max_retries"`
	PoolSize      int           `mapstructure:"pool_size"`
	PoolTimeout   time.Duration `mapstructure:"pool_timeout"`
	MemorySize    int           `mapstructure:"memory_size"`
	MemoryTTL     time.Duration `mapstructure:"memory_ttl"`
	DisableRemote bool          `mapstructure:"disable_remote"`
}

// HistoryConfig configures the match-history store.
type HistoryConfig struct {
	Driver         string `mapstructure:"driver"` // "sqlite" or "postgres"
	SQLitePath     string `mapstructure:"sqlite_path"`
	DatabaseURL    string `mapstructure:"database_url"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// CatalogConfig configures the trial-catalog snapshot.
type CatalogConfig struct {
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// GuardrailConfig configures guardrail engine behavior.
//
// StrictestWins switches the override combination policy from the
// historical last-triggered-rule-wins overwrite to strictest-wins
// (exclude dominates uncertain dominates match, lower score wins).
type GuardrailConfig struct {
	StrictestWins  bool `mapstructure:"strictest_wins"`
	MaxConcurrency int  `mapstructure:"max_concurrency"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
