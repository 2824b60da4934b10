package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trialguard-server/internal/domain"
)

// matchRequest is the body for POST /api/v1/match. Either a structured
// profile or raw text must be present; raw text also feeds biomarker
// inference. An empty nct_ids list matches against the whole catalog.
type matchRequest struct {
	Profile *domain.PatientProfile `json:"profile"`
	RawText string                 `json:"raw_text"`
	NCTIDs  []string               `json:"nct_ids"`
}

// normalizeRequest is the body for the profile normalize and validate
// endpoints.
type normalizeRequest struct {
	Profile *domain.PatientProfile `json:"profile" binding:"required"`
	RawText string                 `json:"raw_text"`
}

// trialsRequest is the body for POST /api/v1/trials/validate.
type trialsRequest struct {
	Trials []domain.TrialRecord `json:"trials" binding:"required"`
}

// guardrailRequest is the body for POST /api/v1/guardrails/apply.
type guardrailRequest struct {
	Profile *domain.PatientProfile `json:"profile" binding:"required"`
	Trial   *domain.TrialRecord    `json:"trial" binding:"required"`
	Verdict *domain.AIVerdict      `json:"verdict" binding:"required"`
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"trials":    s.catalog.Size(),
	}

	if breakers, ok := s.extractor.(interface{ BreakerStates() map[string]string }); ok {
		health["breakers"] = breakers.BreakerStates()
	}

	c.JSON(http.StatusOK, health)
}

// handleMatch runs the full pipeline: extract (when only raw text is
// given), normalize, validate, assess and guardrail each selected
// trial.
func (s *Server) handleMatch(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body", err.Error())
		return
	}

	if req.Profile == nil && req.RawText == "" {
		s.badRequest(c, "Missing patient input", "either profile or raw_text is required")
		return
	}

	profile := req.Profile
	if profile == nil {
		if s.extractor == nil {
			s.badRequest(c, "Extraction unavailable", "a structured profile is required when no extractor is configured")
			return
		}
		extracted, err := s.extractor.Extract(c.Request.Context(), req.RawText)
		if err != nil {
			s.logger.WithError(err).Error("Profile extraction failed")
			c.JSON(http.StatusBadGateway, domain.NewAPIError(
				domain.ErrUpstreamError,
				"Profile extraction failed",
				err.Error(),
				c.GetString("correlation_id"),
			))
			return
		}
		profile = extracted
	}

	trials := s.catalog.Select(req.NCTIDs)
	if len(trials) == 0 {
		s.badRequest(c, "No trials to evaluate", "none of the requested NCT IDs are in the catalog")
		return
	}

	evaluation, err := s.matcher.EvaluateTrials(c.Request.Context(), profile, req.RawText, trials)
	if err != nil {
		s.logger.WithError(err).Error("Trial matching failed")
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrInternalServer,
			"Trial matching failed",
			err.Error(),
			c.GetString("correlation_id"),
		))
		return
	}

	c.JSON(http.StatusOK, evaluation)
}

func (s *Server) handleNormalizeProfile(c *gin.Context) {
	var req normalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": s.matcher.NormalizeAndInfer(req.Profile, req.RawText),
	})
}

func (s *Server) handleValidateProfile(c *gin.Context) {
	var req normalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body", err.Error())
		return
	}

	normalized := s.matcher.NormalizeAndInfer(req.Profile, req.RawText)
	c.JSON(http.StatusOK, gin.H{
		"profile":    normalized,
		"validation": s.matcher.ValidateProfile(normalized),
	})
}

func (s *Server) handleValidateTrials(c *gin.Context) {
	var req trialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"validation": s.matcher.ValidateTrials(req.Trials),
	})
}

// handleApplyGuardrails runs the deterministic rules against a caller
// supplied verdict without touching the upstream collaborators.
func (s *Server) handleApplyGuardrails(c *gin.Context) {
	var req guardrailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body", err.Error())
		return
	}

	normalized := s.matcher.NormalizeAndInfer(req.Profile, "")
	verdict := s.matcher.ApplyGuardrails(normalized, req.Trial, req.Verdict)

	c.JSON(http.StatusOK, gin.H{
		"profile":   normalized,
		"guardrail": verdict,
	})
}

func (s *Server) handleListTrials(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"trials":     s.catalog.List(),
		"validation": s.catalog.Validation(),
	})
}

func (s *Server) handleGetTrial(c *gin.Context) {
	nctID := c.Param("nct_id")
	trial, ok := s.catalog.Get(nctID)
	if !ok {
		c.JSON(http.StatusNotFound, domain.NewAPIError(
			domain.ErrCatalogError,
			"Trial not found",
			nctID,
			c.GetString("correlation_id"),
		))
		return
	}
	c.JSON(http.StatusOK, trial)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrDatabaseError,
			"Match history is not configured",
			"",
			c.GetString("correlation_id"),
		))
		return
	}

	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list match history")
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrDatabaseError,
			"Failed to list match history",
			err.Error(),
			c.GetString("correlation_id"),
		))
		return
	}

	total, err := s.store.Count(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Warn("Failed to count match history")
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) badRequest(c *gin.Context, message, details string) {
	c.JSON(http.StatusBadRequest, domain.NewAPIError(
		domain.ErrInvalidInput,
		message,
		details,
		c.GetString("correlation_id"),
	))
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
