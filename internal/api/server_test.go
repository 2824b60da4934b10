package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialguard-server/internal/catalog"
	"github.com/trialguard-server/internal/domain"
	"github.com/trialguard-server/internal/service"
)

// fixedAssessor returns the same verdict for every trial.
type fixedAssessor struct {
	verdict domain.AIVerdict
}

func (f *fixedAssessor) Assess(ctx context.Context, profile *domain.PatientProfile, trial *domain.TrialRecord) (*domain.AIVerdict, error) {
	v := f.verdict
	return &v, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	trials := []domain.TrialRecord{
		{
			NCTID:        "NCT00000001",
			Title:        "Trastuzumab Deruxtecan in HER2-Positive Metastatic Breast Cancer",
			Phase:        domain.Phase2,
			BriefSummary: "Evaluates efficacy and safety in previously treated patients.",
			InclusionCriteria: []string{
				"HER2-positive breast cancer",
				"Prior trastuzumab therapy",
				"ECOG 0-1",
			},
			ExclusionCriteria: []string{
				"Untreated brain metastases",
				"Prior T-DM1 therapy",
			},
			CancerType: domain.CancerBreast,
		},
	}

	data, err := json.Marshal(map[string]interface{}{"trials": trials})
	require.NoError(t, err)
	snapshotPath := filepath.Join(t.TempDir(), "trials.json")
	require.NoError(t, os.WriteFile(snapshotPath, data, 0644))

	cat, err := catalog.Load(snapshotPath, logger)
	require.NoError(t, err)

	engine := service.NewGuardrailEngine(logger, domain.GuardrailConfig{})
	assessor := &fixedAssessor{verdict: domain.AIVerdict{MatchScore: 85, ConfidenceLevel: domain.ConfidenceHigh}}
	matcher := service.NewMatcherService(logger, engine, assessor, nil, 2)

	cfg := &domain.Config{
		Server:  domain.ServerConfig{Host: "127.0.0.1", Port: 0},
		Logging: domain.LoggingConfig{Level: "error"},
	}

	return NewServer(cfg, logger, matcher, cat, nil, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["trials"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestServer_Match(t *testing.T) {
	s := testServer(t)

	body := map[string]interface{}{
		"profile": map[string]interface{}{
			"age":              62,
			"conditions":       []string{"metastatic breast cancer"},
			"stage":            "Stage IV",
			"biomarkers":       map[string]string{"HER2": "negative"},
			"prior_treatments": []string{"trastuzumab"},
		},
		"nct_ids": []string{"NCT00000001"},
	}

	w := doJSON(t, s, http.MethodPost, "/api/v1/match", body)

	require.Equal(t, http.StatusOK, w.Code)

	var eval service.MatchEvaluation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eval))
	require.Len(t, eval.Results, 1)
	assert.True(t, eval.Results[0].Guardrail.ShouldOverride)
	assert.Equal(t, domain.OverrideExclude, eval.Results[0].FinalStatus)
	assert.Equal(t, 15, eval.Results[0].FinalScore)
}

func TestServer_MatchRequiresPatientInput(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/match", map[string]interface{}{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_MatchRejectsUnknownTrials(t *testing.T) {
	s := testServer(t)

	body := map[string]interface{}{
		"profile": map[string]interface{}{"age": 62},
		"nct_ids": []string{"NCT99999999"},
	}

	w := doJSON(t, s, http.MethodPost, "/api/v1/match", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ValidateProfile(t *testing.T) {
	s := testServer(t)

	body := map[string]interface{}{
		"profile": map[string]interface{}{
			"age":        55,
			"conditions": []string{"triple-negative breast cancer"},
			"stage":      "Stage II",
			"biomarkers": map[string]string{"HER2": "positive"},
		},
	}

	w := doJSON(t, s, http.MethodPost, "/api/v1/profile/validate", body)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Validation domain.ValidationOutcome `json:"validation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Validation.IsValid)
}

func TestServer_ValidateTrials(t *testing.T) {
	s := testServer(t)

	body := map[string]interface{}{
		"trials": []map[string]interface{}{
			{"nct_id": "NCT123", "title": "Too short"},
		},
	}

	w := doJSON(t, s, http.MethodPost, "/api/v1/trials/validate", body)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Validation domain.ValidationOutcome `json:"validation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Validation.IsValid)
	assert.NotEmpty(t, resp.Validation.Errors)
}

func TestServer_ApplyGuardrails(t *testing.T) {
	s := testServer(t)

	body := map[string]interface{}{
		"profile": map[string]interface{}{
			"age":        62,
			"stage":      "Stage IV",
			"biomarkers": map[string]string{"HER2": "negative"},
		},
		"trial": map[string]interface{}{
			"nct_id": "NCT00000001",
			"title":  "Trastuzumab Deruxtecan in HER2-Positive Metastatic Breast Cancer",
		},
		"verdict": map[string]interface{}{
			"match_score":      90,
			"confidence_level": "high",
		},
	}

	w := doJSON(t, s, http.MethodPost, "/api/v1/guardrails/apply", body)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Guardrail domain.GuardrailVerdict `json:"guardrail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Guardrail.ShouldOverride)
	assert.Equal(t, domain.OverrideExclude, resp.Guardrail.OverrideStatus)
}

func TestServer_GetTrial(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/trials/NCT00000001", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/trials/NCT99999999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_HistoryUnconfigured(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/history", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
