// Package upstream holds the HTTP clients for the collaborators this
// service consumes: the free-text extraction collaborator and the
// LLM-backed assessment collaborator. Both are treated as untrusted
// advisory producers; the deterministic core never talks to them
// directly.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/trialguard-server/internal/domain"
)

// ExtractorClient calls the extraction collaborator that turns a
// free-text patient description into a structured profile.
type ExtractorClient struct {
	config domain.CollaboratorConfig
	client *http.Client
	logger *logrus.Logger
}

// NewExtractorClient creates a new extractor client.
func NewExtractorClient(config domain.CollaboratorConfig, logger *logrus.Logger) *ExtractorClient {
	return &ExtractorClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// extractRequest is the extraction collaborator's request body.
type extractRequest struct {
	Text string `json:"text"`
}

// Extract sends the raw description and decodes the returned profile.
// The result may be empty-but-well-typed; the normalizer and validator
// deal with that downstream.
func (c *ExtractorClient) Extract(ctx context.Context, rawText string) (*domain.PatientProfile, error) {
	var profile domain.PatientProfile
	if err := c.post(ctx, "/v1/extract", extractRequest{Text: rawText}, &profile); err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	return &profile, nil
}

func (c *ExtractorClient) post(ctx context.Context, path string, body, out interface{}) error {
	return postJSON(ctx, c.client, c.config, path, body, out)
}

// AssessorClient calls the LLM-backed assessment collaborator that
// scores one (profile, trial) pair.
type AssessorClient struct {
	config domain.CollaboratorConfig
	client *http.Client
	logger *logrus.Logger
}

// NewAssessorClient creates a new assessor client.
func NewAssessorClient(config domain.CollaboratorConfig, logger *logrus.Logger) *AssessorClient {
	return &AssessorClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// assessRequest is the assessment collaborator's request body.
type assessRequest struct {
	Profile *domain.PatientProfile `json:"profile"`
	Trial   *domain.TrialRecord    `json:"trial"`
}

// Assess requests an advisory verdict for one trial.
func (c *AssessorClient) Assess(ctx context.Context, profile *domain.PatientProfile, trial *domain.TrialRecord) (*domain.AIVerdict, error) {
	var verdict domain.AIVerdict
	if err := postJSON(ctx, c.client, c.config, "/v1/assess", assessRequest{Profile: profile, Trial: trial}, &verdict); err != nil {
		return nil, fmt.Errorf("assessment request failed: %w", err)
	}
	return &verdict, nil
}

// postJSON posts a JSON body and decodes a JSON response, surfacing
// non-2xx statuses as errors with a response excerpt.
func postJSON(ctx context.Context, client *http.Client, config domain.CollaboratorConfig, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+config.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(excerpt))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
