// Package catalog loads and serves the trial snapshot the service
// matches against. The snapshot is a JSON file refreshed out of band;
// records are validated once at load so every request sees the same
// vetted set.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/trialguard-server/internal/domain"
	"github.com/trialguard-server/internal/service"
)

// Catalog holds the loaded trial records keyed by NCT ID.
type Catalog struct {
	mu         sync.RWMutex
	trials     map[string]domain.TrialRecord
	validation domain.ValidationOutcome
	logger     *logrus.Logger
}

// snapshot is the on-disk form of the trial catalog.
type snapshot struct {
	Trials []domain.TrialRecord `json:"trials"`
}

// Load reads the snapshot file, validates the records and returns the
// catalog. Validation errors do not reject the snapshot; they are kept
// on the catalog for inspection and logged.
func Load(path string, logger *logrus.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trial snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse trial snapshot: %w", err)
	}

	validator := service.NewTrialValidator(logger)
	validation := validator.Validate(snap.Trials)

	trials := make(map[string]domain.TrialRecord, len(snap.Trials))
	for _, trial := range snap.Trials {
		trials[trial.NCTID] = trial
	}

	logger.WithFields(logrus.Fields{
		"path":     path,
		"trials":   len(trials),
		"valid":    validation.IsValid,
		"errors":   len(validation.Errors),
		"warnings": len(validation.Warnings),
	}).Info("Loaded trial catalog")

	return &Catalog{
		trials:     trials,
		validation: validation,
		logger:     logger,
	}, nil
}

// Get returns one trial by NCT ID.
func (c *Catalog) Get(nctID string) (domain.TrialRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	trial, ok := c.trials[nctID]
	return trial, ok
}

// List returns all trials ordered by NCT ID.
func (c *Catalog) List() []domain.TrialRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.TrialRecord, 0, len(c.trials))
	for _, trial := range c.trials {
		out = append(out, trial)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NCTID < out[j].NCTID })
	return out
}

// Select resolves a list of NCT IDs to trial records, skipping unknown
// IDs. An empty list selects the whole catalog.
func (c *Catalog) Select(nctIDs []string) []domain.TrialRecord {
	if len(nctIDs) == 0 {
		return c.List()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.TrialRecord, 0, len(nctIDs))
	for _, id := range nctIDs {
		if trial, ok := c.trials[id]; ok {
			out = append(out, trial)
		} else {
			c.logger.WithField("nct_id", id).Warn("Requested trial not in catalog")
		}
	}
	return out
}

// Validation returns the load-time validation outcome.
func (c *Catalog) Validation() domain.ValidationOutcome {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validation
}

// Size returns the number of loaded trials.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.trials)
}
