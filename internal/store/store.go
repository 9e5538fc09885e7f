// Package store persists analysis row groups behind a backend-neutral
// interface. Results are versioned per (trial, model); a re-analysis writes a
// new version and never mutates persisted rows.
package store

import (
	"context"

	"github.com/ishankgp/clinical-trial/internal/model"
)

// ResultFilter selects analysis rows for structured search. Fields maps
// canonical field keys to match values (case-insensitive substring). Only the
// latest version per (trial, model) is searched.
type ResultFilter struct {
	Fields map[string]string `json:"fields,omitempty"`
	Model  string            `json:"model,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis results.
type Store interface {
	// PutResults persists all rows of a group as one version. Rows must carry
	// their Version; the write is atomic per group.
	PutResults(ctx context.Context, group *model.RowSplitGroup) error

	// GetResults returns the latest-version rows for a (trial, model), in row
	// order, or nil when none exist.
	GetResults(ctx context.Context, nctID, modelID string) (*model.RowSplitGroup, error)

	// Exists reports whether any version exists for the (trial, model).
	Exists(ctx context.Context, nctID, modelID string) (bool, error)

	// LatestVersion returns the highest persisted version, 0 when none.
	LatestVersion(ctx context.Context, nctID, modelID string) (int, error)

	// ListByFilters returns latest-version rows matching the filter.
	ListByFilters(ctx context.Context, filter ResultFilter) ([]model.AnalysisResult, error)

	// ListTrials returns the distinct trial identifiers with stored results.
	ListTrials(ctx context.Context) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
