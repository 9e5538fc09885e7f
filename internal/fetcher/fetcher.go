// Package fetcher retrieves trial records from the ClinicalTrials.gov v2 API
// and decodes them into the engine's TrialRecord shape. Records are cached on
// disk with a TTL; the engine treats them as potentially stale.
package fetcher

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ishankgp/clinical-trial/internal/model"
)

// ErrNotFound marks a trial identifier the registry does not know.
var ErrNotFound = eris.New("fetcher: trial not found")

// Fetcher defines the interface for retrieving trial records.
type Fetcher interface {
	// Fetch returns the record for a trial, from cache when fresh. Returns
	// ErrNotFound when the registry has no such trial.
	Fetch(ctx context.Context, nctID string) (*model.TrialRecord, error)
}
