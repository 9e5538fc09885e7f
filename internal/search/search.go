// Package search runs structured lookups over stored analysis rows. It
// consumes the filter sets produced by the query analyzer, applies them
// through the store, and aggregates the matches into summary statistics.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/store"
)

// DefaultLimit bounds result sets when the caller does not.
const DefaultLimit = 100

// Searcher answers structured queries against persisted analysis rows.
type Searcher struct {
	db store.Store
}

func New(db store.Store) *Searcher {
	return &Searcher{db: db}
}

// Results bundles the matching rows with the filter set that produced them.
type Results struct {
	FilterSet *model.QueryFilterSet  `json:"filter_set"`
	Rows      []model.AnalysisResult `json:"rows"`
	Total     int                    `json:"total"`
}

// Search applies a filter set to the latest-version rows in the store. An
// empty filter set returns the newest rows up to the limit.
func (s *Searcher) Search(ctx context.Context, fs *model.QueryFilterSet, limit int) (*Results, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	filter := store.ResultFilter{Limit: limit}
	if fs != nil {
		filter.Fields = fs.Filters
	}
	rows, err := s.db.ListByFilters(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "search: list by filters")
	}
	return &Results{FilterSet: fs, Rows: rows, Total: len(rows)}, nil
}

// FindByDrug is the convenience lookup for one drug name.
func (s *Searcher) FindByDrug(ctx context.Context, drug string, limit int) (*Results, error) {
	return s.Search(ctx, &model.QueryFilterSet{
		Filters: map[string]string{model.FieldPrimaryDrug: drug},
		Tier:    model.TierBasic,
	}, limit)
}

// FindByIndication is the convenience lookup for one indication.
func (s *Searcher) FindByIndication(ctx context.Context, indication string, limit int) (*Results, error) {
	return s.Search(ctx, &model.QueryFilterSet{
		Filters: map[string]string{model.FieldIndication: indication},
		Tier:    model.TierBasic,
	}, limit)
}

// Summary aggregates a result set for display.
type Summary struct {
	Rows           int            `json:"rows"`
	Trials         int            `json:"trials"`
	Escalated      int            `json:"escalated"`
	MeanScore      float64        `json:"mean_score"`
	ByPhase        map[string]int `json:"by_phase"`
	ByStatus       map[string]int `json:"by_status"`
	BySponsor      map[string]int `json:"by_sponsor_type"`
	TopDrugs       []Count        `json:"top_drugs"`
	TopIndications []Count        `json:"top_indications"`
}

// Count is one labelled tally, ordered by frequency.
type Count struct {
	Label string `json:"label"`
	N     int    `json:"n"`
}

// Summarize folds a result set into counts. Grouping keys are case-folded so
// value variants land in one bucket; the first-seen spelling is displayed.
func Summarize(rows []model.AnalysisResult) Summary {
	s := Summary{
		Rows:      len(rows),
		ByPhase:   make(map[string]int),
		ByStatus:  make(map[string]int),
		BySponsor: make(map[string]int),
	}
	trials := make(map[string]bool)
	drugs := newFoldedCounter()
	indications := newFoldedCounter()

	var scoreSum float64
	for i := range rows {
		r := &rows[i]
		trials[r.NCTID] = true
		if r.Escalated {
			s.Escalated++
		}
		scoreSum += r.Metrics.QualityScore

		if v := r.Value(model.FieldTrialPhase); v != model.NotAvailable {
			s.ByPhase[v]++
		}
		if v := r.Value(model.FieldTrialStatus); v != model.NotAvailable {
			s.ByStatus[v]++
		}
		if v := r.Value(model.FieldSponsorType); v != model.NotAvailable {
			s.BySponsor[v]++
		}
		drugs.add(r.Value(model.FieldPrimaryDrug))
		indications.add(r.Value(model.FieldIndication))
	}

	s.Trials = len(trials)
	if len(rows) > 0 {
		s.MeanScore = scoreSum / float64(len(rows))
	}
	s.TopDrugs = drugs.top(5)
	s.TopIndications = indications.top(5)
	return s
}

// foldedCounter tallies values under case-folded keys.
type foldedCounter struct {
	folder  cases.Caser
	counts  map[string]int
	display map[string]string
}

func newFoldedCounter() *foldedCounter {
	return &foldedCounter{
		folder:  cases.Fold(),
		counts:  make(map[string]int),
		display: make(map[string]string),
	}
}

func (c *foldedCounter) add(value string) {
	value = strings.TrimSpace(value)
	if value == "" || value == model.NotAvailable {
		return
	}
	key := c.folder.String(value)
	if _, seen := c.display[key]; !seen {
		c.display[key] = value
	}
	c.counts[key]++
}

func (c *foldedCounter) top(n int) []Count {
	out := make([]Count, 0, len(c.counts))
	for key, count := range c.counts {
		out = append(out, Count{Label: c.display[key], N: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
