// Package analyzer orchestrates the full analysis of one trial with one
// model: fetch, three concurrent field-group extractions, merge with the
// rule-derived record fields, row expansion, quality scoring with heuristic
// escalation, and persistence. Concurrent requests for the same (trial,
// model) pair attach to the in-flight run instead of starting a second one.
package analyzer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ishankgp/clinical-trial/internal/expand"
	"github.com/ishankgp/clinical-trial/internal/fetcher"
	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/parser"
	"github.com/ishankgp/clinical-trial/internal/promptlib"
	"github.com/ishankgp/clinical-trial/internal/resilience"
	"github.com/ishankgp/clinical-trial/internal/scorer"
	"github.com/ishankgp/clinical-trial/internal/store"
	"github.com/ishankgp/clinical-trial/pkg/anthropic"
)

// Completer is the slice of the completion gateway the analyzer needs.
type Completer interface {
	Complete(ctx context.Context, phase string, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

// Options configures an Analyzer.
type Options struct {
	// Model is the default model when the caller passes none.
	Model string
	// MaxTokens per extraction call.
	MaxTokens int64
	// CacheSize bounds the per-model sub-analyzer cache.
	CacheSize int
}

// Analyzer owns the run state machine and the single-flight registry. One
// instance is shared across CLI commands and HTTP handlers.
type Analyzer struct {
	gateway Completer
	fetch   fetcher.Fetcher
	db      store.Store
	opts    Options

	mu       sync.Mutex
	inflight map[flightKey]*flight
	models   *lru.Cache[string, *modelAnalyzer]
}

type flightKey struct {
	nctID string
	model string
}

// flight is one in-progress run. Waiters block on done; the owner fills
// group/err before closing it.
type flight struct {
	done  chan struct{}
	group *model.RowSplitGroup
	err   error
}

// modelAnalyzer carries per-model request shape. Reasoning-tier models get no
// temperature pin and a larger output budget.
type modelAnalyzer struct {
	model       string
	maxTokens   int64
	temperature *float64
}

// New creates an Analyzer. fetch and db are required; gateway may be nil, in
// which case every run degrades to heuristic derivation.
func New(gateway Completer, fetch fetcher.Fetcher, db store.Store, opts Options) (*Analyzer, error) {
	if opts.Model == "" {
		opts.Model = "claude-sonnet-4-5-20250929"
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = 8
	}
	models, err := lru.New[string, *modelAnalyzer](opts.CacheSize)
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: create model cache")
	}
	return &Analyzer{
		gateway:  gateway,
		fetch:    fetch,
		db:       db,
		opts:     opts,
		inflight: make(map[flightKey]*flight),
		models:   models,
	}, nil
}

// Analyze produces the row set for one trial with one model. Without force,
// persisted results are returned as-is and concurrent callers share a single
// run. With force a fresh run executes and persists a new version.
func (a *Analyzer) Analyze(ctx context.Context, nctID, modelID string, force bool) (*model.RowSplitGroup, error) {
	if !model.ValidNCTID(nctID) {
		return nil, resilience.NewValidationError("invalid trial identifier %q: want NCT followed by 8 digits", nctID)
	}
	if modelID == "" {
		modelID = a.opts.Model
	}

	if !force {
		if existing, err := a.db.GetResults(ctx, nctID, modelID); err != nil {
			return nil, err
		} else if existing != nil {
			zap.L().Debug("returning persisted analysis",
				zap.String("nct_id", nctID), zap.String("model", modelID))
			return existing, nil
		}
	}

	key := flightKey{nctID: nctID, model: modelID}
	a.mu.Lock()
	if f, ok := a.inflight[key]; ok {
		a.mu.Unlock()
		// Attach to the in-flight run. A cancelled waiter is released
		// immediately; the run itself keeps going for the owner.
		select {
		case <-f.done:
			return f.group, f.err
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "analyzer: wait for in-flight run")
		}
	}
	f := &flight{done: make(chan struct{})}
	a.inflight[key] = f
	a.mu.Unlock()

	group, err := a.run(ctx, nctID, modelID)

	a.mu.Lock()
	delete(a.inflight, key)
	a.mu.Unlock()

	f.group, f.err = group, err
	close(f.done)
	return group, err
}

// modelFor returns the cached per-model configuration, creating it lazily.
func (a *Analyzer) modelFor(modelID string) *modelAnalyzer {
	if ma, ok := a.models.Get(modelID); ok {
		return ma
	}
	ma := &modelAnalyzer{model: modelID, maxTokens: a.opts.MaxTokens}
	if isReasoningModel(modelID) {
		ma.maxTokens = a.opts.MaxTokens * 4
	} else {
		t := 0.0
		ma.temperature = &t
	}
	a.models.Add(modelID, ma)
	return ma
}

func isReasoningModel(modelID string) bool {
	return strings.Contains(modelID, "opus")
}

// run executes the state machine for one trial. Group extraction failures
// degrade to heuristics; only an unfetchable record or a split-invariant
// violation fails the run.
func (a *Analyzer) run(ctx context.Context, nctID, modelID string) (*model.RowSplitGroup, error) {
	started := time.Now()
	a.setState(nctID, modelID, model.StateRequested)

	rec, err := a.fetch.Fetch(ctx, nctID)
	if err != nil {
		a.setState(nctID, modelID, model.StateFailed)
		return nil, eris.Wrapf(err, "analyzer: fetch %s", nctID)
	}

	ma := a.modelFor(modelID)

	groupStates := map[model.FieldGroup]model.RunState{
		model.GroupDrug:      model.StateExtractingDrug,
		model.GroupClinical:  model.StateExtractingClinical,
		model.GroupBiomarker: model.StateExtractingBiomarker,
	}
	results := make(map[model.FieldGroup]parser.GroupResult, len(groupStates))
	var resMu sync.Mutex

	eg, egctx := errgroup.WithContext(ctx)
	for grp, state := range groupStates {
		eg.Go(func() error {
			a.setState(nctID, modelID, state)
			res := a.extractGroup(egctx, ma, grp, rec)
			resMu.Lock()
			results[grp] = res
			resMu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		a.setState(nctID, modelID, model.StateFailed)
		return nil, eris.Wrap(err, "analyzer: extraction cancelled")
	}

	a.setState(nctID, modelID, model.StateMerged)
	base := a.merge(nctID, modelID, rec, results)

	a.setState(nctID, modelID, model.StateExpanded)
	group, err := expand.Expand(base)
	if err != nil {
		a.setState(nctID, modelID, model.StateFailed)
		return nil, err
	}

	a.setState(nctID, modelID, model.StateScored)
	escalated := false
	for i := range group.Rows {
		row := &group.Rows[i]
		row.Metrics = scorer.Score(row.Fields)
		if scorer.NeedsEscalation(row.Metrics) {
			if scorer.Escalate(row, rec) > 0 {
				escalated = true
			}
		}
	}
	if escalated {
		a.setState(nctID, modelID, model.StateFallbackEscalated)
	}

	version, err := a.db.LatestVersion(ctx, nctID, modelID)
	if err != nil {
		a.setState(nctID, modelID, model.StateFailed)
		return nil, err
	}
	for i := range group.Rows {
		group.Rows[i].Version = version + 1
	}
	if err := a.db.PutResults(ctx, group); err != nil {
		a.setState(nctID, modelID, model.StateFailed)
		return nil, err
	}
	a.setState(nctID, modelID, model.StatePersisted)

	zap.L().Info("trial analysis complete",
		zap.String("nct_id", nctID),
		zap.String("model", modelID),
		zap.Int("rows", len(group.Rows)),
		zap.Int("version", version+1),
		zap.Bool("escalated", escalated),
		zap.Duration("elapsed", time.Since(started)))
	return group, nil
}

// extractGroup runs one field-group extraction through the gateway and the
// parser chain. Any gateway failure degrades to record-derived heuristics for
// this group only.
func (a *Analyzer) extractGroup(ctx context.Context, ma *modelAnalyzer, group model.FieldGroup, rec *model.TrialRecord) parser.GroupResult {
	prompt, err := promptlib.BuildExtractionPrompt(group, rec)
	if err != nil {
		return heuristicResult(group, rec)
	}
	if a.gateway == nil {
		return heuristicResult(group, rec)
	}

	resp, err := a.gateway.Complete(ctx, "extract-"+string(group), anthropic.MessageRequest{
		Model:       ma.model,
		MaxTokens:   ma.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(promptlib.SystemText),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: ma.temperature,
	})
	if err != nil {
		zap.L().Warn("field group extraction failed, using heuristics",
			zap.String("nct_id", rec.NCTID),
			zap.String("group", string(group)),
			zap.Error(err))
		return heuristicResult(group, rec)
	}
	return parser.ParseGroup(resp.Text(), group, rec)
}

func heuristicResult(group model.FieldGroup, rec *model.TrialRecord) parser.GroupResult {
	return parser.GroupResult{
		Group:  group,
		Status: parser.ParsedFail,
		Fields: parser.HeuristicFields(group, rec),
	}
}

// merge assembles the base row: rule-derived record fields plus the three
// extracted groups.
func (a *Analyzer) merge(nctID, modelID string, rec *model.TrialRecord, results map[model.FieldGroup]parser.GroupResult) *model.AnalysisResult {
	fields := promptlib.ExtractRecordFields(rec)
	for _, res := range results {
		for f, fv := range res.Fields {
			fields[f] = fv
		}
	}
	return &model.AnalysisResult{
		RunID:         uuid.New().String(),
		NCTID:         nctID,
		Model:         modelID,
		Timestamp:     time.Now().UTC(),
		Fields:        fields,
		PromptVersion: promptlib.Version,
	}
}

func (a *Analyzer) setState(nctID, modelID string, state model.RunState) {
	zap.L().Debug("run state transition",
		zap.String("nct_id", nctID),
		zap.String("model", modelID),
		zap.String("state", string(state)))
}
