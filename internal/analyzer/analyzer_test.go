package analyzer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishankgp/clinical-trial/internal/fetcher"
	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/resilience"
	"github.com/ishankgp/clinical-trial/internal/store"
	"github.com/ishankgp/clinical-trial/pkg/anthropic"
)

const (
	drugAnswer = `{"primary_drug": "Enfortumab Vedotin", "primary_drug_moa": "Anti-Nectin-4",
		"primary_drug_target": "Nectin-4", "primary_drug_modality": "ADC", "primary_drug_roa": "IV",
		"mono_combo": "Mono", "combination_partner": "NA", "moa_of_combination": "NA",
		"experimental_regimen": "Enfortumab Vedotin", "moa_of_experimental_regimen": "Anti-Nectin-4"}`
	clinicalAnswer = `{"indication": "Urothelial Carcinoma", "line_of_therapy": "1L",
		"histology": "Urothelial", "prior_treatment": "treatment naive",
		"stage_of_disease": "Stage 4", "patient_population": "Untreated metastatic UC",
		"trial_name": "EV-302"}`
	biomarkerAnswer = `{"biomarker_mutations": "Nectin-4", "biomarker_stratification": "Not Available",
		"biomarker_wildtype": "Not Available"}`
)

func testRecord() *model.TrialRecord {
	return &model.TrialRecord{
		NCTID:               "NCT03778931",
		BriefTitle:          "Enfortumab Vedotin in Urothelial Carcinoma",
		Status:              "RECRUITING",
		Phases:              []string{"PHASE3"},
		Enrollment:          990,
		LeadSponsor:         "Astellas Pharma",
		LeadSponsorClass:    "INDUSTRY",
		Conditions:          []string{"Urothelial Carcinoma"},
		Countries:           []string{"United States", "Japan"},
		StartDate:           "2019-03-14",
		LastUpdateDate:      "2024-07-01",
		EligibilityCriteria: "Inclusion Criteria:\n* previously untreated",
		Arms: []model.Arm{
			{Label: "Arm A", Type: model.ArmExperimental},
		},
		Interventions: []model.Intervention{
			{Type: "DRUG", Name: "Enfortumab Vedotin", Description: "intravenous infusion", ArmLabels: []string{"Arm A"}},
		},
	}
}

type fakeFetcher struct {
	rec     *model.TrialRecord
	err     error
	fetches atomic.Int64
}

func (f *fakeFetcher) Fetch(ctx context.Context, nctID string) (*model.TrialRecord, error) {
	f.fetches.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

type fakeGateway struct {
	calls   atomic.Int64
	err     error
	block   chan struct{} // when set, Complete waits for it (or ctx)
	started chan struct{} // buffered; signalled on each call
}

func (g *fakeGateway) Complete(ctx context.Context, phase string, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	g.calls.Add(1)
	if g.started != nil {
		select {
		case g.started <- struct{}{}:
		default:
		}
	}
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	var text string
	switch phase {
	case "extract-drug":
		text = drugAnswer
	case "extract-clinical":
		text = clinicalAnswer
	case "extract-biomarker":
		text = biomarkerAnswer
	}
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
	}, nil
}

func newTestAnalyzer(t *testing.T, gw Completer, fetch fetcher.Fetcher) (*Analyzer, store.Store) {
	t.Helper()
	db, err := store.NewSQLite(filepath.Join(t.TempDir(), "trials.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	a, err := New(gw, fetch, db, Options{Model: "claude-sonnet-4-5-20250929"})
	require.NoError(t, err)
	return a, db
}

func TestAnalyze_FullRun(t *testing.T) {
	gw := &fakeGateway{}
	a, db := newTestAnalyzer(t, gw, &fakeFetcher{rec: testRecord()})

	group, err := a.Analyze(context.Background(), "NCT03778931", "", false)
	require.NoError(t, err)
	require.Len(t, group.Rows, 1)

	row := group.Rows[0]
	assert.Equal(t, "Enfortumab Vedotin", row.Value(model.FieldPrimaryDrug))
	assert.Equal(t, "1L", row.Value(model.FieldLineOfTherapy))
	assert.Equal(t, "Urothelial Carcinoma", row.Value(model.FieldIndication))
	// Rule-derived record fields ride along with the extracted groups.
	assert.Equal(t, "NCT03778931", row.Value(model.FieldTrialID))
	assert.Equal(t, "Industry Only", row.Value(model.FieldSponsorType))
	assert.Equal(t, 1, row.Version)
	assert.NotEmpty(t, row.RunID)
	assert.Positive(t, row.Metrics.QualityScore)
	assert.False(t, row.Escalated)
	assert.Equal(t, int64(3), gw.calls.Load())

	persisted, err := db.GetResults(context.Background(), "NCT03778931", "claude-sonnet-4-5-20250929")
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Len(t, persisted.Rows, 1)
}

func TestAnalyze_SecondCallUsesPersisted(t *testing.T) {
	gw := &fakeGateway{}
	a, _ := newTestAnalyzer(t, gw, &fakeFetcher{rec: testRecord()})
	ctx := context.Background()

	first, err := a.Analyze(ctx, "NCT03778931", "", false)
	require.NoError(t, err)

	second, err := a.Analyze(ctx, "NCT03778931", "", false)
	require.NoError(t, err)
	assert.Equal(t, first.Rows[0].RunID, second.Rows[0].RunID)
	assert.Equal(t, int64(3), gw.calls.Load())
}

func TestAnalyze_ForceCreatesNewVersion(t *testing.T) {
	gw := &fakeGateway{}
	a, _ := newTestAnalyzer(t, gw, &fakeFetcher{rec: testRecord()})
	ctx := context.Background()

	first, err := a.Analyze(ctx, "NCT03778931", "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Rows[0].Version)

	second, err := a.Analyze(ctx, "NCT03778931", "", true)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Rows[0].Version)
	assert.NotEqual(t, first.Rows[0].RunID, second.Rows[0].RunID)
	assert.Equal(t, int64(6), gw.calls.Load())
}

func TestAnalyze_GatewayFailureDegradesToHeuristics(t *testing.T) {
	gw := &fakeGateway{err: &resilience.ModelError{Model: "m", Err: errors.New("invalid model")}}
	a, _ := newTestAnalyzer(t, gw, &fakeFetcher{rec: testRecord()})

	group, err := a.Analyze(context.Background(), "NCT03778931", "", false)
	require.NoError(t, err)
	require.Len(t, group.Rows, 1)

	row := group.Rows[0]
	assert.Equal(t, "Enfortumab Vedotin", row.Value(model.FieldPrimaryDrug))
	assert.Equal(t, model.ProvenanceFallbackHeuristic, row.Fields[model.FieldPrimaryDrug].Provenance)
	// Record-derived fields keep the run above the escalation floor.
	assert.Equal(t, "PHASE3", row.Value(model.FieldTrialPhase))
}

func TestAnalyze_InvalidID(t *testing.T) {
	fetch := &fakeFetcher{rec: testRecord()}
	a, _ := newTestAnalyzer(t, &fakeGateway{}, fetch)

	_, err := a.Analyze(context.Background(), "NCT42", "", false)
	assert.True(t, resilience.IsValidationError(err))
	assert.Zero(t, fetch.fetches.Load())
}

func TestAnalyze_FetchFailureFailsRun(t *testing.T) {
	a, _ := newTestAnalyzer(t, &fakeGateway{}, &fakeFetcher{err: fetcher.ErrNotFound})

	_, err := a.Analyze(context.Background(), "NCT03778931", "", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetcher.ErrNotFound))
}

func TestAnalyze_ConcurrentCallersShareOneRun(t *testing.T) {
	gw := &fakeGateway{
		block:   make(chan struct{}),
		started: make(chan struct{}, 8),
	}
	a, _ := newTestAnalyzer(t, gw, &fakeFetcher{rec: testRecord()})
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*model.RowSplitGroup, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = a.Analyze(ctx, "NCT03778931", "", false)
	}()

	// The run is registered before its first gateway call.
	<-gw.started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = a.Analyze(ctx, "NCT03778931", "", false)
	}()

	time.Sleep(20 * time.Millisecond)
	close(gw.block)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].Rows[0].RunID, results[1].Rows[0].RunID)
	assert.Equal(t, int64(3), gw.calls.Load())
}

func TestAnalyze_CancelledWaiterIsReleased(t *testing.T) {
	gw := &fakeGateway{
		block:   make(chan struct{}),
		started: make(chan struct{}, 8),
	}
	a, _ := newTestAnalyzer(t, gw, &fakeFetcher{rec: testRecord()})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = a.Analyze(context.Background(), "NCT03778931", "", false)
	}()
	<-gw.started

	waitCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.Analyze(waitCtx, "NCT03778931", "", false)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter was not released")
	}

	close(gw.block)
	wg.Wait()
}

func TestModelFor_CachesPerModel(t *testing.T) {
	a, _ := newTestAnalyzer(t, &fakeGateway{}, &fakeFetcher{rec: testRecord()})

	sonnet := a.modelFor("claude-sonnet-4-5-20250929")
	assert.Same(t, sonnet, a.modelFor("claude-sonnet-4-5-20250929"))
	require.NotNil(t, sonnet.temperature)
	assert.Zero(t, *sonnet.temperature)

	opus := a.modelFor("claude-opus-4-6")
	assert.Nil(t, opus.temperature)
	assert.Greater(t, opus.maxTokens, sonnet.maxTokens)
}
