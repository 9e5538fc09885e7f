package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ishankgp/clinical-trial/internal/analyzer"
	"github.com/ishankgp/clinical-trial/internal/fetcher"
	"github.com/ishankgp/clinical-trial/internal/query"
	"github.com/ishankgp/clinical-trial/internal/search"
	"github.com/ishankgp/clinical-trial/internal/store"
	anthropicpkg "github.com/ishankgp/clinical-trial/pkg/anthropic"
)

// appEnv holds the initialized store, clients, and analyzers shared by the
// analyze/batch/query/search/serve/export commands.
type appEnv struct {
	Store    store.Store
	Cache    *fetcher.Cache
	Fetcher  fetcher.Fetcher
	Analyzer *analyzer.Analyzer
	Query    *query.Analyzer
	Searcher *search.Searcher
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, registry client, completion gateway, and
// analyzers. Callers should defer env.Close(). Without an API key the engine
// still runs; extractions degrade to the heuristic path and queries to the
// basic tier.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cache, err := fetcher.NewCache(cfg.Registry.CacheDir, time.Duration(cfg.Registry.CacheTTLHours)*time.Hour)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init registry cache")
	}

	registry := fetcher.NewRegistryClient(fetcher.RegistryOptions{
		BaseURL:   cfg.Registry.BaseURL,
		Timeout:   time.Duration(cfg.Registry.TimeoutSecs) * time.Second,
		RateLimit: rate.Limit(cfg.Registry.RateLimit),
		Cache:     cache,
	})

	var gateway analyzer.Completer
	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		gateway = anthropicpkg.NewGateway(client,
			anthropicpkg.WithRateLimit(cfg.Anthropic.RateLimit, 4))
	} else {
		zap.L().Warn("TRIALS_ANTHROPIC_KEY not set, running on heuristic extraction only")
	}

	an, err := analyzer.New(gateway, registry, st, analyzer.Options{
		Model:     cfg.Analyzer.Model,
		MaxTokens: cfg.Analyzer.MaxTokens,
		CacheSize: cfg.Analyzer.CacheSize,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &appEnv{
		Store:    st,
		Cache:    cache,
		Fetcher:  registry,
		Analyzer: an,
		Query:    query.New(gateway, cfg.Query.Model),
		Searcher: search.New(st),
	}, nil
}

// initStore opens the configured backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		zap.L().Debug("using postgres store")
		return st, nil
	case "sqlite", "":
		st, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		zap.L().Debug("using sqlite store", zap.String("path", cfg.Store.SQLitePath))
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
