package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/resilience"
	"github.com/ishankgp/clinical-trial/internal/search"
	"github.com/ishankgp/clinical-trial/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/analyze/{id}", env.handleAnalyze)
		r.Post("/api/query", env.handleQuery)
		r.Get("/api/results", env.handleResults)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown. The signal context is already cancelled here,
		// so drain in-flight requests under a fresh deadline.
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func (e *appEnv) handleAnalyze(w http.ResponseWriter, req *http.Request) {
	nctID := chi.URLParam(req, "id")
	force := req.URL.Query().Get("force") == "true"

	var body struct {
		Model string `json:"model"`
	}
	if req.Body != nil && req.ContentLength > 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	group, err := e.Analyzer.Analyze(req.Context(), nctID, body.Model, force)
	if err != nil {
		status := http.StatusInternalServerError
		if resilience.IsValidationError(err) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (e *appEnv) handleQuery(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Query string `json:"query"`
		Tier  string `json:"tier"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	tierName := body.Tier
	if tierName == "" {
		tierName = cfg.Query.Tier
	}
	tier, err := parseTier(tierName)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	fs, err := e.Query.Analyze(req.Context(), body.Query, tier)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	res, err := e.Searcher.Search(req.Context(), fs, body.Limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filter_set": fs,
		"rows":       res.Rows,
		"total":      res.Total,
		"summary":    search.Summarize(res.Rows),
	})
}

func (e *appEnv) handleResults(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	filters := make(map[string]string)
	for _, field := range model.SchemaFields() {
		if v := q.Get(field); v != "" {
			filters[field] = v
		}
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	rows, err := e.Store.ListByFilters(req.Context(), store.ResultFilter{
		Fields: filters,
		Model:  q.Get("model"),
		Limit:  limit,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "total": len(rows)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
