package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ishankgp/clinical-trial/internal/db"
	"github.com/ishankgp/clinical-trial/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests inject pgxmock here.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analysis_results (
	run_id         TEXT NOT NULL,
	nct_id         TEXT NOT NULL,
	model          TEXT NOT NULL,
	version        INTEGER NOT NULL,
	row_index      INTEGER NOT NULL,
	fields         JSONB NOT NULL,
	metrics        JSONB NOT NULL,
	prompt_version TEXT NOT NULL,
	escalated      BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, row_index)
);

CREATE INDEX IF NOT EXISTS idx_results_trial_model ON analysis_results(nct_id, model, version);
CREATE INDEX IF NOT EXISTS idx_results_model ON analysis_results(model);
CREATE INDEX IF NOT EXISTS idx_results_fields ON analysis_results USING gin(fields);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

var resultColumns = []string{
	"run_id", "nct_id", "model", "version", "row_index",
	"fields", "metrics", "prompt_version", "escalated", "created_at",
}

func (s *PostgresStore) PutResults(ctx context.Context, group *model.RowSplitGroup) error {
	if len(group.Rows) == 0 {
		return eris.New("postgres: empty row group")
	}

	rows := make([][]any, 0, len(group.Rows))
	for i := range group.Rows {
		row := &group.Rows[i]
		fieldsJSON, metricsJSON, err := marshalRow(row)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			row.RunID, group.NCTID, group.Model, row.Version, i,
			fieldsJSON, metricsJSON, row.PromptVersion, row.Escalated, row.Timestamp.UTC(),
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "analysis_results", resultColumns, rows)
	return eris.Wrapf(err, "postgres: put results %s", group.NCTID)
}

func (s *PostgresStore) GetResults(ctx context.Context, nctID, modelID string) (*model.RowSplitGroup, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, version, row_index, fields, metrics, prompt_version, escalated, created_at
		 FROM analysis_results
		 WHERE nct_id = $1 AND model = $2
		   AND version = (SELECT MAX(version) FROM analysis_results WHERE nct_id = $1 AND model = $2)
		 ORDER BY row_index`,
		nctID, modelID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get results %s", nctID)
	}
	defer rows.Close()

	group := &model.RowSplitGroup{NCTID: nctID, Model: modelID}
	for rows.Next() {
		var r model.AnalysisResult
		var fieldsJSON, metricsJSON []byte
		var rowIndex int
		var ts time.Time
		if err := rows.Scan(&r.RunID, &r.Version, &rowIndex, &fieldsJSON, &metricsJSON,
			&r.PromptVersion, &r.Escalated, &ts); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result row")
		}
		r.NCTID = nctID
		r.Model = modelID
		r.Timestamp = ts
		if err := unmarshalRow(&r, fieldsJSON, metricsJSON); err != nil {
			return nil, err
		}
		group.Rows = append(group.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: get results iterate")
	}
	if len(group.Rows) == 0 {
		return nil, nil
	}
	return group, nil
}

func (s *PostgresStore) Exists(ctx context.Context, nctID, modelID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM analysis_results WHERE nct_id = $1 AND model = $2)`,
		nctID, modelID,
	).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: exists")
}

func (s *PostgresStore) LatestVersion(ctx context.Context, nctID, modelID string) (int, error) {
	var v *int
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(version) FROM analysis_results WHERE nct_id = $1 AND model = $2`,
		nctID, modelID,
	).Scan(&v)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: latest version")
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

func (s *PostgresStore) ListByFilters(ctx context.Context, filter ResultFilter) ([]model.AnalysisResult, error) {
	query := `SELECT r.run_id, r.nct_id, r.model, r.version, r.fields, r.metrics, r.prompt_version, r.escalated, r.created_at
	 FROM analysis_results r
	 JOIN (SELECT nct_id, model, MAX(version) AS v FROM analysis_results GROUP BY nct_id, model) latest
	   ON r.nct_id = latest.nct_id AND r.model = latest.model AND r.version = latest.v
	 WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Model != "" {
		query += fmt.Sprintf(` AND r.model = $%d`, argIdx)
		args = append(args, filter.Model)
		argIdx++
	}
	for _, ff := range orderedFilterFields(filter.Fields) {
		// Field keys are validated against the canonical schema; the JSON
		// path is safe to interpolate.
		query += fmt.Sprintf(` AND r.fields->'%s'->>'value' ILIKE $%d`, ff.field, argIdx)
		args = append(args, "%"+ff.value+"%")
		argIdx++
	}
	query += ` ORDER BY r.nct_id, r.row_index`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list by filters")
	}
	defer rows.Close()

	var results []model.AnalysisResult
	for rows.Next() {
		var r model.AnalysisResult
		var fieldsJSON, metricsJSON []byte
		var ts time.Time
		if err := rows.Scan(&r.RunID, &r.NCTID, &r.Model, &r.Version,
			&fieldsJSON, &metricsJSON, &r.PromptVersion, &r.Escalated, &ts); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		r.Timestamp = ts
		if err := unmarshalRow(&r, fieldsJSON, metricsJSON); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list by filters iterate")
}

func (s *PostgresStore) ListTrials(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT nct_id FROM analysis_results ORDER BY nct_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list trials")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trial id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list trials iterate")
}
