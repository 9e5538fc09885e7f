package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ishankgp/clinical-trial/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analysis_results (
	run_id         TEXT NOT NULL,
	nct_id         TEXT NOT NULL,
	model          TEXT NOT NULL,
	version        INTEGER NOT NULL,
	row_index      INTEGER NOT NULL,
	fields         TEXT NOT NULL,
	metrics        TEXT NOT NULL,
	prompt_version TEXT NOT NULL,
	escalated      INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, row_index)
);

CREATE INDEX IF NOT EXISTS idx_results_trial_model ON analysis_results(nct_id, model, version);
CREATE INDEX IF NOT EXISTS idx_results_model ON analysis_results(model);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutResults(ctx context.Context, group *model.RowSplitGroup) error {
	if len(group.Rows) == 0 {
		return eris.New("sqlite: empty row group")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range group.Rows {
		row := &group.Rows[i]
		fieldsJSON, metricsJSON, err := marshalRow(row)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO analysis_results
			 (run_id, nct_id, model, version, row_index, fields, metrics, prompt_version, escalated, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.RunID, group.NCTID, group.Model, row.Version, i,
			fieldsJSON, metricsJSON, row.PromptVersion, row.Escalated, row.Timestamp.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert result row %d for %s", i, group.NCTID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit results")
}

func (s *SQLiteStore) GetResults(ctx context.Context, nctID, modelID string) (*model.RowSplitGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, version, row_index, fields, metrics, prompt_version, escalated, created_at
		 FROM analysis_results
		 WHERE nct_id = ? AND model = ?
		   AND version = (SELECT MAX(version) FROM analysis_results WHERE nct_id = ? AND model = ?)
		 ORDER BY row_index`,
		nctID, modelID, nctID, modelID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get results %s", nctID)
	}
	defer rows.Close()

	group := &model.RowSplitGroup{NCTID: nctID, Model: modelID}
	for rows.Next() {
		r, err := scanResultRow(rows, nctID, modelID)
		if err != nil {
			return nil, err
		}
		group.Rows = append(group.Rows, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: get results iterate")
	}
	if len(group.Rows) == 0 {
		return nil, nil
	}
	return group, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, nctID, modelID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analysis_results WHERE nct_id = ? AND model = ?`,
		nctID, modelID,
	).Scan(&n)
	return n > 0, eris.Wrap(err, "sqlite: exists")
}

func (s *SQLiteStore) LatestVersion(ctx context.Context, nctID, modelID string) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM analysis_results WHERE nct_id = ? AND model = ?`,
		nctID, modelID,
	).Scan(&v)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: latest version")
	}
	return int(v.Int64), nil
}

func (s *SQLiteStore) ListByFilters(ctx context.Context, filter ResultFilter) ([]model.AnalysisResult, error) {
	query := `SELECT r.run_id, r.nct_id, r.model, r.version, r.fields, r.metrics, r.prompt_version, r.escalated, r.created_at
	 FROM analysis_results r
	 JOIN (SELECT nct_id, model, MAX(version) AS v FROM analysis_results GROUP BY nct_id, model) latest
	   ON r.nct_id = latest.nct_id AND r.model = latest.model AND r.version = latest.v
	 WHERE 1=1`
	var args []any

	if filter.Model != "" {
		query += ` AND r.model = ?`
		args = append(args, filter.Model)
	}
	for _, ff := range orderedFilterFields(filter.Fields) {
		// Field keys are validated against the canonical schema; the JSON
		// path is safe to interpolate.
		query += fmt.Sprintf(` AND json_extract(r.fields, '$.%s.value') LIKE ?`, ff.field)
		args = append(args, "%"+ff.value+"%")
	}
	query += ` ORDER BY r.nct_id, r.row_index`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list by filters")
	}
	defer rows.Close()

	var results []model.AnalysisResult
	for rows.Next() {
		var r model.AnalysisResult
		var fieldsJSON, metricsJSON string
		var ts time.Time
		if err := rows.Scan(&r.RunID, &r.NCTID, &r.Model, &r.Version,
			&fieldsJSON, &metricsJSON, &r.PromptVersion, &r.Escalated, &ts); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r.Timestamp = ts
		if err := unmarshalRow(&r, []byte(fieldsJSON), []byte(metricsJSON)); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list by filters iterate")
}

func (s *SQLiteStore) ListTrials(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT nct_id FROM analysis_results ORDER BY nct_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list trials")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trial id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list trials iterate")
}

// helpers shared with the postgres backend

func marshalRow(row *model.AnalysisResult) (fieldsJSON, metricsJSON []byte, err error) {
	fieldsJSON, err = json.Marshal(row.Fields)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal fields")
	}
	metricsJSON, err = json.Marshal(row.Metrics)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal metrics")
	}
	return fieldsJSON, metricsJSON, nil
}

func unmarshalRow(r *model.AnalysisResult, fieldsJSON, metricsJSON []byte) error {
	if err := json.Unmarshal(fieldsJSON, &r.Fields); err != nil {
		return eris.Wrap(err, "store: unmarshal fields")
	}
	if err := json.Unmarshal(metricsJSON, &r.Metrics); err != nil {
		return eris.Wrap(err, "store: unmarshal metrics")
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanResultRow(row scannable, nctID, modelID string) (*model.AnalysisResult, error) {
	var r model.AnalysisResult
	var fieldsJSON, metricsJSON string
	var ts time.Time
	err := row.Scan(&r.RunID, &r.Version, new(int), &fieldsJSON, &metricsJSON,
		&r.PromptVersion, &r.Escalated, &ts)
	if err != nil {
		return nil, eris.Wrap(err, "store: scan result row")
	}
	r.NCTID = nctID
	r.Model = modelID
	r.Timestamp = ts
	if err := unmarshalRow(&r, []byte(fieldsJSON), []byte(metricsJSON)); err != nil {
		return nil, err
	}
	return &r, nil
}

type fieldFilter struct {
	field string
	value string
}

// orderedFilterFields yields only canonical field keys, in schema order, so
// generated SQL is deterministic and unknown keys are dropped.
func orderedFilterFields(fields map[string]string) []fieldFilter {
	var out []fieldFilter
	for _, f := range model.SchemaFields() {
		if v, ok := fields[f]; ok && v != "" {
			out = append(out, fieldFilter{field: f, value: v})
		}
	}
	return out
}
