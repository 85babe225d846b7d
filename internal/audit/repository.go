package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/momentum/internal/contracts"
	"github.com/wonny/momentum/internal/strategyconfig"
)

// Schema creates the audit tables. Applied by EnsureSchema.
const Schema = `
CREATE SCHEMA IF NOT EXISTS audit;

CREATE TABLE IF NOT EXISTS audit.momentum_runs (
	id               BIGSERIAL PRIMARY KEY,
	strategy_id      TEXT        NOT NULL,
	config_hash      TEXT        NOT NULL,
	config_yaml      TEXT        NOT NULL,
	git_commit       TEXT        NOT NULL DEFAULT '',
	data_snapshot_id TEXT        NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit.momentum_reports (
	run_id      BIGINT  NOT NULL REFERENCES audit.momentum_runs(id) ON DELETE CASCADE,
	name        TEXT    NOT NULL,
	horizon     INT     NOT NULL,
	size        INT     NOT NULL,
	leg         TEXT    NOT NULL,
	report      JSONB   NOT NULL,
	PRIMARY KEY (run_id, name)
);
`

// Repository handles audit data persistence
// ⭐ SSOT: Audit 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// StoredRun is one persisted comparison run
type StoredRun struct {
	ID       int64                           `json:"id"`
	Snapshot strategyconfig.DecisionSnapshot `json:"snapshot"`
	Reports  []*contracts.MetricsReport      `json:"reports"`
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the audit tables if missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// SaveRun stores the decision snapshot and every report of a run in one transaction
func (r *Repository) SaveRun(ctx context.Context, snapshot *strategyconfig.DecisionSnapshot, reports []*contracts.MetricsReport) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var runID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO audit.momentum_runs (
			strategy_id, config_hash, config_yaml, git_commit, data_snapshot_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		snapshot.StrategyID, snapshot.ConfigHash, snapshot.ConfigYAML,
		snapshot.GitCommit, snapshot.DataSnapshotID, snapshot.CreatedAt,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, rep := range reports {
		data, err := json.Marshal(rep)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal report %s: %w", rep.Name, err)
		}
		batch.Queue(`
			INSERT INTO audit.momentum_reports (run_id, name, horizon, size, leg, report)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, runID, rep.Name, rep.Horizon, rep.Size, string(rep.Leg), data)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to save reports: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// GetLatestRun retrieves the most recent run of a strategy
func (r *Repository) GetLatestRun(ctx context.Context, strategyID string) (*StoredRun, error) {
	run := &StoredRun{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, strategy_id, config_hash, config_yaml, git_commit, data_snapshot_id, created_at
		FROM audit.momentum_runs
		WHERE strategy_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, strategyID).Scan(
		&run.ID, &run.Snapshot.StrategyID, &run.Snapshot.ConfigHash, &run.Snapshot.ConfigYAML,
		&run.Snapshot.GitCommit, &run.Snapshot.DataSnapshotID, &run.Snapshot.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("no run found for strategy %s", strategyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT report FROM audit.momentum_reports
		WHERE run_id = $1
		ORDER BY horizon, size, leg, name
	`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rep contracts.MetricsReport
		if err := json.Unmarshal(data, &rep); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		run.Reports = append(run.Reports, &rep)
	}
	return run, rows.Err()
}

// DeleteBefore removes runs older than cutoff
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit.momentum_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
