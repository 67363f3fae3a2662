package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fortio.org/safecast"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fractal-lba/nbeval/internal/pipeline"
)

// Schema creates the table PostgresStore expects.
const Schema = `
CREATE TABLE IF NOT EXISTS nbeval_reports (
  fingerprint VARCHAR(64) PRIMARY KEY,
  run_id VARCHAR(36) NOT NULL,
  documents INTEGER NOT NULL,
  representations INTEGER NOT NULL,
  report JSONB NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_nbeval_reports_expires ON nbeval_reports(expires_at);
`

// PostgresStore implements Store using Postgres ON CONFLICT for atomic
// first-write-wins. An expired row is replaced by the next write.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, checks the connection and ensures the schema.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Get(ctx context.Context, fingerprint string) (*pipeline.Report, error) {
	query := `
		SELECT report
		FROM nbeval_reports
		WHERE fingerprint = $1 AND expires_at > NOW()
	`

	var reportJSON []byte
	err := p.pool.QueryRow(ctx, query, fingerprint).Scan(&reportJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}

	var report pipeline.Report
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}

func (p *PostgresStore) Put(ctx context.Context, fingerprint string, report *pipeline.Report, ttl time.Duration) (bool, error) {
	row, err := newRow(report)
	if err != nil {
		return false, err
	}

	// The WHERE clause lets a write replace an expired row only.
	query := `
		INSERT INTO nbeval_reports (fingerprint, run_id, documents, representations, report, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (fingerprint) DO UPDATE
		SET run_id = EXCLUDED.run_id,
		    documents = EXCLUDED.documents,
		    representations = EXCLUDED.representations,
		    report = EXCLUDED.report,
		    expires_at = EXCLUDED.expires_at,
		    created_at = NOW()
		WHERE nbeval_reports.expires_at <= NOW()
	`

	tag, err := p.pool.Exec(ctx, query, fingerprint, row.runID, row.documents, row.representations, row.report, time.Now().Add(ttl))
	if err != nil {
		return false, fmt.Errorf("postgres insert failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// CleanupExpired removes expired reports and returns the number deleted.
func (p *PostgresStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := p.pool.Exec(ctx, `DELETE FROM nbeval_reports WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}

	return result.RowsAffected(), nil
}

type reportRow struct {
	runID           string
	documents       int32
	representations int32
	report          []byte
}

func newRow(report *pipeline.Report) (reportRow, error) {
	documents, err := safecast.Conv[int32](report.Documents)
	if err != nil {
		return reportRow{}, fmt.Errorf("documents: %w", err)
	}
	reps, err := safecast.Conv[int32](len(report.Results))
	if err != nil {
		return reportRow{}, fmt.Errorf("representations: %w", err)
	}
	data, err := json.Marshal(report)
	if err != nil {
		return reportRow{}, fmt.Errorf("failed to marshal report: %w", err)
	}

	return reportRow{
		runID:           report.RunID,
		documents:       documents,
		representations: reps,
		report:          data,
	}, nil
}
