package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// AnalysisStore implements ports.AnalysisStore on an embedded SQLite
// database. The record itself is stored as JSON; identity, status and
// submission time are kept in columns for lookups and pruning.
type AnalysisStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at dsn
func Open(dsn string, logger *zap.Logger) (*AnalysisStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// WAL lets readers proceed while a worker writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	logger.Info("sqlite analysis store opened", zap.String("dsn", dsn))
	return &AnalysisStore{db: db, logger: logger}, nil
}

// Save inserts or replaces an analysis
func (s *AnalysisStore) Save(ctx context.Context, analysis *domain.Analysis) error {
	if analysis == nil || analysis.ID == "" {
		return fmt.Errorf("analysis id is required")
	}

	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("sqlite: marshal analysis: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, job_id, status, submitted_at, payload)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, payload = excluded.payload`,
		analysis.ID,
		analysis.JobID,
		string(analysis.Status),
		analysis.SubmittedAt.UnixNano(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save analysis: %w", err)
	}
	return nil
}

// Get retrieves an analysis by id
func (s *AnalysisStore) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM analyses WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get analysis: %w", err)
	}
	return decode(payload)
}

// ListByJob returns the analyses of a job, oldest first
func (s *AnalysisStore) ListByJob(ctx context.Context, jobID string) ([]*domain.Analysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM analyses WHERE job_id = ? ORDER BY submitted_at ASC, id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list analyses: %w", err)
	}
	defer rows.Close()

	analyses := []*domain.Analysis{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("sqlite: scan analysis: %w", err)
		}
		a, err := decode(payload)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// Delete removes an analysis
func (s *AnalysisStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete analysis: %w", err)
	}
	return nil
}

// Prune removes terminal analyses submitted before the cutoff
func (s *AnalysisStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analyses WHERE submitted_at < ? AND status IN (?, ?, ?)`,
		before.UnixNano(),
		string(domain.AnalysisStatusCompleted),
		string(domain.AnalysisStatusFailed),
		string(domain.AnalysisStatusCancelled),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune analyses: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune analyses: %w", err)
	}
	return int(n), nil
}

// Close closes the database
func (s *AnalysisStore) Close() error {
	return s.db.Close()
}

func decode(payload string) (*domain.Analysis, error) {
	var a domain.Analysis
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal analysis: %w", err)
	}
	return &a, nil
}

var _ ports.AnalysisStore = (*AnalysisStore)(nil)
