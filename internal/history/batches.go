package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sigreer/devolume/internal/workflow"
)

var (
	// ErrBatchNotFound means no batch ID starts with the given prefix.
	ErrBatchNotFound = errors.New("no such batch")
	// ErrAmbiguousBatch means more than one batch ID starts with the prefix.
	ErrAmbiguousBatch = errors.New("batch id prefix matches more than one batch")
)

// Result outcomes
const (
	OutcomeKilled = "killed"
	OutcomeFailed = "failed"
)

// BatchRecord is a stored termination batch.
type BatchRecord struct {
	ID         string    `json:"id"`
	VolumeName string    `json:"volume_name"`
	VolumePath string    `json:"volume_path"`
	Requested  int       `json:"requested"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// ResultRecord is the stored fate of one PID in a batch.
type ResultRecord struct {
	PID         int    `json:"pid"`
	ProcessName string `json:"process_name,omitempty"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
}

// RecordBatch stores b and its per-PID results in one transaction.
func (d *DB) RecordBatch(ctx context.Context, b workflow.Batch) error {
	id := uuid.NewString()

	names := make(map[int]string, len(b.Processes))
	for _, p := range b.Processes {
		names[p.PID] = p.Name
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (id, volume_name, volume_path, requested, succeeded, failed, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, b.Volume.Name, b.Volume.Path, len(b.Outcome.Results), b.Outcome.SuccessCount, b.Outcome.FailCount,
		b.StartedAt.UnixMilli(), b.EndedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record batch: %w", err)
	}

	for _, r := range b.Outcome.Results {
		outcome := OutcomeKilled
		var errText sql.NullString
		if !r.OK() {
			outcome = OutcomeFailed
			errText = sql.NullString{String: r.Err.Error(), Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO batch_results (batch_id, pid, process_name, outcome, error)
			VALUES (?, ?, ?, ?, ?)
		`, id, r.PID, nullString(names[r.PID]), outcome, errText)
		if err != nil {
			return fmt.Errorf("failed to record result for pid %d: %w", r.PID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// RecentBatches returns the newest batches first.
func (d *DB) RecentBatches(ctx context.Context, limit int) ([]*BatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, volume_name, volume_path, requested, succeeded, failed, started_at, ended_at
		FROM batches
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []*BatchRecord
	for rows.Next() {
		var b BatchRecord
		var started, ended int64
		if err := rows.Scan(&b.ID, &b.VolumeName, &b.VolumePath, &b.Requested, &b.Succeeded, &b.Failed, &started, &ended); err != nil {
			return nil, err
		}
		b.StartedAt = time.UnixMilli(started)
		b.EndedAt = time.UnixMilli(ended)
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

// BatchResults returns the per-PID results of batch id ordered by PID.
func (d *DB) BatchResults(ctx context.Context, id string) ([]*ResultRecord, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT pid, process_name, outcome, error
		FROM batch_results
		WHERE batch_id = ?
		ORDER BY pid
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch results: %w", err)
	}
	defer rows.Close()

	var results []*ResultRecord
	for rows.Next() {
		var r ResultRecord
		var name, errText sql.NullString
		if err := rows.Scan(&r.PID, &name, &r.Outcome, &errText); err != nil {
			return nil, err
		}
		r.ProcessName = name.String
		r.Error = errText.String
		results = append(results, &r)
	}
	return results, rows.Err()
}

// ResolveBatchID expands a full or abbreviated batch ID, as printed by the
// history table, to the stored ID.
func (d *DB) ResolveBatchID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrBatchNotFound)
	}

	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id FROM batches
		WHERE id LIKE ? || '%' ESCAPE '\'
		LIMIT 2
	`, escaped)
	if err != nil {
		return "", fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrBatchNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousBatch, prefix)
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
