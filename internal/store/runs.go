package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hurttlocker/loresmith/internal/clean"
	"github.com/hurttlocker/loresmith/internal/extract"
	"github.com/hurttlocker/loresmith/internal/report"
)

// SaveRun persists a run snapshot in a single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, r *report.QualityReport, tables []*extract.Table) error {
	if r == nil || r.RunID == "" {
		return fmt.Errorf("run report with an id is required")
	}
	reportJSON, err := marshalJSON(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, generated_at, total_raw_entries, cleaned_entries, duplicates_removed,
		                   cleaning_efficiency, average_confidence, report_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.GeneratedAt.UTC(), r.Summary.TotalRawEntries, r.Summary.CleanedEntries,
		r.Summary.DuplicatesRemoved, r.Summary.CleaningEfficiency, r.Summary.AverageConfidence, reportJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	recStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, category, name, classification, mentions, avg_confidence,
		                      best_context, sources, data_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer recStmt.Close()

	ctxStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contexts (record_id, position, content, confidence, content_hash)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing context insert: %w", err)
	}
	defer ctxStmt.Close()

	for _, t := range tables {
		for _, name := range t.Keys() {
			rec := t.Records[name]
			sources, err := marshalJSON(rec.Sources)
			if err != nil {
				return fmt.Errorf("encoding sources for %s/%s: %w", t.Category, name, err)
			}
			data, err := marshalJSON(rec)
			if err != nil {
				return fmt.Errorf("encoding record %s/%s: %w", t.Category, name, err)
			}

			res, err := recStmt.ExecContext(ctx, r.RunID, t.Category, name, rec.Classification,
				rec.Mentions, rec.AvgConfidence, rec.BestContext(), sources, data)
			if err != nil {
				return fmt.Errorf("inserting record %s/%s: %w", t.Category, name, err)
			}
			recordID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("reading record id: %w", err)
			}

			for i, c := range rec.Contexts {
				conf := 0.0
				if i < len(rec.ConfidenceScores) {
					conf = rec.ConfidenceScores[i]
				}
				if _, err := ctxStmt.ExecContext(ctx, recordID, i, c, conf, clean.Fingerprint(c)); err != nil {
					return fmt.Errorf("inserting context for %s/%s: %w", t.Category, name, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent run. Run ids are ULIDs, so lexical order
// is creation order.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	run := &Run{}
	var reportJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, generated_at, total_raw_entries, cleaned_entries, duplicates_removed,
		        cleaning_efficiency, average_confidence, report_json
		 FROM runs ORDER BY id DESC LIMIT 1`,
	).Scan(&run.ID, &run.GeneratedAt, &run.TotalRawEntries, &run.CleanedEntries,
		&run.DuplicatesRemoved, &run.CleaningEfficiency, &run.AverageConfidence, &reportJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}

	var qr report.QualityReport
	if err := json.Unmarshal([]byte(reportJSON), &qr); err != nil {
		return nil, fmt.Errorf("decoding report for run %s: %w", run.ID, err)
	}
	run.Report = &qr
	return run, nil
}

// PruneRuns deletes all but the newest keep runs. Records and contexts go
// with them. It returns the number of runs deleted.
func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Explicit child deletes: PRAGMA foreign_keys is per connection, so the
	// cascade cannot be relied on for pooled connections.
	const stale = `SELECT id FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM contexts WHERE record_id IN (SELECT id FROM records WHERE run_id IN (`+stale+`))`, keep); err != nil {
		return 0, fmt.Errorf("pruning contexts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return 0, fmt.Errorf("pruning records: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) latestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("querying latest run: %w", err)
	}
	return id, nil
}
