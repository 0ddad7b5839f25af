package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hurttlocker/loresmith/internal/extract"
)

const recordColumns = `id, run_id, category, name, classification, mentions, avg_confidence,
	best_context, sources, data_json`

// GetRecord returns one record of the latest run. Names are matched
// case-insensitively.
func (s *SQLiteStore) GetRecord(ctx context.Context, category, name string) (*StoredRecord, error) {
	runID, err := s.latestRunID(ctx)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE run_id = ? AND category = ? AND name = ?`,
		runID, category, strings.ToLower(strings.TrimSpace(name)))
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting record %s/%s: %w", category, name, err)
	}
	return rec, nil
}

// ListRecords returns records of one category from the latest run.
func (s *SQLiteStore) ListRecords(ctx context.Context, category string, opts ListOpts) ([]*StoredRecord, error) {
	runID, err := s.latestRunID(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	orderBy := "mentions DESC, name ASC"
	switch opts.SortBy {
	case "confidence":
		orderBy = "avg_confidence DESC, name ASC"
	case "name":
		orderBy = "name ASC"
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE run_id = ? AND category = ?
		 ORDER BY `+orderBy+`
		 LIMIT ? OFFSET ?`,
		runID, category, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var out []*StoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Categories returns record counts per category for the latest run.
func (s *SQLiteStore) Categories(ctx context.Context) (map[string]int, error) {
	runID, err := s.latestRunID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM records WHERE run_id = ? GROUP BY category`, runID)
	if err != nil {
		return nil, fmt.Errorf("counting categories: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[cat] = n
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*StoredRecord, error) {
	rec := &StoredRecord{}
	var sources, data string
	if err := row.Scan(&rec.ID, &rec.RunID, &rec.Category, &rec.Name, &rec.Classification,
		&rec.Mentions, &rec.AvgConfidence, &rec.BestContext, &sources, &data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sources), &rec.Sources); err != nil {
		return nil, fmt.Errorf("decoding sources: %w", err)
	}
	var full extract.Record
	if err := json.Unmarshal([]byte(data), &full); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	full.Name = rec.Name
	rec.Record = &full
	return rec, nil
}
