package store

import (
	"context"
	"fmt"
	"strings"
)

// SearchContexts runs a full-text query over the latest run's context
// snippets, best matches first. Terms are ANDed; when that finds nothing and
// the query has several terms, it retries with OR.
func (s *SQLiteStore) SearchContexts(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	terms := ftsTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	runID, err := s.latestRunID(ctx)
	if err != nil {
		return nil, err
	}

	results, err := s.searchFTS(ctx, runID, strings.Join(terms, " "), limit)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 && len(terms) > 1 {
		return s.searchFTS(ctx, runID, strings.Join(terms, " OR "), limit)
	}
	return results, nil
}

func (s *SQLiteStore) searchFTS(ctx context.Context, runID, match string, limit int) ([]*SearchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.category, r.name, c.content, c.confidence,
		        snippet(contexts_fts, 0, '[', ']', '...', 16),
		        rank
		 FROM contexts_fts
		 JOIN contexts c ON contexts_fts.rowid = c.id
		 JOIN records r ON r.id = c.record_id
		 WHERE contexts_fts MATCH ?
		   AND r.run_id = ?
		 ORDER BY rank
		 LIMIT ?`,
		match, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("FTS search: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		r := &SearchResult{}
		if err := rows.Scan(&r.Category, &r.Name, &r.Content, &r.Confidence, &r.Snippet, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning FTS result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ftsTerms quotes each whitespace-separated word so user input can never
// be parsed as FTS5 syntax.
func ftsTerms(query string) []string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return terms
}
