// Package store provides the SQLite knowledge store for loresmith.
//
// Every cleaning run is persisted as a snapshot:
// - runs: one row per run, keyed by its ULID, with the quality report
// - records: one row per category key, with the full record as JSON
// - contexts: every context snippet, indexed with FTS5 for search
//
// Readers (HTTP API, MCP server) always see the latest run.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/loresmith/internal/extract"
	"github.com/hurttlocker/loresmith/internal/report"
)

// ErrNotFound is returned when a run or record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoRuns is returned by readers before any run has been saved.
var ErrNoRuns = errors.New("no runs saved yet")

// Run is a persisted cleaning run.
type Run struct {
	ID                 string
	GeneratedAt        time.Time
	TotalRawEntries    int
	CleanedEntries     int
	DuplicatesRemoved  int
	CleaningEfficiency string
	AverageConfidence  float64
	Report             *report.QualityReport
}

// StoredRecord is a category record as persisted for one run.
type StoredRecord struct {
	ID             int64           `json:"-"`
	RunID          string          `json:"run_id"`
	Category       string          `json:"category"`
	Name           string          `json:"name"`
	Classification string          `json:"classification,omitempty"`
	Mentions       int             `json:"mentions"`
	AvgConfidence  float64         `json:"avg_confidence"`
	BestContext    string          `json:"best_context"`
	Sources        []string        `json:"sources"`
	Record         *extract.Record `json:"record,omitempty"`
}

// SearchResult is one context snippet matching a search query.
type SearchResult struct {
	Category   string  `json:"category"`
	Name       string  `json:"name"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

// ListOpts controls pagination and ordering for ListRecords.
type ListOpts struct {
	Limit  int
	Offset int
	SortBy string // "mentions" (default), "confidence", "name"
}

// StoreStats holds counts across all stored runs.
type StoreStats struct {
	RunCount     int64 `json:"runs"`
	RecordCount  int64 `json:"records"`
	ContextCount int64 `json:"contexts"`
	DBSizeBytes  int64 `json:"db_size_bytes"`
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the knowledge store.
type Store interface {
	// Writes
	SaveRun(ctx context.Context, r *report.QualityReport, tables []*extract.Table) error
	PruneRuns(ctx context.Context, keep int) (int, error)

	// Reads, always against the latest run
	LatestRun(ctx context.Context) (*Run, error)
	GetRecord(ctx context.Context, category, name string) (*StoredRecord, error)
	ListRecords(ctx context.Context, category string, opts ListOpts) ([]*StoredRecord, error)
	Categories(ctx context.Context) (map[string]int, error)
	SearchContexts(ctx context.Context, query string, limit int) ([]*SearchResult, error)

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	// Maintenance
	Vacuum(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store on SQLite with FTS5.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) a SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Vacuum runs VACUUM on the database.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Stats returns row counts and the database size.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}
	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM runs", &stats.RunCount},
		{"SELECT COUNT(*) FROM records", &stats.RecordCount},
		{"SELECT COUNT(*) FROM contexts", &stats.ContextCount},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}
	return stats, nil
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
