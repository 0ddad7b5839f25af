// Package pipeline runs one cleaning pass end to end:
// load -> dedupe -> extract -> report, then optionally persists the result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hurttlocker/loresmith/internal/clean"
	"github.com/hurttlocker/loresmith/internal/config"
	"github.com/hurttlocker/loresmith/internal/extract"
	"github.com/hurttlocker/loresmith/internal/ingest"
	"github.com/hurttlocker/loresmith/internal/report"
	"github.com/hurttlocker/loresmith/internal/store"
)

// Options configures a run.
type Options struct {
	InputDirs []string
	Recursive bool
	Rules     *config.Rules // nil means built-in defaults
	Logger    *zerolog.Logger
}

// Result is the in-memory outcome of a run.
type Result struct {
	Tables     []*extract.Table
	Report     *report.QualityReport
	Entries    []ingest.Entry // deduplicated entries, in load order
	LoadErrors []ingest.LoadError
}

// ByCategory returns the tables keyed by category.
func (r *Result) ByCategory() extract.Tables {
	return extract.TablesFrom(r.Tables)
}

// Run executes a cleaning pass. An empty corpus yields empty tables and a
// 0% report, not an error; only an invalid rule set fails the run.
func Run(opts Options) (*Result, error) {
	log := nopIfNil(opts.Logger)
	start := time.Now()

	rules := opts.Rules
	if rules == nil {
		rules = config.DefaultRules()
	}
	scorer, extractors, err := rules.Extractors()
	if err != nil {
		return nil, fmt.Errorf("compiling rules: %w", err)
	}

	loader := &ingest.Loader{Recursive: opts.Recursive}
	loaded := loader.LoadDirs(opts.InputDirs...)
	for _, e := range loaded.Errors {
		log.Warn().Str("file", e.File).Str("error", e.Message).Msg("skipping unreadable input")
	}
	log.Info().
		Int("files_scanned", loaded.FilesScanned).
		Int("files_loaded", loaded.FilesLoaded).
		Int("entries", len(loaded.Entries)).
		Msg("corpus loaded")

	deduped := clean.NewDeduplicator().Dedupe(loaded.Entries)
	log.Info().
		Int("unique", len(deduped.Unique)).
		Int("duplicates_removed", deduped.DuplicatesRemoved).
		Int("empty_dropped", deduped.EmptyDropped).
		Msg("entries deduplicated")

	tables := extract.Run(deduped.Unique, scorer, extractors...)
	for _, t := range tables {
		log.Debug().Str("category", t.Category).Int("records", t.Len()).Msg("category extracted")
	}

	stats := report.Stats{
		TotalRawEntries:   len(loaded.Entries),
		CleanedEntries:    len(deduped.Unique),
		DuplicatesRemoved: deduped.DuplicatesRemoved,
		InvalidEntries:    deduped.EmptyDropped,
		FilesScanned:      loaded.FilesScanned,
		FilesLoaded:       loaded.FilesLoaded,
		LoadErrors:        loaded.Errors,
	}
	qr := report.BuildQualityReport(stats, tables)
	log.Info().
		Str("run_id", qr.RunID).
		Str("efficiency", qr.Summary.CleaningEfficiency).
		Float64("avg_confidence", qr.Summary.AverageConfidence).
		Dur("elapsed", time.Since(start)).
		Msg("cleaning run complete")

	return &Result{
		Tables:     tables,
		Report:     qr,
		Entries:    deduped.Unique,
		LoadErrors: loaded.Errors,
	}, nil
}

// SaveOptions selects where a result is persisted.
type SaveOptions struct {
	OutputDir string
	SkipCSV   bool
	Store     store.Store // optional
	KeepRuns  int         // runs retained in the store; 0 keeps all
	Logger    *zerolog.Logger
}

// Saved lists what Save wrote.
type Saved struct {
	Files []string
	RunID string
}

// Save writes the JSON tables, CSV views and quality report, then the store
// snapshot when a store is given.
func Save(ctx context.Context, res *Result, opts SaveOptions) (*Saved, error) {
	log := nopIfNil(opts.Logger)
	out := &Saved{RunID: res.Report.RunID}

	files, err := report.WriteTables(opts.OutputDir, res.Tables)
	out.Files = append(out.Files, files...)
	if err != nil {
		return out, fmt.Errorf("writing tables: %w", err)
	}
	if !opts.SkipCSV {
		files, err = report.WriteCSV(opts.OutputDir, res.Tables)
		out.Files = append(out.Files, files...)
		if err != nil {
			return out, fmt.Errorf("writing csv: %w", err)
		}
	}
	if err := report.WriteQualityReport(opts.OutputDir, res.Report); err != nil {
		return out, fmt.Errorf("writing quality report: %w", err)
	}
	out.Files = append(out.Files, report.QualityPath(opts.OutputDir))
	log.Info().Str("dir", opts.OutputDir).Int("files", len(out.Files)).Msg("outputs written")

	if opts.Store == nil {
		return out, nil
	}
	if err := opts.Store.SaveRun(ctx, res.Report, res.Tables); err != nil {
		return out, fmt.Errorf("saving run to store: %w", err)
	}
	if opts.KeepRuns > 0 {
		pruned, err := opts.Store.PruneRuns(ctx, opts.KeepRuns)
		if err != nil {
			return out, fmt.Errorf("pruning old runs: %w", err)
		}
		if pruned > 0 {
			log.Info().Int("pruned", pruned).Msg("old runs pruned")
		}
	}
	log.Info().Str("run_id", res.Report.RunID).Msg("run stored")
	return out, nil
}

func nopIfNil(l *zerolog.Logger) *zerolog.Logger {
	if l != nil {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}
