package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/hurttlocker/loresmith/internal/config"
	"github.com/hurttlocker/loresmith/internal/dataset"
	"github.com/hurttlocker/loresmith/internal/httpapi"
	loremcp "github.com/hurttlocker/loresmith/internal/mcp"
	"github.com/hurttlocker/loresmith/internal/pipeline"
	"github.com/hurttlocker/loresmith/internal/report"
	"github.com/hurttlocker/loresmith/internal/store"
)

func runClean(ctx context.Context, e env, args []string) error {
	s := newSettings("clean", e)
	s.inputFlags()
	s.outputFlags()
	s.dbFlag()
	noDB := s.fs.Bool("no-db", false, "Skip the store snapshot")
	noCSV := s.fs.Bool("no-csv", false, "Skip CSV views")
	keepRuns := s.fs.Int("keep-runs", 5, "Runs retained in the store (0 keeps all)")
	cfg, log, err := s.parse(args, e)
	if err != nil {
		return err
	}

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(pipeline.Options{
		InputDirs: cfg.InputDirs,
		Recursive: cfg.Recursive,
		Rules:     rules,
		Logger:    &log,
	})
	if err != nil {
		return err
	}

	opts := pipeline.SaveOptions{OutputDir: cfg.OutputDir, SkipCSV: *noCSV, KeepRuns: *keepRuns, Logger: &log}
	if !*noDB {
		st, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath})
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()
		opts.Store = st
	}
	saved, err := pipeline.Save(ctx, res, opts)
	if err != nil {
		return err
	}

	sum := res.Report.Summary
	fmt.Fprintf(e.stdout, "Run %s\n", saved.RunID)
	fmt.Fprintf(e.stdout, "  Raw entries:        %d\n", sum.TotalRawEntries)
	fmt.Fprintf(e.stdout, "  Cleaned entries:    %d\n", sum.CleanedEntries)
	fmt.Fprintf(e.stdout, "  Duplicates removed: %d\n", sum.DuplicatesRemoved)
	fmt.Fprintf(e.stdout, "  Efficiency:         %s\n", sum.CleaningEfficiency)
	for _, t := range res.Tables {
		fmt.Fprintf(e.stdout, "  %-19s %d\n", t.Category+":", t.Len())
	}
	for _, le := range res.LoadErrors {
		fmt.Fprintf(e.stdout, "  skipped %s\n", le.Error())
	}
	fmt.Fprintf(e.stdout, "Wrote %d files to %s\n", len(saved.Files), cfg.OutputDir)
	return nil
}

func runDataset(ctx context.Context, e env, args []string) error {
	s := newSettings("dataset", e)
	s.outputFlags()
	s.datasetFlags()
	from := s.fs.String("from", "", "Database file to read (default <out>/"+report.DatabaseFile+")")
	cfg, log, err := s.parse(args, e)
	if err != nil {
		return err
	}

	src := *from
	if src == "" {
		src = filepath.Join(cfg.OutputDir, report.DatabaseFile)
	}
	tables, err := report.ReadDatabase(src)
	if err != nil {
		return err
	}

	qas := dataset.BuildQA(tables)
	trainPath := filepath.Join(cfg.OutputDir, dataset.TrainingFile)
	if err := dataset.WriteJSONL(trainPath, dataset.Examples(qas, cfg.Persona)); err != nil {
		return err
	}
	log.Info().Int("pairs", len(qas)).Str("file", trainPath).Msg("training data written")
	fmt.Fprintf(e.stdout, "Wrote %d Q/A pairs to %s\n", len(qas), trainPath)

	if cfg.TokenizerPath == "" {
		log.Info().Msg("no tokenizer configured, skipping tokenization")
		return nil
	}
	enc, err := dataset.NewTokenizerEncoder(cfg.TokenizerPath)
	if err != nil {
		return err
	}
	seqs, err := dataset.Tokenize(qas, cfg.Persona, enc, cfg.MaxSeqLength)
	if err != nil {
		return fmt.Errorf("tokenizing: %w", err)
	}
	tokPath := filepath.Join(cfg.OutputDir, dataset.TokenizedFile)
	if err := dataset.WriteJSONL(tokPath, seqs); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Wrote %d sequences to %s\n", len(seqs), tokPath)
	return nil
}

func runServe(ctx context.Context, e env, args []string) error {
	s := newSettings("serve", e)
	s.dbFlag()
	s.httpFlags()
	cfg, log, err := s.parse(args, e)
	if err != nil {
		return err
	}

	st, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	httpapi.Version = version
	srv := httpapi.NewServer(st, log, httpapi.Options{Host: cfg.HTTPHost, Port: cfg.HTTPPort})
	return srv.Start(ctx)
}

func runMCP(ctx context.Context, e env, args []string) error {
	s := newSettings("mcp", e)
	s.dbFlag()
	addr := s.fs.String("http", "", "Serve streamable HTTP on this address instead of stdio")
	cfg, log, err := s.parse(args, e)
	if err != nil {
		return err
	}

	st, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	srv := loremcp.NewServer(loremcp.ServerConfig{Store: st, Version: version})
	if *addr != "" {
		log.Info().Str("addr", *addr).Msg("mcp http transport started")
		return loremcp.ServeHTTP(ctx, srv, *addr)
	}
	return loremcp.ServeStdio(ctx, srv, e.stdin, e.stdout)
}

func runStats(ctx context.Context, e env, args []string) error {
	s := newSettings("stats", e)
	s.dbFlag()
	asJSON := s.fs.Bool("json", false, "Print JSON")
	cfg, _, err := s.parse(args, e)
	if err != nil {
		return err
	}

	st, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	run, err := st.LatestRun(ctx)
	if err != nil && !errors.Is(err, store.ErrNoRuns) {
		return err
	}

	if *asJSON {
		out := map[string]any{"store": stats}
		if run != nil {
			out["latest_run"] = run.Report
		}
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(e.stdout, "Store:    %s\n", cfg.DBPath)
	fmt.Fprintf(e.stdout, "Runs:     %d\n", stats.RunCount)
	fmt.Fprintf(e.stdout, "Records:  %d\n", stats.RecordCount)
	fmt.Fprintf(e.stdout, "Contexts: %d\n", stats.ContextCount)
	fmt.Fprintf(e.stdout, "Size:     %d bytes\n", stats.DBSizeBytes)
	if run == nil {
		fmt.Fprintln(e.stdout, "No runs stored yet.")
		return nil
	}
	fmt.Fprintf(e.stdout, "Latest:   %s (%s, efficiency %s)\n",
		run.ID, run.GeneratedAt.Format("2006-01-02 15:04:05"), run.CleaningEfficiency)
	return nil
}

func runVacuum(ctx context.Context, e env, args []string) error {
	s := newSettings("vacuum", e)
	s.dbFlag()
	cfg, _, err := s.parse(args, e)
	if err != nil {
		return err
	}
	st, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	if err := st.Vacuum(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "Store compacted.")
	return nil
}

func runConfig(ctx context.Context, e env, args []string) error {
	s := newSettings("config", e)
	s.inputFlags()
	s.outputFlags()
	s.dbFlag()
	s.datasetFlags()
	s.httpFlags()
	cfg, _, err := s.parse(args, e)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE\tFROM")
	for _, v := range config.Explain(cfg, s.overrides) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Key, v.Value, v.Source, v.From)
	}
	return tw.Flush()
}
