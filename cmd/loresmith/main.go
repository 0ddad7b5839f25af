package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/hurttlocker/loresmith/internal/config"
	"github.com/hurttlocker/loresmith/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// env bundles the process streams so commands stay testable.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type command func(ctx context.Context, e env, args []string) error

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}

	commands := map[string]command{
		"clean":   runClean,
		"dataset": runDataset,
		"serve":   runServe,
		"mcp":     runMCP,
		"stats":   runStats,
		"vacuum":  runVacuum,
		"config":  runConfig,
	}

	e := env{stdin: stdin, stdout: stdout, stderr: stderr}
	switch name := args[0]; name {
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "loresmith %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		cmd, ok := commands[name]
		if !ok {
			fmt.Fprintf(stderr, "Unknown command: %s\n\n", name)
			printUsage(stderr)
			return 1
		}
		if err := cmd(ctx, e, args[1:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 0
			}
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
}

// stringList is a repeatable string flag; each value may also hold a comma list.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// settings carries the flags every command shares.
type settings struct {
	fs        *flag.FlagSet
	envLoader *config.EnvLoader
	overrides config.Overrides
	recursive bool
}

func newSettings(name string, e env) *settings {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	s := &settings{fs: fs}
	s.envLoader = config.AddEnvFlag(fs, ".env", "Path to the .env file")
	fs.StringVar(&s.overrides.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	return s
}

func (s *settings) inputFlags() {
	s.fs.Var((*stringList)(&s.overrides.InputDirs), "input", "Input directory (repeatable, or comma-separated)")
	s.fs.BoolVar(&s.recursive, "recursive", false, "Walk input directories recursively")
	s.fs.StringVar(&s.overrides.RulesPath, "rules", "", "Path to a YAML rules file")
}

func (s *settings) outputFlags() {
	s.fs.StringVar(&s.overrides.OutputDir, "out", "", "Output directory")
}

func (s *settings) dbFlag() {
	s.fs.StringVar(&s.overrides.DBPath, "db", "", "Path to the SQLite lore store")
}

func (s *settings) datasetFlags() {
	s.fs.StringVar(&s.overrides.TokenizerPath, "tokenizer", "", "Path to a tokenizer.json")
	s.fs.IntVar(&s.overrides.MaxSeqLength, "max-length", 0, "Maximum tokens per sequence")
	s.fs.StringVar(&s.overrides.Persona, "persona", "", "Persona answering the generated conversations")
}

func (s *settings) httpFlags() {
	s.fs.StringVar(&s.overrides.HTTPHost, "host", "", "HTTP listen host")
	s.fs.IntVar(&s.overrides.HTTPPort, "port", 0, "HTTP listen port")
}

// parse parses args, loads the .env file, resolves the configuration and
// builds the logger.
func (s *settings) parse(args []string, e env) (*config.Config, zerolog.Logger, error) {
	if err := s.fs.Parse(args); err != nil {
		return nil, zerolog.Nop(), err
	}
	if s.fs.NArg() > 0 {
		return nil, zerolog.Nop(), fmt.Errorf("unexpected argument: %s", s.fs.Arg(0))
	}
	s.fs.Visit(func(f *flag.Flag) {
		if f.Name == "recursive" {
			s.overrides.Recursive = &s.recursive
		}
	})

	// A missing .env file is normal.
	envFile, envErr := s.envLoader.Load()

	cfg, err := config.Resolve(s.overrides)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger, err := logging.New(e.stderr, cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if envErr == nil {
		logger.Debug().Str("file", envFile).Msg("env file loaded")
	}
	return cfg, logger, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `loresmith %s - community lore cleaning pipeline

Usage:
  loresmith <command> [flags]

Commands:
  clean      Load raw JSON, dedupe, extract tables, write outputs and the store
  dataset    Build Q/A training data (and token ids with --tokenizer)
  serve      Serve the stored tables over HTTP
  mcp        Serve the stored tables over MCP (stdio, or --http)
  stats      Show store statistics and the latest run
  vacuum     Compact the store
  config     Show resolved settings and where each came from
  version    Print version

Common Flags:
  --env <path>         .env file (default .env; $LORESMITH_ENV_FILE wins)
  --log-level <lvl>    debug, info, warn, error

Clean Flags:
  --input <dir>        Input directory (repeatable)
  --recursive          Walk input directories recursively
  --rules <path>       YAML rules file (vocabularies, scoring)
  --out <dir>          Output directory
  --db <path>          SQLite store path
  --no-db              Skip the store snapshot
  --no-csv             Skip CSV views
  --keep-runs <n>      Runs retained in the store (0 keeps all)

Run "loresmith <command> -h" for every flag of a command.
`, version)
}
