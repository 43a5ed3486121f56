package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"divtable/internal/ledger"
	"divtable/internal/precompute"
)

var (
	errNoInDB  = errors.New("no input database provided (--db-in)")
	errNoOutDB = errors.New("no output database provided (--db-out)")
	errNoCache = errors.New("no calculation cache provided (--calc-cache)")
)

// invalidValueError is an unparseable or out-of-range numeric flag.
type invalidValueError struct {
	Flag  string
	Value string
	Err   error
}

func (e *invalidValueError) Error() string {
	return fmt.Sprintf("invalid --%s value %q: %v", e.Flag, e.Value, e.Err)
}

func (e *invalidValueError) Unwrap() error { return e.Err }

// options are the raw command-line values before validation.
type options struct {
	inDB      string
	outDB     string
	cache     string
	threads   string
	divStart  string
	maxDiv    string
	minimal   bool
	sync      bool
	ledger    string
	logFormat string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func newFlagSet(opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("precompute", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.inDB, "db-in", "", "in file for input binary data db (required)")
	fs.StringVar(&opts.inDB, "i", "", "shorthand for --db-in")
	fs.StringVar(&opts.outDB, "db-out", "", "output file for out binary data db (required)")
	fs.StringVar(&opts.outDB, "o", "", "shorthand for --db-out")
	fs.StringVar(&opts.cache, "calc-cache", "", "cache file used during calculations (required)")
	fs.StringVar(&opts.cache, "c", "", "shorthand for --calc-cache")
	fs.StringVar(&opts.threads, "threads", "4", "total concurrent workers per record")
	fs.StringVar(&opts.threads, "t", "4", "shorthand for --threads")
	fs.StringVar(&opts.divStart, "div-start", "1", "div start value")
	fs.StringVar(&opts.divStart, "d", "1", "shorthand for --div-start")
	fs.StringVar(&opts.maxDiv, "max-div", "0", "largest divisor tried before failing (0: unbounded)")
	fs.BoolVar(&opts.minimal, "minimal", false, "always find the smallest qualifying divisor")
	fs.BoolVar(&opts.sync, "sync", false, "fsync the cache after every entry")
	fs.StringVar(&opts.ledger, "ledger", os.Getenv("LEDGER_PATH"), "SQLite run ledger (default $LEDGER_PATH, empty disables)")
	fs.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: precompute --db-in INDB --db-out OUTDB --calc-cache CACHE [options]\n\n")
		fs.PrintDefaults()
	}
	return fs
}

// buildConfig turns parsed flags into a validated compile configuration.
func buildConfig(opts options) (precompute.Config, error) {
	cfg := precompute.Config{
		InputPath:  opts.inDB,
		OutputPath: opts.outDB,
		CachePath:  opts.cache,
		Layout:     precompute.DefaultLayout(),
	}

	switch {
	case opts.inDB == "":
		return cfg, errNoInDB
	case opts.outDB == "":
		return cfg, errNoOutDB
	case opts.cache == "":
		return cfg, errNoCache
	}

	threads, err := strconv.Atoi(opts.threads)
	if err == nil && threads < 1 {
		err = errors.New("must be at least 1")
	}
	if err != nil {
		return cfg, &invalidValueError{Flag: "threads", Value: opts.threads, Err: err}
	}
	cfg.Threads = threads

	divStart, err := parseDivisor(opts.divStart, 1)
	if err != nil {
		return cfg, &invalidValueError{Flag: "div-start", Value: opts.divStart, Err: err}
	}
	cfg.DivStart = divStart

	maxDiv, err := parseDivisor(opts.maxDiv, 0)
	if err != nil {
		return cfg, &invalidValueError{Flag: "max-div", Value: opts.maxDiv, Err: err}
	}
	cfg.MaxDivisor = maxDiv

	if opts.minimal {
		cfg.Mode = precompute.SearchMinimal
	}
	if opts.sync {
		cfg.Durability = precompute.DurabilitySync
	}
	switch opts.logFormat {
	case "text", "json":
	default:
		return cfg, &invalidValueError{Flag: "log-format", Value: opts.logFormat, Err: errors.New("must be text or json")}
	}

	return cfg, cfg.Validate()
}

func parseDivisor(s string, lowest int64) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < lowest || v > math.MaxInt32 {
		return 0, fmt.Errorf("must be between %d and %d", lowest, math.MaxInt32)
	}
	return int32(v), nil
}

func newLogger(format string, w io.Writer) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// run is the whole program; it returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		// The flag package already reported the problem and printed usage.
		return 1
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fs.Usage()
		return 1
	}
	logger := newLogger(opts.logFormat, stderr)
	cfg.Logger = logger

	fmt.Fprintf(stdout, "Divisor Table Compiler\n")
	fmt.Fprintf(stdout, "======================\n\n")
	fmt.Fprintf(stdout, "Input database: %s\n", cfg.InputPath)
	fmt.Fprintf(stdout, "Output database: %s\n", cfg.OutputPath)
	fmt.Fprintf(stdout, "Cache: %s\n", cfg.CachePath)
	fmt.Fprintf(stdout, "Threads: %d, divisor start: %d, mode: %s\n", cfg.Threads, cfg.DivStart, cfg.Mode)
	fmt.Fprintln(stdout)

	var (
		runs  *ledger.Ledger
		runID string
	)
	if opts.ledger != "" {
		runs, err = ledger.Open(opts.ledger)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer runs.Close()

		runID, err = runs.BeginRun(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		logger = logger.With("run_id", runID)
		cfg.Logger = logger
	}

	summary, err := precompute.Compile(ctx, cfg)
	if err != nil {
		if runs != nil {
			if lerr := runs.FailRun(runID, err); lerr != nil {
				logger.Error("failed to record run failure", "error", lerr)
			}
		}
		fmt.Fprintf(stderr, "\nError: %v\n", err)
		return 1
	}

	if runs != nil {
		if err := runs.FinishRun(runID, summary); err != nil {
			fmt.Fprintf(stderr, "\nError: %v\n", err)
			return 1
		}
	}

	// Summary
	fmt.Fprintf(stdout, "\n✓ Success!\n")
	fmt.Fprintf(stdout, "  Records: %d (%d cached, %d computed, %d sentinels)\n",
		summary.Records, summary.Cached, summary.Computed, summary.Sentinels.GetCardinality())
	if summary.HasBase {
		fmt.Fprintf(stdout, "  Base divisor: %d (max %d)\n", summary.Base, summary.MaxDivisor)
	}
	fmt.Fprintf(stdout, "  Processing time: %s\n", formatElapsed(summary.Elapsed))
	fmt.Fprintf(stdout, "  Output file: %s\n", cfg.OutputPath)
	fmt.Fprintln(stdout)
	return 0
}

// formatElapsed formats a duration into a human-readable elapsed time string
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes > 0 {
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
