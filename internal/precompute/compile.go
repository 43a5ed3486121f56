package precompute

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/time/rate"
)

const (
	// Records between progress reports
	progressEvery = 50

	// Longest gap between progress reports while records are slow to resolve
	progressInterval = 10 * time.Second
)

// Summary describes a finished compile run.
type Summary struct {
	InputSize   int64
	Words       int
	Fingerprint uint64

	Records  int
	Cached   int
	Computed int

	// Base is the global minimum divisor the table is rebased against.
	// HasBase is false when every record was a sentinel.
	Base       int32
	HasBase    bool
	MaxDivisor int32
	Sentinels  *roaring.Bitmap

	Elapsed time.Duration
}

// Compile resolves every record of the input database, reusing cached
// results, and writes the rebased 16-bit table to cfg.OutputPath.
//
// Records are processed strictly in order. Each computed result is appended
// to the cache before the next record starts, so an interrupted run resumes
// where it stopped.
func Compile(ctx context.Context, cfg Config) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger()
	startTime := time.Now()
	layout := cfg.Layout

	in, err := OpenMatrix(cfg.InputPath, layout)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	fingerprint := Fingerprint(in.Words(), layout, cfg.DivStart, cfg.Mode)
	cache, err := OpenCache(cfg.CachePath, fingerprint, CacheOptions{
		Durability: cfg.Durability,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	defer cache.Close()

	logger.Info("running",
		"input", cfg.InputPath,
		"size", in.Size(),
		"words", in.Words(),
		"output", cfg.OutputPath,
		"cache", cfg.CachePath,
		"cached_entries", cache.Pending(),
		"threads", cfg.Threads,
		"div_start", cfg.DivStart,
		"mode", cfg.Mode,
	)

	results := NewResults(layout.Records())
	window := make([]int32, in.WindowLen())
	column := make([]int32, 0, in.Words())
	opts := cfg.searchOptions()
	progress := rate.Sometimes{Every: progressEvery, Interval: progressInterval}

	for w := 0; w < layout.WindowCount; w++ {
		base, _ := results.Min()
		logger.Info("reading window",
			"window", w,
			"windows", layout.WindowCount,
			"size", layout.WindowSize,
			"min", base,
			"max", results.Max(),
			"resolved", results.Len(),
		)

		// A window already fully covered by the cache needs no input values.
		if cache.Pending() < int64(layout.WindowSize) {
			if err := in.ReadWindow(w, window); err != nil {
				return nil, err
			}
		}

		for col := 0; col < layout.WindowSize; col++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			progress.Do(func() {
				base, _ := results.Min()
				logger.Info("progress",
					"window", w,
					"record", w*layout.WindowSize+col,
					"records", layout.Records(),
					"min", base,
					"max", results.Max(),
					"cached", cache.Replayed(),
					"computed", cache.Appended(),
				)
			})

			v, ok, err := cache.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				column = Column(window, in.Words(), layout.WindowSize, col, column)
				v, err = FindDivisor(ctx, column, opts)
				if err != nil {
					return nil, fmt.Errorf("record %d: %w", w*layout.WindowSize+col, err)
				}
				if err := cache.Append(v); err != nil {
					return nil, err
				}
			}

			if err := results.Append(v); err != nil {
				return nil, err
			}
		}
	}

	base, hasBase := results.Min()
	logger.Info("overall base divisor", "base", base, "max", results.Max(), "sentinels", results.Sentinels().GetCardinality())

	if err := WriteTable(cfg.OutputPath, Encode(results)); err != nil {
		return nil, err
	}

	return &Summary{
		InputSize:   in.Size(),
		Words:       in.Words(),
		Fingerprint: fingerprint,
		Records:     results.Len(),
		Cached:      cache.Replayed(),
		Computed:    cache.Appended(),
		Base:        base,
		HasBase:     hasBase,
		MaxDivisor:  results.Max(),
		Sentinels:   results.Sentinels(),
		Elapsed:     time.Since(startTime),
	}, nil
}
