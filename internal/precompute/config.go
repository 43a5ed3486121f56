package precompute

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/zeebo/xxh3"
)

// Config holds everything a compile run needs.
type Config struct {
	InputPath  string
	OutputPath string
	CachePath  string

	// Threads is the number of workers raced per computed record.
	Threads int
	// DivStart is the smallest divisor considered.
	DivStart int32
	// MaxDivisor bounds the search; zero leaves it unbounded.
	MaxDivisor int32
	Mode       SearchMode
	Durability Durability
	Layout     Layout

	// Logger receives progress and warnings. When nil, output is discarded.
	Logger *slog.Logger
}

// Validate checks the run parameters before any file is touched.
func (c Config) Validate() error {
	switch {
	case c.InputPath == "":
		return fmt.Errorf("%w: input database path is required", ErrInvalidConfig)
	case c.OutputPath == "":
		return fmt.Errorf("%w: output database path is required", ErrInvalidConfig)
	case c.CachePath == "":
		return fmt.Errorf("%w: cache path is required", ErrInvalidConfig)
	case c.Threads < 1:
		return fmt.Errorf("%w: threads must be at least 1, got %d", ErrInvalidConfig, c.Threads)
	case c.DivStart < 1:
		return fmt.Errorf("%w: divisor start must be at least 1, got %d", ErrInvalidConfig, c.DivStart)
	case c.MaxDivisor < 0:
		return fmt.Errorf("%w: max divisor must not be negative, got %d", ErrInvalidConfig, c.MaxDivisor)
	case c.MaxDivisor > 0 && c.MaxDivisor < c.DivStart:
		return fmt.Errorf("%w: max divisor %d is below divisor start %d", ErrInvalidConfig, c.MaxDivisor, c.DivStart)
	}
	return c.Layout.Validate()
}

func (c Config) searchOptions() SearchOptions {
	return SearchOptions{
		Threads: c.Threads,
		Start:   c.DivStart,
		Max:     c.MaxDivisor,
		Mode:    c.Mode,
	}
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return discardLogger()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Fingerprint identifies the configuration a cache's entries are only valid under.
func Fingerprint(words int, layout Layout, divStart int32, mode SearchMode) uint64 {
	buf := make([]byte, 0, 48)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(words))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(layout.RowWidth))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(layout.WindowSize))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(layout.WindowCount))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(divStart))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(mode))
	return xxh3.Hash(buf)
}
