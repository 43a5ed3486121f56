package precompute

import "fmt"

const (
	// Number of int32 columns stored per row of the hash database
	DefaultRowWidth = 45000

	// Columns processed together per pass over the input
	DefaultWindowSize = 8000

	// Windows processed per run (32000 columns total)
	DefaultWindowCount = 4

	// Bytes per stored hash value
	hashSize = 4
)

// Layout describes how the hash matrix is stored and which part of it is processed.
type Layout struct {
	RowWidth    int
	WindowSize  int
	WindowCount int
}

// DefaultLayout returns the layout of the production hash database.
func DefaultLayout() Layout {
	return Layout{
		RowWidth:    DefaultRowWidth,
		WindowSize:  DefaultWindowSize,
		WindowCount: DefaultWindowCount,
	}
}

// Records returns the total number of records a run produces.
func (l Layout) Records() int {
	return l.WindowSize * l.WindowCount
}

// RowBytes returns the size in bytes of one stored row.
func (l Layout) RowBytes() int {
	return l.RowWidth * hashSize
}

// Validate checks that every window fits inside a row.
func (l Layout) Validate() error {
	if l.RowWidth <= 0 || l.WindowSize <= 0 || l.WindowCount <= 0 {
		return fmt.Errorf("%w: layout dimensions must be positive (row width %d, window size %d, window count %d)",
			ErrInvalidConfig, l.RowWidth, l.WindowSize, l.WindowCount)
	}
	if l.Records() > l.RowWidth {
		return fmt.Errorf("%w: %d windows of %d columns exceed row width %d",
			ErrInvalidConfig, l.WindowCount, l.WindowSize, l.RowWidth)
	}
	return nil
}
