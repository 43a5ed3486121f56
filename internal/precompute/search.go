package precompute

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Sentinel is the result recorded for a record holding a zero hash.
const Sentinel int32 = 0

// Candidates claimed between context checks in a search worker
const cancelCheckInterval = 1024

// SearchMode selects how racing workers settle on a divisor.
type SearchMode int

const (
	// SearchFirstFound returns whichever passing candidate a worker stores
	// last once the found flag is up. It is not necessarily the smallest.
	SearchFirstFound SearchMode = iota

	// SearchMinimal keeps testing every candidate below the best found so far
	// and only ever replaces the result with a smaller one.
	SearchMinimal
)

func (m SearchMode) String() string {
	switch m {
	case SearchFirstFound:
		return "first-found"
	case SearchMinimal:
		return "minimal"
	default:
		return fmt.Sprintf("SearchMode(%d)", int(m))
	}
}

// SearchOptions configures one divisor search.
type SearchOptions struct {
	// Threads is the number of workers raced per record. Values below 1 mean 1.
	Threads int
	// Start is the first candidate tried. It must be at least 1.
	Start int32
	// Max is the largest candidate tried. Zero means math.MaxInt32.
	Max int32
	Mode SearchMode
}

func (o SearchOptions) limit() int64 {
	if o.Max <= 0 {
		return math.MaxInt32
	}
	return int64(o.Max)
}

// HasZero reports whether any value is exactly zero.
func HasZero(values []int32) bool {
	for _, v := range values {
		if v == 0 {
			return true
		}
	}
	return false
}

// FindDivisor computes a record's result: Sentinel when a value is zero,
// otherwise a divisor >= opts.Start that evenly divides none of values.
func FindDivisor(ctx context.Context, values []int32, opts SearchOptions) (int32, error) {
	if opts.Start < 1 {
		return 0, fmt.Errorf("%w: divisor start %d must be at least 1", ErrInvalidConfig, opts.Start)
	}
	if HasZero(values) {
		return Sentinel, nil
	}
	return searchDivisor(ctx, values, opts)
}

// searchState is shared by the workers of a single record and discarded after.
type searchState struct {
	values []int32
	limit  int64
	mode   SearchMode

	next   atomic.Int64
	found  atomic.Bool
	result atomic.Int64
}

func searchDivisor(ctx context.Context, values []int32, opts SearchOptions) (int32, error) {
	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}

	st := &searchState{
		values: values,
		limit:  opts.limit(),
		mode:   opts.Mode,
	}
	st.next.Store(int64(opts.Start))
	st.result.Store(math.MaxInt64)

	var eg errgroup.Group
	for w := 0; w < threads; w++ {
		eg.Go(func() error {
			return st.work(ctx)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}

	if !st.found.Load() {
		return 0, fmt.Errorf("%w: no candidate in [%d, %d] divides none of %d values",
			ErrSearchExhausted, opts.Start, st.limit, len(values))
	}
	return int32(st.result.Load()), nil
}

func (st *searchState) work(ctx context.Context) error {
	for n := 0; ; n++ {
		if st.mode == SearchFirstFound && st.found.Load() {
			return nil
		}
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		c := st.next.Add(1) - 1
		if c > st.limit {
			return nil
		}
		if st.mode == SearchMinimal && c >= st.result.Load() {
			return nil
		}

		if dividesAny(st.values, int32(c)) {
			continue
		}

		if st.mode == SearchMinimal {
			for {
				best := st.result.Load()
				if c >= best || st.result.CompareAndSwap(best, c) {
					break
				}
			}
		} else {
			st.result.Store(c)
		}
		st.found.Store(true)
		return nil
	}
}

// dividesAny reports whether d evenly divides any value. d is always positive,
// so the remainder never hits the MinInt32 / -1 case.
func dividesAny(values []int32, d int32) bool {
	for _, v := range values {
		if v%d == 0 {
			return true
		}
	}
	return false
}
