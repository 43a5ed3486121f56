package precompute

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// Results is the fixed-size arena holding every record's raw result in
// processing order, together with the running min and max of non-sentinel
// divisors.
type Results struct {
	values    []int32
	min       int32
	max       int32
	sentinels *roaring.Bitmap
}

// NewResults allocates an arena for exactly records results.
func NewResults(records int) *Results {
	return &Results{
		values:    make([]int32, 0, records),
		min:       math.MaxInt32,
		max:       -1,
		sentinels: roaring.New(),
	}
}

// Append records the result of the next record.
func (r *Results) Append(v int32) error {
	if len(r.values) == cap(r.values) {
		return ErrArenaFull
	}
	if v == Sentinel {
		r.sentinels.Add(uint32(len(r.values)))
	} else {
		r.min = min(r.min, v)
		r.max = max(r.max, v)
	}
	r.values = append(r.values, v)
	return nil
}

// Len returns how many results have been recorded.
func (r *Results) Len() int { return len(r.values) }

// Values returns the recorded results in processing order.
func (r *Results) Values() []int32 { return r.values }

// Min returns the smallest non-sentinel divisor. ok is false when every
// record so far was a sentinel.
func (r *Results) Min() (v int32, ok bool) {
	return r.min, r.max >= 0
}

// Max returns the largest non-sentinel divisor, or -1 if there is none.
func (r *Results) Max() int32 { return r.max }

// Sentinels returns the set of record indices resolved to Sentinel.
func (r *Results) Sentinels() *roaring.Bitmap { return r.sentinels }
