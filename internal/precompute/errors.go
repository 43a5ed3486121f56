package precompute

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when run parameters are out of range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCacheMismatch is returned when a cache was produced by a different run configuration.
	ErrCacheMismatch = errors.New("cache was written by a different configuration")

	// ErrSearchExhausted is returned when no candidate up to the divisor bound qualifies.
	ErrSearchExhausted = errors.New("divisor search exhausted")

	// ErrArenaFull is returned when more results are recorded than the run has records.
	ErrArenaFull = errors.New("results arena is full")
)

// FileRole names which file an I/O error concerns.
type FileRole string

const (
	RoleInputDB  FileRole = "input-db"
	RoleOutputDB FileRole = "output-db"
	RoleCache    FileRole = "cache"
)

// Op names the failed file operation.
type Op string

const (
	OpOpen   Op = "open"
	OpMeta   Op = "meta"
	OpRead   Op = "read"
	OpSeek   Op = "seek"
	OpWrite  Op = "write"
	OpCreate Op = "create"
	OpSync   Op = "sync"
)

// IOError is a failed operation on one of the run's files.
//
// The underlying error can be accessed via errors.Unwrap.
type IOError struct {
	Role FileRole
	Op   Op
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Role, e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioErr(role FileRole, op Op, path string, err error) error {
	return &IOError{Role: role, Op: op, Path: path, Err: err}
}

// RebaseOverflowError reports a divisor that does not fit the 16-bit table
// once rebased against the global minimum.
type RebaseOverflowError struct {
	Record  int
	Divisor int32
	Base    int32
}

func (e *RebaseOverflowError) Error() string {
	return fmt.Sprintf("record %d: divisor %d rebased against %d exceeds 65535",
		e.Record, e.Divisor, e.Base)
}
