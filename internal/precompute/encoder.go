package precompute

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
)

// Rebase maps a raw result to its table code: Sentinel becomes 0 and any
// divisor v becomes v - base + 1.
func Rebase(v, base int32) (uint16, error) {
	if v == Sentinel {
		return 0, nil
	}
	code := int64(v) - int64(base) + 1
	if code < 1 || code > math.MaxUint16 {
		return 0, &RebaseOverflowError{Record: -1, Divisor: v, Base: base}
	}
	return uint16(code), nil
}

// Decode reverses Rebase for a table produced with the given base.
func Decode(code uint16, base int32) int32 {
	if code == 0 {
		return Sentinel
	}
	return int32(int64(code) + int64(base) - 1)
}

// Encode rebases every recorded result against the global minimum. It must
// only run once all records are known. A divisor outside the 16-bit band
// above the minimum breaks the table's precondition and panics with a
// *RebaseOverflowError.
func Encode(r *Results) []uint16 {
	base, _ := r.Min()
	codes := make([]uint16, r.Len())
	for i, v := range r.Values() {
		code, err := Rebase(v, base)
		if err != nil {
			var overflow *RebaseOverflowError
			if errors.As(err, &overflow) {
				overflow.Record = i
			}
			panic(err)
		}
		codes[i] = code
	}
	return codes
}

// WriteTable writes codes as a flat sequence of native-endian uint16 values.
func WriteTable(path string, codes []uint16) error {
	f, err := os.Create(path)
	if err != nil {
		return ioErr(RoleOutputDB, OpCreate, path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var buf [2]byte
	for _, code := range codes {
		binary.NativeEndian.PutUint16(buf[:], code)
		if _, err := w.Write(buf[:]); err != nil {
			return ioErr(RoleOutputDB, OpWrite, path, err)
		}
	}

	if err := w.Flush(); err != nil {
		return ioErr(RoleOutputDB, OpWrite, path, err)
	}
	if err := f.Close(); err != nil {
		return ioErr(RoleOutputDB, OpWrite, path, err)
	}
	return nil
}

// ReadTable loads a table written by WriteTable.
func ReadTable(path string) ([]uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr(RoleOutputDB, OpOpen, path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(bufio.NewReader(f))
	if err != nil {
		return nil, ioErr(RoleOutputDB, OpRead, path, err)
	}
	if len(data)%2 != 0 {
		return nil, ioErr(RoleOutputDB, OpRead, path, io.ErrUnexpectedEOF)
	}

	codes := make([]uint16, len(data)/2)
	for i := range codes {
		codes[i] = binary.NativeEndian.Uint16(data[i*2:])
	}
	return codes, nil
}
