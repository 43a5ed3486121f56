package precompute

import (
	"encoding/binary"
	"io"
	"os"
)

// MatrixReader streams column windows out of the hash database without
// holding the whole matrix in memory. Only one row is buffered at a time.
type MatrixReader struct {
	f      *os.File
	path   string
	layout Layout
	size   int64
	words  int
	row    []byte
}

// OpenMatrix opens the hash database at path and derives its row count from
// the file size. Trailing bytes that do not form a whole row are ignored.
func OpenMatrix(path string, layout Layout) (*MatrixReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr(RoleInputDB, OpOpen, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioErr(RoleInputDB, OpMeta, path, err)
	}

	size := info.Size()
	adviseSequential(f, size)

	return &MatrixReader{
		f:      f,
		path:   path,
		layout: layout,
		size:   size,
		words:  int(size / int64(layout.RowBytes())),
		row:    make([]byte, layout.RowBytes()),
	}, nil
}

// Words returns the number of rows (words_count) in the database.
func (m *MatrixReader) Words() int { return m.words }

// Size returns the database file size in bytes.
func (m *MatrixReader) Size() int64 { return m.size }

// WindowLen returns the number of values ReadWindow fills.
func (m *MatrixReader) WindowLen() int {
	return m.words * m.layout.WindowSize
}

// ReadWindow fills dst row-major with columns [window*WindowSize, (window+1)*WindowSize)
// of every row: dst[row*WindowSize+col]. The whole file is re-read from the
// start on every call.
func (m *MatrixReader) ReadWindow(window int, dst []int32) error {
	ws := m.layout.WindowSize
	if len(dst) < m.WindowLen() {
		return io.ErrShortBuffer
	}

	if _, err := m.f.Seek(0, io.SeekStart); err != nil {
		return ioErr(RoleInputDB, OpSeek, m.path, err)
	}

	offset := window * ws * hashSize
	end := offset + ws*hashSize
	if end > len(m.row) {
		return ioErr(RoleInputDB, OpSeek, m.path, io.ErrUnexpectedEOF)
	}

	for r := 0; r < m.words; r++ {
		if _, err := io.ReadFull(m.f, m.row); err != nil {
			return ioErr(RoleInputDB, OpRead, m.path, err)
		}

		out := dst[r*ws : (r+1)*ws]
		for c := range out {
			p := offset + c*hashSize
			out[c] = int32(binary.NativeEndian.Uint32(m.row[p : p+hashSize]))
		}
	}

	return nil
}

// Close releases the underlying file.
func (m *MatrixReader) Close() error {
	return m.f.Close()
}

// Column copies record col's values (one per row) out of a window buffer.
func Column(window []int32, words, windowSize, col int, dst []int32) []int32 {
	dst = dst[:0]
	for r := 0; r < words; r++ {
		dst = append(dst, window[r*windowSize+col])
	}
	return dst
}
