package precompute

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// smallLayout keeps fixtures tiny: 3 windows of 3 records out of 10 columns.
func smallLayout() Layout {
	return Layout{RowWidth: 10, WindowSize: 3, WindowCount: 3}
}

// writeMatrix stores rows as a hash database and returns its path.
func writeMatrix(t *testing.T, dir string, rows [][]int32) string {
	t.Helper()

	var data []byte
	for _, row := range rows {
		for _, v := range row {
			data = binary.NativeEndian.AppendUint32(data, uint32(v))
		}
	}

	path := filepath.Join(dir, "hashes.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// filledRow returns a row of width copies of v.
func filledRow(width int, v int32) []int32 {
	row := make([]int32, width)
	for i := range row {
		row[i] = v
	}
	return row
}

// readCacheEntries decodes every whole entry in a cache file.
func readCacheEntries(t *testing.T, path string) []int32 {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	entries := make([]int32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		entries = append(entries, int32(binary.NativeEndian.Uint32(data[i:])))
	}
	return entries
}

func testConfig(dir, input string) Config {
	return Config{
		InputPath:  input,
		OutputPath: filepath.Join(dir, "out.bin"),
		CachePath:  filepath.Join(dir, "cache.bin"),
		Threads:    1,
		DivStart:   1,
		Layout:     smallLayout(),
	}
}
