package precompute

import (
	"context"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_AllSevens(t *testing.T) {
	dir := t.TempDir()
	input := writeMatrix(t, dir, [][]int32{filledRow(DefaultRowWidth, 7)})

	cfg := testConfig(dir, input)
	cfg.Layout = DefaultLayout()

	summary, err := Compile(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Words)
	assert.Equal(t, 32000, summary.Records)
	assert.Equal(t, 32000, summary.Computed)
	assert.Equal(t, 0, summary.Cached)
	assert.True(t, summary.HasBase)
	assert.Equal(t, int32(2), summary.Base)
	assert.Equal(t, int32(2), summary.MaxDivisor)
	assert.True(t, summary.Sentinels.IsEmpty())

	codes, err := ReadTable(cfg.OutputPath)
	require.NoError(t, err)
	require.Len(t, codes, 32000)
	for i, c := range codes {
		if c != 1 {
			t.Fatalf("record %d: got code %d, want 1", i, c)
		}
	}

	entries := readCacheEntries(t, cfg.CachePath)
	require.Len(t, entries, 32000)
	assert.Equal(t, int32(2), entries[0])
	assert.Equal(t, int32(2), entries[31999])
}

func TestCompile_ZeroRecord(t *testing.T) {
	dir := t.TempDir()
	rows := [][]int32{
		filledRow(10, 9),
		filledRow(10, 9),
	}
	rows[1][4] = 0
	input := writeMatrix(t, dir, rows)

	cfg := testConfig(dir, input)
	summary, err := Compile(context.Background(), cfg)
	require.NoError(t, err)

	codes, err := ReadTable(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 1, 1, 1, 0, 1, 1, 1, 1}, codes)

	entries := readCacheEntries(t, cfg.CachePath)
	assert.Equal(t, []int32{2, 2, 2, 2, 0, 2, 2, 2, 2}, entries)
	assert.Equal(t, []uint32{4}, summary.Sentinels.ToArray())
}

// randomRows fills rows with nonzero values, plus one zero in column 1.
func randomRows(seed uint64, words, width int) [][]int32 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	rows := make([][]int32, words)
	for r := range rows {
		rows[r] = make([]int32, width)
		for c := range rows[r] {
			v := int32(rng.Uint32())
			if v == 0 {
				v = 1
			}
			rows[r][c] = v
		}
	}
	rows[words-1][1] = 0
	return rows
}

func TestCompile_ResultsDivideNothing(t *testing.T) {
	dir := t.TempDir()
	rows := randomRows(11, 6, 10)
	input := writeMatrix(t, dir, rows)

	cfg := testConfig(dir, input)
	cfg.Threads = 4
	cfg.DivStart = 3
	_, err := Compile(context.Background(), cfg)
	require.NoError(t, err)

	entries := readCacheEntries(t, cfg.CachePath)
	require.Len(t, entries, 9)
	for record, r := range entries {
		column := make([]int32, 0, len(rows))
		for _, row := range rows {
			column = append(column, row[record])
		}
		if HasZero(column) {
			assert.Equal(t, Sentinel, r, "record %d", record)
			continue
		}
		assert.GreaterOrEqual(t, r, cfg.DivStart, "record %d", record)
		assert.False(t, dividesAny(column, r), "record %d: %d divides a value", record, r)
	}
}

func TestCompile_ResumeMatchesSinglePass(t *testing.T) {
	rows := randomRows(5, 8, 10)

	fullDir := t.TempDir()
	full := testConfig(fullDir, writeMatrix(t, fullDir, rows))
	full.Threads = 4
	full.Mode = SearchMinimal

	fullSummary, err := Compile(context.Background(), full)
	require.NoError(t, err)
	want, err := ReadTable(full.OutputPath)
	require.NoError(t, err)

	cacheBytes, err := os.ReadFile(full.CachePath)
	require.NoError(t, err)
	meta, err := os.ReadFile(full.CachePath + ".meta")
	require.NoError(t, err)

	for _, interruptedAfter := range []int{0, 1, 4, 8, 9} {
		dir := t.TempDir()
		cfg := full
		cfg.InputPath = writeMatrix(t, dir, rows)
		cfg.OutputPath = filepath.Join(dir, "out.bin")
		cfg.CachePath = filepath.Join(dir, "cache.bin")
		require.NoError(t, os.WriteFile(cfg.CachePath, cacheBytes[:interruptedAfter*4], 0644))
		require.NoError(t, os.WriteFile(cfg.CachePath+".meta", meta, 0644))

		summary, err := Compile(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, interruptedAfter, summary.Cached)
		assert.Equal(t, 9-interruptedAfter, summary.Computed)
		assert.Equal(t, fullSummary.Base, summary.Base)

		got, err := ReadTable(cfg.OutputPath)
		require.NoError(t, err)
		assert.Equal(t, want, got, "resumed after %d records", interruptedAfter)

		resumedCache, err := os.ReadFile(cfg.CachePath)
		require.NoError(t, err)
		assert.Equal(t, cacheBytes, resumedCache)
	}
}

func TestCompile_CachedEntriesAreTrusted(t *testing.T) {
	dir := t.TempDir()
	input := writeMatrix(t, dir, [][]int32{filledRow(10, 7)})
	cfg := testConfig(dir, input)

	// A headerless cache from an older run is replayed without revalidation.
	var data []byte
	for _, v := range []int32{1000, 1001, 0, 1000, 1005, 1000, 1000, 1000, 1000} {
		data = binary.NativeEndian.AppendUint32(data, uint32(v))
	}
	require.NoError(t, os.WriteFile(cfg.CachePath, data, 0644))

	summary, err := Compile(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 9, summary.Cached)
	assert.Equal(t, 0, summary.Computed)
	assert.Equal(t, int32(1000), summary.Base)

	codes, err := ReadTable(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 0, 1, 6, 1, 1, 1, 1}, codes)
}

func TestCompile_ConfigurationMismatch(t *testing.T) {
	dir := t.TempDir()
	input := writeMatrix(t, dir, [][]int32{filledRow(10, 7)})
	cfg := testConfig(dir, input)

	_, err := Compile(context.Background(), cfg)
	require.NoError(t, err)

	cfg.DivStart = 3
	_, err = Compile(context.Background(), cfg)
	assert.True(t, errors.Is(err, ErrCacheMismatch), "got %v", err)
}

func TestCompile_Cancelled(t *testing.T) {
	dir := t.TempDir()
	input := writeMatrix(t, dir, [][]int32{filledRow(10, 7)})
	cfg := testConfig(dir, input)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compile(ctx, cfg)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, readCacheEntries(t, cfg.CachePath))

	_, err = os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(err), "no table should be written")
}

func TestCompile_SearchExhausted(t *testing.T) {
	dir := t.TempDir()
	input := writeMatrix(t, dir, [][]int32{filledRow(10, 60)})
	cfg := testConfig(dir, input)
	cfg.MaxDivisor = 6

	_, err := Compile(context.Background(), cfg)
	assert.True(t, errors.Is(err, ErrSearchExhausted))
}

func TestCompile_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	input := writeMatrix(t, dir, [][]int32{filledRow(10, 7)})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "MissingInput", mutate: func(c *Config) { c.InputPath = "" }},
		{name: "MissingOutput", mutate: func(c *Config) { c.OutputPath = "" }},
		{name: "MissingCache", mutate: func(c *Config) { c.CachePath = "" }},
		{name: "NoThreads", mutate: func(c *Config) { c.Threads = 0 }},
		{name: "ZeroDivStart", mutate: func(c *Config) { c.DivStart = 0 }},
		{name: "MaxBelowStart", mutate: func(c *Config) { c.DivStart = 10; c.MaxDivisor = 5 }},
		{name: "WindowsExceedRow", mutate: func(c *Config) { c.Layout.WindowCount = 4 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(dir, input)
			tt.mutate(&cfg)

			_, err := Compile(context.Background(), cfg)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)

			_, err = os.Stat(filepath.Join(dir, "cache.bin"))
			assert.True(t, os.IsNotExist(err), "no cache should be created")
		})
	}
}
