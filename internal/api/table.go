package api

import (
	"fmt"

	"divtable/internal/ledger"
	"divtable/internal/precompute"
)

// Table is a compiled divisor table together with the base it was rebased against.
type Table struct {
	Codes   []uint16
	Base    int32
	HasBase bool
	RunID   string
}

// Divisor returns the raw result of record index: precompute.Sentinel or a divisor.
func (t *Table) Divisor(index int) int32 {
	return precompute.Decode(t.Codes[index], t.Base)
}

// Admits reports whether hash is consistent with record index. Sentinel
// records admit every hash; otherwise the record's divisor must not divide it.
func (t *Table) Admits(index int, hash int32) bool {
	d := t.Divisor(index)
	if d == precompute.Sentinel {
		return true
	}
	return int64(hash)%int64(d) != 0
}

// Sentinels counts records resolved to the sentinel.
func (t *Table) Sentinels() int {
	n := 0
	for _, c := range t.Codes {
		if c == 0 {
			n++
		}
	}
	return n
}

// LoadTable reads the table at path and takes its base from the latest
// completed ledger run that wrote it.
func LoadTable(path string, l *ledger.Ledger) (*Table, error) {
	codes, err := precompute.ReadTable(path)
	if err != nil {
		return nil, err
	}

	run, err := l.LatestForOutput(path)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("no completed run in ledger for %s", path)
	}
	if run.Records != len(codes) {
		return nil, fmt.Errorf("table %s has %d records, ledger run %s recorded %d", path, len(codes), run.ID, run.Records)
	}

	return &Table{
		Codes:   codes,
		Base:    run.Base,
		HasBase: run.HasBase,
		RunID:   run.ID,
	}, nil
}

// LoadTableWithBase reads the table at path using an explicitly known base.
func LoadTableWithBase(path string, base int32) (*Table, error) {
	codes, err := precompute.ReadTable(path)
	if err != nil {
		return nil, err
	}
	return &Table{Codes: codes, Base: base, HasBase: true}, nil
}
