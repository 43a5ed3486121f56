package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// Run is a completed compile run as stored in the ledger.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	OutputPath string
	Words      int
	Records    int
	Cached     int
	Computed   int

	// Base is only meaningful when HasBase is true.
	Base      int32
	HasBase   bool
	MaxFound  int32
	Sentinels *roaring.Bitmap
}

// LatestForOutput fetches the most recent completed run that wrote outputPath.
// It returns nil when there is none.
func (l *Ledger) LatestForOutput(outputPath string) (*Run, error) {
	query := `SELECT id, started_at, finished_at, output_path, words_count, records, cached, computed,
		sentinels, base_div, max_found
		FROM runs WHERE output_path = ? AND status = ?
		ORDER BY started_at DESC, rowid DESC LIMIT 1`

	var (
		r         Run
		finished  sql.NullTime
		sentinels []byte
		base      sql.NullInt64
	)
	err := l.db.QueryRow(query, outputPath, StatusCompleted).Scan(
		&r.ID, &r.StartedAt, &finished, &r.OutputPath, &r.Words, &r.Records, &r.Cached, &r.Computed,
		&sentinels, &base, &r.MaxFound,
	)
	if err == sql.ErrNoRows {
		return nil, nil // No completed run
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	r.FinishedAt = finished.Time
	if base.Valid {
		r.Base = int32(base.Int64)
		r.HasBase = true
	}

	r.Sentinels = roaring.New()
	if len(sentinels) > 0 {
		if err := r.Sentinels.UnmarshalBinary(sentinels); err != nil {
			return nil, fmt.Errorf("failed to decode sentinel set of run %s: %w", r.ID, err)
		}
	}

	return &r, nil
}
