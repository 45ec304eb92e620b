package store

import (
	"context"
	"os"
)

var _ Store = (*SQLiteStore)(nil)

// Stats holds database statistics.
type Stats struct {
	DBPath         string        `json:"db_path"`
	DBSizeBytes    int64         `json:"db_size_bytes"`
	TotalArtifacts int           `json:"total_artifacts"`
	TotalBytes     int64         `json:"total_bytes"`
	TotalAccesses  int64         `json:"total_accesses"`
	Formats        []FormatStats `json:"formats"`
}

// FormatStats holds per format and diagram counts.
type FormatStats struct {
	Format  string `json:"format"`
	Diagram string `json:"diagram"`
	Count   int    `json:"count"`
	Bytes   int64  `json:"bytes"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0), COALESCE(SUM(access_count), 0) FROM artifacts`).
		Scan(&st.TotalArtifacts, &st.TotalBytes, &st.TotalAccesses)
	if err != nil {
		return st, ioError("stats", "", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT format, diagram, COUNT(*) AS cnt, SUM(size)
		FROM artifacts
		GROUP BY format, diagram ORDER BY cnt DESC, format, diagram`)
	if err != nil {
		return st, ioError("stats", "", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f FormatStats
		if err := rows.Scan(&f.Format, &f.Diagram, &f.Count, &f.Bytes); err != nil {
			return st, ioError("stats", "", err)
		}
		st.Formats = append(st.Formats, f)
	}
	return st, rows.Err()
}
