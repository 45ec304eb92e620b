package store

import (
	"context"

	"github.com/rcliao/devplan/internal/model"
)

// ExportAll returns every artifact with its media, oldest first.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectArtifact+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, ioError("export", "", err)
	}
	defer rows.Close()

	var records []model.ArtifactRecord
	for rows.Next() {
		rec, err := scanArtifact(rows, true)
		if err != nil {
			return nil, ioError("export", "", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("export", "", err)
	}
	return records, nil
}

// Import stores exported artifacts and returns how many were new. Imported
// artifacts get fresh IDs and timestamps. An artifact whose fingerprint is
// already stored with different bytes stops the import with a collision.
func (s *SQLiteStore) Import(ctx context.Context, records []model.ArtifactRecord) (int, error) {
	imported := 0
	for i := range records {
		existed, err := s.Has(ctx, records[i].Fingerprint)
		if err != nil {
			return imported, err
		}
		if _, err := s.Store(ctx, &records[i]); err != nil {
			return imported, err
		}
		if !existed {
			imported++
		}
	}
	return imported, nil
}
