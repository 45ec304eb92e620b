package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/rcliao/devplan/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	flight singleflight.Group
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func newID() string {
	return ulid.Make().String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		fingerprint      TEXT PRIMARY KEY,
		id               TEXT NOT NULL UNIQUE,
		format           TEXT NOT NULL,
		diagram          TEXT NOT NULL,
		mime_type        TEXT NOT NULL,
		size             INTEGER NOT NULL,
		media            BLOB NOT NULL,
		created_at       TEXT NOT NULL,
		access_count     INTEGER NOT NULL DEFAULT 0,
		last_accessed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_artifacts_format ON artifacts(format, diagram);
	`
	_, err := s.db.Exec(schema)
	return err
}

type flightResult struct {
	rec     *model.ArtifactRecord
	created bool
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, fingerprint string, produce Producer) (*model.ArtifactRecord, bool, error) {
	rec, err := s.Get(ctx, fingerprint)
	if err == nil {
		return rec, false, nil
	}
	if !IsKind(err, NotFound) {
		return nil, false, err
	}

	// The flight outlives any single caller: a waiter that gives up does not
	// cancel the render other callers are waiting on. Only the caller whose
	// function ran reports created; ran is read after the result arrives.
	var ran bool
	ch := s.flight.DoChan(fingerprint, func() (any, error) {
		ran = true
		fctx := context.WithoutCancel(ctx)
		if rec, err := s.Get(fctx, fingerprint); err == nil {
			return flightResult{rec: rec}, nil
		}
		rec, err := produce(fctx)
		if err != nil {
			return nil, err
		}
		rec.Fingerprint = fingerprint
		stored, err := s.Store(fctx, rec)
		if err != nil {
			return nil, err
		}
		return flightResult{rec: stored, created: true}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		fr := res.Val.(flightResult)
		out := *fr.rec
		return &out, fr.created && ran, nil
	}
}

func (s *SQLiteStore) Store(ctx context.Context, rec *model.ArtifactRecord) (*model.ArtifactRecord, error) {
	fp := rec.Fingerprint
	if fp == "" {
		return nil, ioError("store", fp, errors.New("empty fingerprint"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ioError("store", fp, err)
	}
	defer tx.Rollback()

	existing, err := scanArtifact(tx.QueryRowContext(ctx, selectArtifact+` WHERE fingerprint = ?`, fp), true)
	switch {
	case err == nil:
		if !bytes.Equal(existing.Media, rec.Media) {
			return nil, &Error{Kind: FingerprintCollision, Op: "store", Fingerprint: fp}
		}
		return &existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, ioError("store", fp, err)
	}

	now := time.Now().UTC()
	out := *rec
	out.ID = newID()
	out.Size = len(rec.Media)
	out.CreatedAt = now
	out.AccessCount = 0
	out.LastAccessedAt = nil
	if out.MimeType == "" {
		out.MimeType = out.Format.MimeType()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO artifacts (fingerprint, id, format, diagram, mime_type, size, media, created_at, access_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		fp, out.ID, string(out.Format), string(out.Diagram), out.MimeType, out.Size, out.Media,
		now.Format(time.RFC3339))
	if err != nil {
		return nil, ioError("insert artifact", fp, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, ioError("store", fp, err)
	}
	return &out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (*model.ArtifactRecord, error) {
	rec, err := scanArtifact(s.db.QueryRowContext(ctx, selectArtifact+` WHERE fingerprint = ?`, fingerprint), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Kind: NotFound, Op: "get", Fingerprint: fingerprint}
	}
	if err != nil {
		return nil, ioError("get", fingerprint, err)
	}

	// Access tracking is best effort; a failed update does not fail the read.
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET access_count = access_count + 1, last_accessed_at = ? WHERE fingerprint = ?`,
		now.Format(time.RFC3339), fingerprint); err == nil {
		rec.AccessCount++
		rec.LastAccessedAt = &now
	}
	return &rec, nil
}

func (s *SQLiteStore) Has(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM artifacts WHERE fingerprint = ?`, fingerprint).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, ioError("has", fingerprint, err)
	}
	return true, nil
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.ArtifactRecord, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	var where []string
	var args []interface{}
	if p.Format != "" {
		where = append(where, "format = ?")
		args = append(args, string(p.Format))
	}
	if p.Diagram != "" {
		where = append(where, "diagram = ?")
		args = append(args, string(p.Diagram))
	}

	query := selectMetadata
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ioError("list", "", err)
	}
	defer rows.Close()

	var records []model.ArtifactRecord
	for rows.Next() {
		rec, err := scanArtifact(rows, false)
		if err != nil {
			return nil, ioError("list", "", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("list", "", err)
	}
	return records, nil
}

func (s *SQLiteStore) Rm(ctx context.Context, fingerprint string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return ioError("rm", fingerprint, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &Error{Kind: NotFound, Op: "rm", Fingerprint: fingerprint}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const (
	metadataColumns = `fingerprint, id, format, diagram, mime_type, size, created_at, access_count, last_accessed_at`
	selectMetadata  = `SELECT ` + metadataColumns + ` FROM artifacts`
	selectArtifact  = `SELECT ` + metadataColumns + `, media FROM artifacts`
)

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArtifact(row scanner, withMedia bool) (model.ArtifactRecord, error) {
	var a model.ArtifactRecord
	var format, diagram, createdAt string
	var lastAccessed sql.NullString

	dest := []interface{}{
		&a.Fingerprint, &a.ID, &format, &diagram, &a.MimeType, &a.Size,
		&createdAt, &a.AccessCount, &lastAccessed,
	}
	if withMedia {
		dest = append(dest, &a.Media)
	}
	if err := row.Scan(dest...); err != nil {
		return a, err
	}

	a.Format = model.Format(format)
	a.Diagram = model.Diagram(diagram)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339, lastAccessed.String)
		a.LastAccessedAt = &t
	}
	return a, nil
}
