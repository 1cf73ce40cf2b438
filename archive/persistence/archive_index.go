package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dfryer1193/epicarchive/archive/domain"
	"github.com/dfryer1193/epicarchive/shared/db"
)

var _ domain.ArchiveIndex = (*SQLiteArchiveIndex)(nil)

// SQLiteArchiveIndex implements domain.ArchiveIndex using SQL database (SQLite)
type SQLiteArchiveIndex struct {
	db *sql.DB
}

// NewArchiveIndex creates a new SQLiteArchiveIndex from a standard sql.DB
func NewArchiveIndex(sqlDB *sql.DB) *SQLiteArchiveIndex {
	return &SQLiteArchiveIndex{
		db: sqlDB,
	}
}

const releasePathQuery = `
	DELETE FROM archived_images WHERE path = ? AND identifier <> ?
`

const upsertArchivedImageQuery = `
	INSERT INTO archived_images (identifier, caption, image, version, captured_at, captured_on, path, size, run_id, stored_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(identifier) DO UPDATE SET
		caption = excluded.caption,
		image = excluded.image,
		version = excluded.version,
		captured_at = excluded.captured_at,
		captured_on = excluded.captured_on,
		path = excluded.path,
		size = excluded.size,
		run_id = excluded.run_id,
		stored_at = excluded.stored_at
`

// RecordImage inserts or replaces the entry of img. An entry of another identifier that
// points at the same file is dropped, since the file now holds img.
func (r *SQLiteArchiveIndex) RecordImage(ctx context.Context, img *domain.ArchivedImage) error {
	if img == nil {
		return fmt.Errorf("archived image cannot be nil")
	}

	if img.Identifier == "" {
		return fmt.Errorf("archived image identifier cannot be empty")
	}

	if img.Path == "" {
		return fmt.Errorf("archived image path cannot be empty")
	}

	storedAt := img.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now().UTC()
	}

	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		if _, err := executor.ExecContext(txCtx, releasePathQuery, img.Path, img.Identifier); err != nil {
			return fmt.Errorf("failed to release path %s: %w", img.Path, err)
		}

		_, err := executor.ExecContext(txCtx, upsertArchivedImageQuery,
			img.Identifier,
			img.Caption,
			img.Image,
			img.Version,
			img.CapturedAt.UTC().Format(domain.CapturedAtLayout),
			img.CapturedAt.UTC().Format(domain.DateLayout),
			img.Path,
			img.Size,
			img.RunID,
			storedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert archived image record: %w", err)
		}

		return nil
	})
}

const archivedImageColumns = `identifier, caption, image, version, captured_at, path, size, run_id, stored_at`

const getArchivedImageQuery = `
	SELECT ` + archivedImageColumns + `
	FROM archived_images
	WHERE identifier = ?
`

// GetImage retrieves a single entry by catalog identifier
func (r *SQLiteArchiveIndex) GetImage(ctx context.Context, identifier string) (*domain.ArchivedImage, error) {
	if identifier == "" {
		return nil, fmt.Errorf("archived image identifier cannot be empty")
	}

	executor := db.GetExecutor(ctx, r.db)
	row, err := scanArchivedImage(executor.QueryRowContext(ctx, getArchivedImageQuery, identifier))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrImageNotFound, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archived image: %w", err)
	}

	return row.toDomain()
}

const listAllArchivedImagesQuery = `
	SELECT ` + archivedImageColumns + `
	FROM archived_images
	ORDER BY captured_at ASC, identifier ASC
`

const listArchivedImagesByDateQuery = `
	SELECT ` + archivedImageColumns + `
	FROM archived_images
	WHERE captured_on = ?
	ORDER BY captured_at ASC, identifier ASC
`

// ListImages returns the entries captured on date, or every entry when date is the zero time
func (r *SQLiteArchiveIndex) ListImages(ctx context.Context, date time.Time) ([]*domain.ArchivedImage, error) {
	executor := db.GetExecutor(ctx, r.db)

	var rows *sql.Rows
	var err error
	if date.IsZero() {
		rows, err = executor.QueryContext(ctx, listAllArchivedImagesQuery)
	} else {
		rows, err = executor.QueryContext(ctx, listArchivedImagesByDateQuery, date.Format(domain.DateLayout))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list archived images: %w", err)
	}
	defer rows.Close()

	images := make([]*domain.ArchivedImage, 0)
	for rows.Next() {
		row, err := scanArchivedImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived image: %w", err)
		}

		img, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate archived images: %w", err)
	}

	return images, nil
}

// archivedImageRow is a private struct used to scan database rows
type archivedImageRow struct {
	Identifier string       `db:"identifier"`
	Caption    string       `db:"caption"`
	Image      string       `db:"image"`
	Version    string       `db:"version"`
	CapturedAt string       `db:"captured_at"`
	Path       string       `db:"path"`
	Size       int64        `db:"size"`
	RunID      string       `db:"run_id"`
	StoredAt   sql.NullTime `db:"stored_at"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArchivedImage(s rowScanner) (*archivedImageRow, error) {
	var row archivedImageRow
	err := s.Scan(
		&row.Identifier,
		&row.Caption,
		&row.Image,
		&row.Version,
		&row.CapturedAt,
		&row.Path,
		&row.Size,
		&row.RunID,
		&row.StoredAt,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// toDomain converts an archivedImageRow to a domain.ArchivedImage
func (ar *archivedImageRow) toDomain() (*domain.ArchivedImage, error) {
	capturedAt, err := time.ParseInLocation(domain.CapturedAtLayout, ar.CapturedAt, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("corrupt captured_at %q for %s: %w", ar.CapturedAt, ar.Identifier, err)
	}

	img := &domain.ArchivedImage{
		Identifier: ar.Identifier,
		Caption:    ar.Caption,
		Image:      ar.Image,
		Version:    ar.Version,
		CapturedAt: capturedAt,
		Path:       ar.Path,
		Size:       ar.Size,
		RunID:      ar.RunID,
	}

	if ar.StoredAt.Valid {
		img.StoredAt = ar.StoredAt.Time
	}

	return img, nil
}
