package domain

import (
	"context"
	"time"
)

// Fetcher retrieves a resource from the catalog by its path relative to the catalog base URL.
// Implementations return a *TransportError when the resource cannot be retrieved.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Catalog gives read access to the imagery catalog.
type Catalog interface {
	ListImagesForDate(ctx context.Context, date time.Time) ([]ImageRecord, error)
	ListRecentImages(ctx context.Context) ([]ImageRecord, error)
	ListAvailableDates(ctx context.Context) ([]time.Time, error)
	GetLastAvailableDate(ctx context.Context) (time.Time, error)
}

// Archive stores the raster of a record under root/subdir and returns the absolute path written.
type Archive interface {
	Store(ctx context.Context, record ImageRecord, subdir string, root string) (string, int64, error)
}

// ArchivedImage is the index entry of an image that has been stored in the archive.
type ArchivedImage struct {
	Identifier string
	Caption    string
	Image      string
	Version    string
	CapturedAt time.Time
	Path       string
	Size       int64
	RunID      string
	StoredAt   time.Time
}

type ArchiveIndex interface {
	// RecordImage inserts or replaces the entry for img.Identifier
	RecordImage(ctx context.Context, img *ArchivedImage) error

	// GetImage returns the entry for identifier, or ErrImageNotFound
	GetImage(ctx context.Context, identifier string) (*ArchivedImage, error)

	// ListImages returns the entries captured on date, or all entries when date is zero,
	// ordered by capture time
	ListImages(ctx context.Context, date time.Time) ([]*ArchivedImage, error)
}
