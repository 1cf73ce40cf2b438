package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dfryer1193/epicarchive/archive/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AcquisitionService lists catalog images and downloads them into the archive.
// Downloads run one record at a time in catalog order.
type AcquisitionService struct {
	catalog domain.Catalog
	archive domain.Archive
	index   domain.ArchiveIndex
	now     func() time.Time
}

// NewAcquisitionService wires a catalog and an archive together. index may be nil, in which
// case stored images are not recorded.
func NewAcquisitionService(catalog domain.Catalog, archive domain.Archive, index domain.ArchiveIndex) *AcquisitionService {
	return &AcquisitionService{
		catalog: catalog,
		archive: archive,
		index:   index,
		now:     time.Now,
	}
}

// ResolveDate parses explicit as YYYY-MM-DD, or asks the catalog for its most recent date when
// explicit is empty.
func (s *AcquisitionService) ResolveDate(ctx context.Context, explicit string) (time.Time, error) {
	explicit = strings.TrimSpace(explicit)
	if explicit == "" {
		date, err := s.catalog.GetLastAvailableDate(ctx)
		if err != nil {
			return time.Time{}, fmt.Errorf("could not determine the last available date: %w", err)
		}
		return date, nil
	}

	date, err := time.ParseInLocation(domain.DateLayout, explicit, time.UTC)
	if err != nil {
		return time.Time{}, &domain.ParseError{Input: explicit, Err: err}
	}
	return date, nil
}

// ListImagesForDate returns the catalog entries for date, in catalog order.
func (s *AcquisitionService) ListImagesForDate(ctx context.Context, date time.Time) ([]domain.ImageRecord, error) {
	return s.catalog.ListImagesForDate(ctx, date)
}

// ListRecentImages returns the entries of the catalog's most recent day.
func (s *AcquisitionService) ListRecentImages(ctx context.Context) ([]domain.ImageRecord, error) {
	return s.catalog.ListRecentImages(ctx)
}

// ListAvailableDates returns every date the catalog has images for, oldest first.
func (s *AcquisitionService) ListAvailableDates(ctx context.Context) ([]time.Time, error) {
	return s.catalog.ListAvailableDates(ctx)
}

// DownloadForDate stores every image of date under root/subdir and returns the written paths in
// catalog order. A date without images yields an empty slice and no error. The first failure stops
// the run; files written before it stay on disk.
func (s *AcquisitionService) DownloadForDate(ctx context.Context, date time.Time, subdir string, root string) ([]string, error) {
	return s.DownloadForDateWithProgress(ctx, date, subdir, root, nil)
}

// DownloadForDateWithProgress behaves like DownloadForDate and calls onStored, when set, with each
// path as soon as it is stored and indexed.
func (s *AcquisitionService) DownloadForDateWithProgress(ctx context.Context, date time.Time, subdir string, root string, onStored func(path string)) ([]string, error) {
	day := date.Format(domain.DateLayout)

	records, err := s.catalog.ListImagesForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list images for %s: %w", day, err)
	}

	paths := make([]string, 0, len(records))
	if len(records) == 0 {
		log.Info().Str("date", day).Msg("No images available")
		return paths, nil
	}

	runID := uuid.NewString()
	log.Info().Str("runID", runID).Str("date", day).Int("images", len(records)).Msg("Starting download")

	for i, record := range records {
		path, size, err := s.archive.Store(ctx, record, subdir, root)
		if err != nil {
			log.Error().Err(err).Str("runID", runID).Str("image", record.Image()).Msg("Failed to store image")
			return paths, fmt.Errorf("failed to store image %d/%d (%s): %w", i+1, len(records), record.Image(), err)
		}

		if err := s.recordStored(ctx, record, path, size, runID); err != nil {
			return paths, err
		}

		log.Info().Str("runID", runID).Str("path", path).Msg("Stored image")
		paths = append(paths, path)
		if onStored != nil {
			onStored(path)
		}
	}

	log.Info().Str("runID", runID).Str("date", day).Int("images", len(paths)).Msg("Download finished")

	return paths, nil
}

func (s *AcquisitionService) recordStored(ctx context.Context, record domain.ImageRecord, path string, size int64, runID string) error {
	if s.index == nil {
		return nil
	}

	err := s.index.RecordImage(ctx, &domain.ArchivedImage{
		Identifier: record.Identifier(),
		Caption:    record.Caption(),
		Image:      record.Image(),
		Version:    record.Version(),
		CapturedAt: record.CapturedAt(),
		Path:       path,
		Size:       size,
		RunID:      runID,
		StoredAt:   s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to index stored image %s: %w", record.Image(), err)
	}

	return nil
}
