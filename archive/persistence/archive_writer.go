package persistence

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dfryer1193/epicarchive/archive/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var _ domain.Archive = (*ArchiveWriter)(nil)

const (
	MinYear = 1960
	MaxYear = 2040

	// MinImageSize is the smallest payload accepted as an image; anything shorter is an
	// error page or a truncated transfer.
	MinImageSize = 10000

	dirPerm  = 0700
	filePerm = 0644
)

// ArchiveWriter downloads catalog rasters and stores them in a date-partitioned tree.
type ArchiveWriter struct {
	fetcher domain.Fetcher
	fs      afero.Fs
}

// NewArchiveWriter creates an ArchiveWriter that downloads through fetcher and writes to fs.
func NewArchiveWriter(fetcher domain.Fetcher, fs afero.Fs) *ArchiveWriter {
	return &ArchiveWriter{
		fetcher: fetcher,
		fs:      fs,
	}
}

// Store downloads the PNG of record and writes it to root/subdir/YYYYMMDD/<image>.png,
// replacing any file already there. It returns the absolute path written and its size in bytes.
// Nothing touches the filesystem unless the payload passed validation.
func (w *ArchiveWriter) Store(ctx context.Context, record domain.ImageRecord, subdir string, root string) (string, int64, error) {
	capturedAt := record.CapturedAt()
	year, month, day := capturedAt.Date()

	if year < MinYear || year > MaxYear {
		return "", 0, &domain.RangeError{Year: year, Min: MinYear, Max: MaxYear}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", 0, fmt.Errorf("failed to resolve archive root %s: %w", root, err)
	}

	filename := record.Image() + ".png"
	targetDir := ArchiveDir(absRoot, subdir, year, int(month), day)
	remotePath := fmt.Sprintf("archive/natural/%04d/%02d/%02d/png/%s", year, int(month), day, filename)

	log.Debug().Str("image", record.Image()).Str("dir", targetDir).Msg("Downloading image")

	content, err := w.fetcher.Fetch(ctx, remotePath)
	if err != nil {
		return "", 0, handleFetchError(remotePath, err)
	}

	if len(content) < MinImageSize {
		return "", 0, &domain.IntegrityError{Image: record.Image(), Size: len(content), Min: MinImageSize}
	}

	log.Debug().Str("image", record.Image()).Int("bytes", len(content)).Str("dir", targetDir).Msg("Downloaded image")

	if err := w.fs.MkdirAll(targetDir, dirPerm); err != nil {
		return "", 0, fmt.Errorf("failed to create archive directory %s: %w", targetDir, err)
	}

	targetPath := filepath.Join(targetDir, filename)
	if err := afero.WriteFile(w.fs, targetPath, content, filePerm); err != nil {
		return "", 0, fmt.Errorf("failed to write image file %s: %w", targetPath, err)
	}

	return targetPath, int64(len(content)), nil
}

func handleFetchError(path string, err error) error {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	return &domain.TransportError{Path: path, Err: err}
}

// ArchiveDir returns the directory images captured on the given day are stored in.
func ArchiveDir(root string, subdir string, year int, month int, day int) string {
	return filepath.Join(root, subdir, fmt.Sprintf("%04d%02d%02d", year, month, day))
}
