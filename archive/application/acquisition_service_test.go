package application

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dfryer1193/epicarchive/archive/domain"
	"github.com/dfryer1193/epicarchive/archive/persistence"
	"github.com/spf13/afero"
)

type stubCatalog struct {
	records  []domain.ImageRecord
	dates    []time.Time
	err      error
	lastDate time.Time
	lastErr  error
	listedOn []time.Time
}

func (c *stubCatalog) ListImagesForDate(ctx context.Context, date time.Time) ([]domain.ImageRecord, error) {
	c.listedOn = append(c.listedOn, date)
	return c.records, c.err
}

func (c *stubCatalog) ListRecentImages(ctx context.Context) ([]domain.ImageRecord, error) {
	return c.records, c.err
}

func (c *stubCatalog) ListAvailableDates(ctx context.Context) ([]time.Time, error) {
	return c.dates, c.err
}

func (c *stubCatalog) GetLastAvailableDate(ctx context.Context) (time.Time, error) {
	return c.lastDate, c.lastErr
}

// sizedFetcher serves MinImageSize bytes for every image except those listed in short
type sizedFetcher struct {
	short    map[string]bool
	requests []string
}

func (f *sizedFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	f.requests = append(f.requests, path)
	if f.short[path] {
		return []byte("<html>error</html>"), nil
	}
	return bytes.Repeat([]byte{0x89}, persistence.MinImageSize), nil
}

type memoryIndex struct {
	images []*domain.ArchivedImage
	err    error
}

func (m *memoryIndex) RecordImage(ctx context.Context, img *domain.ArchivedImage) error {
	if m.err != nil {
		return m.err
	}
	m.images = append(m.images, img)
	return nil
}

func (m *memoryIndex) GetImage(ctx context.Context, identifier string) (*domain.ArchivedImage, error) {
	for _, img := range m.images {
		if img.Identifier == identifier {
			return img, nil
		}
	}
	return nil, domain.ErrImageNotFound
}

func (m *memoryIndex) ListImages(ctx context.Context, date time.Time) ([]*domain.ArchivedImage, error) {
	return m.images, nil
}

func newRecord(t *testing.T, image string, date string) domain.ImageRecord {
	t.Helper()
	record, err := domain.ParseImageRecord(map[string]any{
		"identifier": "id-" + image,
		"caption":    "EPIC image",
		"image":      image,
		"version":    "03",
		"date":       date,
	})
	if err != nil {
		t.Fatalf("ParseImageRecord() error = %v", err)
	}
	return record
}

func TestAcquisitionService_ResolveDate(t *testing.T) {
	last := time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		explicit string
		want     time.Time
	}{
		{name: "Explicit date", explicit: "2019-12-31", want: time.Date(2019, time.December, 31, 0, 0, 0, 0, time.UTC)},
		{name: "Explicit date with whitespace", explicit: " 2019-12-31 ", want: time.Date(2019, time.December, 31, 0, 0, 0, 0, time.UTC)},
		{name: "Default to last available", explicit: "", want: last},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewAcquisitionService(&stubCatalog{lastDate: last}, nil, nil)

			got, err := service.ResolveDate(context.Background(), tt.explicit)
			if err != nil {
				t.Fatalf("ResolveDate(%q) error = %v", tt.explicit, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ResolveDate(%q) = %v, want %v", tt.explicit, got, tt.want)
			}
		})
	}
}

func TestAcquisitionService_ResolveDate_ParseError(t *testing.T) {
	inputs := []string{"yesterday", "2021-13-01", "2021-02-30", "05.03.2021", "2021-03-05 00:13:03"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			service := NewAcquisitionService(&stubCatalog{}, nil, nil)

			_, err := service.ResolveDate(context.Background(), input)

			var parseErr *domain.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("ResolveDate(%q) error = %v, want *domain.ParseError", input, err)
			}
			if parseErr.Input != input {
				t.Errorf("ParseError.Input = %q, want %q", parseErr.Input, input)
			}
		})
	}
}

func TestAcquisitionService_ResolveDate_CatalogError(t *testing.T) {
	catalog := &stubCatalog{lastErr: &domain.ProtocolError{Path: "api/natural/all", Reason: "catalog lists no dates"}}
	service := NewAcquisitionService(catalog, nil, nil)

	_, err := service.ResolveDate(context.Background(), "")

	var protocolErr *domain.ProtocolError
	if !errors.As(err, &protocolErr) {
		t.Errorf("ResolveDate() error = %v, want *domain.ProtocolError", err)
	}
}

func TestAcquisitionService_DownloadForDate(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := &sizedFetcher{}
	index := &memoryIndex{}
	catalog := &stubCatalog{records: []domain.ImageRecord{
		newRecord(t, "epic_1b_20210305021339", "2021-03-05 02:09:25"),
		newRecord(t, "epic_1b_20210305001751", "2021-03-05 00:13:03"),
	}}
	service := NewAcquisitionService(catalog, persistence.NewArchiveWriter(fetcher, fs), index)

	date := time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC)
	paths, err := service.DownloadForDate(context.Background(), date, "foo", "/data")
	if err != nil {
		t.Fatalf("DownloadForDate() error = %v", err)
	}

	want := []string{
		"/data/foo/20210305/epic_1b_20210305021339.png",
		"/data/foo/20210305/epic_1b_20210305001751.png",
	}
	if len(paths) != len(want) {
		t.Fatalf("DownloadForDate() returned %d paths, want %d", len(paths), len(want))
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
		if exists, _ := afero.Exists(fs, want[i]); !exists {
			t.Errorf("%s was not written", want[i])
		}
	}

	if len(index.images) != 2 {
		t.Fatalf("index holds %d images, want 2", len(index.images))
	}
	if index.images[0].RunID == "" || index.images[0].RunID != index.images[1].RunID {
		t.Errorf("run ids = %q, %q, want one shared non-empty id", index.images[0].RunID, index.images[1].RunID)
	}
	if index.images[0].Size != persistence.MinImageSize {
		t.Errorf("indexed size = %d, want %d", index.images[0].Size, persistence.MinImageSize)
	}
	if index.images[1].Identifier != "id-epic_1b_20210305001751" {
		t.Errorf("indexed identifier = %q, want %q", index.images[1].Identifier, "id-epic_1b_20210305001751")
	}
}

func TestAcquisitionService_DownloadForDate_NoImages(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := &sizedFetcher{}
	service := NewAcquisitionService(&stubCatalog{records: []domain.ImageRecord{}}, persistence.NewArchiveWriter(fetcher, fs), &memoryIndex{})

	paths, err := service.DownloadForDate(context.Background(), time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC), "foo", "/data")
	if err != nil {
		t.Fatalf("DownloadForDate() error = %v, want nil", err)
	}
	if paths == nil || len(paths) != 0 {
		t.Errorf("DownloadForDate() = %v, want empty non-nil slice", paths)
	}
	if len(fetcher.requests) != 0 {
		t.Errorf("fetcher was called %d times, want 0", len(fetcher.requests))
	}
}

func TestAcquisitionService_DownloadForDate_StopsAtFirstFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := &sizedFetcher{short: map[string]bool{
		"archive/natural/2021/03/05/png/second.png": true,
	}}
	index := &memoryIndex{}
	catalog := &stubCatalog{records: []domain.ImageRecord{
		newRecord(t, "first", "2021-03-05 00:13:03"),
		newRecord(t, "second", "2021-03-05 01:13:03"),
		newRecord(t, "third", "2021-03-05 02:13:03"),
	}}
	service := NewAcquisitionService(catalog, persistence.NewArchiveWriter(fetcher, fs), index)

	paths, err := service.DownloadForDate(context.Background(), time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC), "foo", "/data")

	var integrityErr *domain.IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("DownloadForDate() error = %v, want *domain.IntegrityError", err)
	}

	if len(paths) != 1 || paths[0] != "/data/foo/20210305/first.png" {
		t.Errorf("paths = %v, want [/data/foo/20210305/first.png]", paths)
	}
	if exists, _ := afero.Exists(fs, "/data/foo/20210305/first.png"); !exists {
		t.Error("first.png was rolled back, want it kept")
	}
	if exists, _ := afero.Exists(fs, "/data/foo/20210305/second.png"); exists {
		t.Error("second.png was written despite failing validation")
	}
	if len(fetcher.requests) != 2 {
		t.Errorf("fetcher was called %d times, want 2 (third image must not be requested)", len(fetcher.requests))
	}
	if len(index.images) != 1 {
		t.Errorf("index holds %d images, want 1", len(index.images))
	}
}

func TestAcquisitionService_DownloadForDate_CatalogError(t *testing.T) {
	catalog := &stubCatalog{err: &domain.ValidationError{Field: "date", Reason: "malformed"}}
	service := NewAcquisitionService(catalog, persistence.NewArchiveWriter(&sizedFetcher{}, afero.NewMemMapFs()), nil)

	_, err := service.DownloadForDate(context.Background(), time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC), "foo", "/data")

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("DownloadForDate() error = %v, want *domain.ValidationError", err)
	}
}

func TestAcquisitionService_DownloadForDate_IndexError(t *testing.T) {
	fs := afero.NewMemMapFs()
	indexErr := errors.New("database is locked")
	catalog := &stubCatalog{records: []domain.ImageRecord{
		newRecord(t, "first", "2021-03-05 00:13:03"),
		newRecord(t, "second", "2021-03-05 01:13:03"),
	}}
	service := NewAcquisitionService(catalog, persistence.NewArchiveWriter(&sizedFetcher{}, fs), &memoryIndex{err: indexErr})

	paths, err := service.DownloadForDate(context.Background(), time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC), "foo", "/data")

	if !errors.Is(err, indexErr) {
		t.Fatalf("DownloadForDate() error = %v, want %v", err, indexErr)
	}
	if len(paths) != 0 {
		t.Errorf("paths = %v, want none", paths)
	}
}

func TestAcquisitionService_DownloadForDate_WithoutIndex(t *testing.T) {
	fs := afero.NewMemMapFs()
	catalog := &stubCatalog{records: []domain.ImageRecord{newRecord(t, "only", "2021-03-05 00:13:03")}}
	service := NewAcquisitionService(catalog, persistence.NewArchiveWriter(&sizedFetcher{}, fs), nil)

	paths, err := service.DownloadForDate(context.Background(), time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC), "foo", "/data")
	if err != nil {
		t.Fatalf("DownloadForDate() error = %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("DownloadForDate() returned %d paths, want 1", len(paths))
	}
}

func TestAcquisitionService_DownloadForDate_RelativeRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	index := &memoryIndex{}
	catalog := &stubCatalog{records: []domain.ImageRecord{newRecord(t, "img", "2021-03-05 00:13:03")}}
	service := NewAcquisitionService(catalog, persistence.NewArchiveWriter(&sizedFetcher{}, fs), index)

	paths, err := service.DownloadForDate(context.Background(), time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC), "foo", "var/epic")
	if err != nil {
		t.Fatalf("DownloadForDate() error = %v", err)
	}

	absRoot, err := filepath.Abs("var/epic")
	if err != nil {
		t.Fatalf("filepath.Abs() error = %v", err)
	}
	want := filepath.Join(absRoot, "foo", "20210305", "img.png")
	if len(paths) != 1 || paths[0] != want {
		t.Fatalf("paths = %v, want [%s]", paths, want)
	}
	if exists, _ := afero.Exists(fs, paths[0]); !exists {
		t.Errorf("%s does not exist in the archive filesystem", paths[0])
	}
	if len(index.images) != 1 || index.images[0].Path != want {
		t.Fatalf("index = %v, want one entry at %s", index.images, want)
	}
	if index.images[0].Size != persistence.MinImageSize {
		t.Errorf("indexed size = %d, want %d", index.images[0].Size, persistence.MinImageSize)
	}
}

func TestAcquisitionService_DownloadForDateWithProgress(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := &sizedFetcher{short: map[string]bool{
		"archive/natural/2021/03/05/png/third.png": true,
	}}
	catalog := &stubCatalog{records: []domain.ImageRecord{
		newRecord(t, "first", "2021-03-05 00:13:03"),
		newRecord(t, "second", "2021-03-05 01:13:03"),
		newRecord(t, "third", "2021-03-05 02:13:03"),
	}}
	service := NewAcquisitionService(catalog, persistence.NewArchiveWriter(fetcher, fs), nil)

	var reported []string
	var requestsAtReport []int
	paths, err := service.DownloadForDateWithProgress(context.Background(), time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC), "foo", "/data", func(path string) {
		reported = append(reported, path)
		requestsAtReport = append(requestsAtReport, len(fetcher.requests))
	})

	if err == nil {
		t.Fatal("DownloadForDateWithProgress() error = nil, want the third image to fail")
	}

	want := []string{"/data/foo/20210305/first.png", "/data/foo/20210305/second.png"}
	if len(reported) != len(want) || len(paths) != len(want) {
		t.Fatalf("reported = %v, paths = %v, want %v", reported, paths, want)
	}
	for i := range want {
		if reported[i] != want[i] {
			t.Errorf("reported[%d] = %q, want %q", i, reported[i], want[i])
		}
		// each path is reported before the next image is requested
		if requestsAtReport[i] != i+1 {
			t.Errorf("path %d reported after %d requests, want %d", i, requestsAtReport[i], i+1)
		}
	}
}

func TestAcquisitionService_ListAvailableDates(t *testing.T) {
	dates := []time.Time{
		time.Date(2015, time.June, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC),
	}
	service := NewAcquisitionService(&stubCatalog{dates: dates}, nil, nil)

	got, err := service.ListAvailableDates(context.Background())
	if err != nil {
		t.Fatalf("ListAvailableDates() error = %v", err)
	}
	if len(got) != 2 || !got[1].Equal(dates[1]) {
		t.Errorf("ListAvailableDates() = %v, want %v", got, dates)
	}
}
