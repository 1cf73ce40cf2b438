package epic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dfryer1193/epicarchive/archive/domain"
	"github.com/rs/zerolog/log"
)

var _ domain.Catalog = (*Catalog)(nil)

const (
	recentImagesPath   = "api/natural/images"
	availableDatesPath = "api/natural/all"

	// maxLoggedResponse caps how much of a response body ends up in debug logs.
	maxLoggedResponse = 256
)

// Catalog implements domain.Catalog on top of the natural-color collection of the EPIC API.
type Catalog struct {
	fetcher domain.Fetcher
}

// NewCatalog creates a Catalog that reads through fetcher.
func NewCatalog(fetcher domain.Fetcher) *Catalog {
	return &Catalog{
		fetcher: fetcher,
	}
}

// ListImagesForDate returns the catalog entries captured on date, in catalog order.
// A single malformed entry fails the whole call.
func (c *Catalog) ListImagesForDate(ctx context.Context, date time.Time) ([]domain.ImageRecord, error) {
	return c.listImages(ctx, fmt.Sprintf("api/natural/date/%s", date.Format(domain.DateLayout)))
}

// ListRecentImages returns the entries of the most recent day the catalog has published.
func (c *Catalog) ListRecentImages(ctx context.Context) ([]domain.ImageRecord, error) {
	return c.listImages(ctx, recentImagesPath)
}

// ListAvailableDates returns every date the catalog has images for, oldest first.
func (c *Catalog) ListAvailableDates(ctx context.Context) ([]time.Time, error) {
	entries, err := c.fetchEntries(ctx, availableDatesPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]time.Time, len(entries))
	for i, entry := range entries {
		value, ok := entry["date"].(string)
		if !ok {
			return nil, &domain.ProtocolError{Path: availableDatesPath, Reason: fmt.Sprintf("entry %d has no date string", i)}
		}

		date, err := parseAvailableDate(value)
		if err != nil {
			return nil, &domain.ProtocolError{Path: availableDatesPath, Reason: fmt.Sprintf("entry %d has an unparseable date", i), Err: err}
		}
		seen[date.Format(domain.DateLayout)] = date
	}

	dates := make([]time.Time, 0, len(seen))
	for _, date := range seen {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})

	return dates, nil
}

// GetLastAvailableDate returns the most recent date the catalog has images for.
func (c *Catalog) GetLastAvailableDate(ctx context.Context) (time.Time, error) {
	dates, err := c.ListAvailableDates(ctx)
	if err != nil {
		return time.Time{}, err
	}

	if len(dates) == 0 {
		return time.Time{}, &domain.ProtocolError{Path: availableDatesPath, Reason: "catalog lists no dates"}
	}

	return dates[len(dates)-1], nil
}

func (c *Catalog) listImages(ctx context.Context, path string) ([]domain.ImageRecord, error) {
	entries, err := c.fetchEntries(ctx, path)
	if err != nil {
		return nil, err
	}

	records := make([]domain.ImageRecord, 0, len(entries))
	for i, entry := range entries {
		record, err := domain.ParseImageRecord(entry)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d of %s: %w", i, path, err)
		}
		records = append(records, record)
	}

	log.Debug().Str("path", path).Int("records", len(records)).Msg("Parsed catalog entries")

	return records, nil
}

// fetchEntries retrieves path and decodes it as a JSON array of objects.
func (c *Catalog) fetchEntries(ctx context.Context, path string) ([]map[string]any, error) {
	log.Debug().Str("path", path).Msg("Fetching catalog entries")

	body, err := c.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, handleTransportError(path, 0, err)
	}

	log.Debug().Str("path", path).Str("response", summarize(body)).Msg("Fetched catalog entries")

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &domain.ProtocolError{Path: path, Reason: "response is not a JSON array"}
	}

	var entries []map[string]any
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, &domain.ProtocolError{Path: path, Reason: "response is not a JSON array of objects", Err: err}
	}

	for i, entry := range entries {
		if entry == nil {
			return nil, &domain.ProtocolError{Path: path, Reason: fmt.Sprintf("element %d is not an object", i)}
		}
	}

	return entries, nil
}

// parseAvailableDate accepts the bare dates the "all" listing returns as well as full capture timestamps.
func parseAvailableDate(value string) (time.Time, error) {
	if date, err := time.ParseInLocation(domain.DateLayout, value, time.UTC); err == nil {
		return date, nil
	}

	capturedAt, err := domain.ParseCapturedAt(value)
	if err != nil {
		return time.Time{}, err
	}
	return domain.TruncateToDate(capturedAt), nil
}

func summarize(body []byte) string {
	if len(body) <= maxLoggedResponse {
		return string(body)
	}
	return fmt.Sprintf("%s... (%d bytes)", body[:maxLoggedResponse], len(body))
}
