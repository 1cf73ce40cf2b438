package domain

import (
	"fmt"
	"regexp"
	"time"
)

// CapturedAtLayout is the layout the catalog uses for capture timestamps.
const CapturedAtLayout = "2006-01-02 15:04:05"

// DateLayout is the calendar date layout used in catalog paths and on the command line.
const DateLayout = "2006-01-02"

var capturedAtRegex = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01]) ([01]\d|2[0-3]):([0-5]\d):([0-5]\d)$`)

// requiredFields lists the catalog entry keys in the order they are validated.
var requiredFields = []string{"identifier", "caption", "image", "version", "date"}

// ImageRecord is one validated entry of the imagery catalog.
// It can only be built by ParseImageRecord and exposes read-only accessors.
type ImageRecord struct {
	identifier string
	caption    string
	image      string
	version    string
	capturedAt time.Time
}

// ParseImageRecord validates a raw catalog entry and builds an ImageRecord from it.
// A record is either fully built or rejected with a *ValidationError.
func ParseImageRecord(raw map[string]any) (ImageRecord, error) {
	values := make(map[string]string, len(requiredFields))
	for _, field := range requiredFields {
		v, ok := raw[field]
		if !ok || v == nil {
			return ImageRecord{}, &ValidationError{Field: field, Reason: "missing"}
		}
		s, ok := v.(string)
		if !ok {
			return ImageRecord{}, &ValidationError{Field: field, Reason: fmt.Sprintf("expected string, got %T", v)}
		}
		if s == "" {
			return ImageRecord{}, &ValidationError{Field: field, Reason: "empty"}
		}
		values[field] = s
	}

	capturedAt, err := ParseCapturedAt(values["date"])
	if err != nil {
		return ImageRecord{}, err
	}

	return ImageRecord{
		identifier: values["identifier"],
		caption:    values["caption"],
		image:      values["image"],
		version:    values["version"],
		capturedAt: capturedAt,
	}, nil
}

// ParseCapturedAt parses a strict "YYYY-MM-DD HH:MM:SS" timestamp as UTC wall-clock time.
// Out-of-range calendar components such as February 30th are rejected.
func ParseCapturedAt(value string) (time.Time, error) {
	if !capturedAtRegex.MatchString(value) {
		return time.Time{}, &ValidationError{Field: "date", Reason: "malformed"}
	}
	t, err := time.ParseInLocation(CapturedAtLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "malformed"}
	}
	return t, nil
}

func (r ImageRecord) Identifier() string {
	return r.identifier
}

func (r ImageRecord) Caption() string {
	return r.caption
}

// Image is the base filename of the raster, without extension.
func (r ImageRecord) Image() string {
	return r.image
}

func (r ImageRecord) Version() string {
	return r.version
}

func (r ImageRecord) CapturedAt() time.Time {
	return r.capturedAt
}

// CaptureDate returns the calendar day the image was captured on, at UTC midnight.
func (r ImageRecord) CaptureDate() time.Time {
	return TruncateToDate(r.capturedAt)
}

// TruncateToDate drops the time of day from t, keeping its wall-clock date in UTC.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
