package domain

import (
	"errors"
	"fmt"
)

// ErrImageNotFound is returned by an ArchiveIndex for an identifier it has no entry for.
var ErrImageNotFound = errors.New("archived image not found")

// ValidationError reports a missing, empty or malformed catalog entry field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid catalog entry: field %q is %s", e.Field, e.Reason)
}

// ParseError reports a date argument that could not be parsed.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse date %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed request to the catalog.
// StatusCode is zero when no HTTP response was received.
type TransportError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request %s failed with status %d: %v", e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("request %s failed: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a catalog response whose shape is not what the endpoint promises.
type ProtocolError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected response from %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("unexpected response from %s: %s", e.Path, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// RangeError reports a capture year outside the archive's supported bounds.
type RangeError struct {
	Year int
	Min  int
	Max  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("year %d is outside the supported range [%d, %d]", e.Year, e.Min, e.Max)
}

// IntegrityError reports a downloaded payload too small to be a real image.
type IntegrityError struct {
	Image string
	Size  int
	Min   int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("image %s: payload of %d bytes is below the minimum of %d bytes", e.Image, e.Size, e.Min)
}
