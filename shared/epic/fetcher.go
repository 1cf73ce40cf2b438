package epic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dfryer1193/epicarchive/archive/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var _ domain.Fetcher = (*HTTPFetcher)(nil)

const defaultTimeout = 30 * time.Second

// FetcherConfig holds the settings of an HTTPFetcher.
type FetcherConfig struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds a whole request, body included. Zero means 30 seconds.
	Timeout time.Duration
	// Interval is the minimum spacing between two requests. Zero disables pacing.
	Interval time.Duration
}

// HTTPFetcher retrieves catalog resources over HTTP, relative to a base URL.
type HTTPFetcher struct {
	client    *http.Client
	baseURL   *url.URL
	userAgent string
	limiter   *rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher for the catalog at cfg.BaseURL.
func NewHTTPFetcher(cfg FetcherConfig) (*HTTPFetcher, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog base URL %q: %w", cfg.BaseURL, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid catalog base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(limit, 1),
	}, nil
}

// Fetch issues a GET for path and returns the response body of a 200 response.
func (f *HTTPFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	reqURL := f.baseURL.JoinPath(path).String()

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, handleTransportError(path, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, handleTransportError(path, 0, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	log.Debug().Str("url", reqURL).Msg("Requesting catalog resource")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, handleTransportError(path, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleTransportError(path, resp.StatusCode, errors.New(http.StatusText(resp.StatusCode)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, handleTransportError(path, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	log.Debug().Str("url", reqURL).Int("bytes", len(body)).Msg("Received catalog resource")

	return body, nil
}

// handleTransportError turns a failed request into a *domain.TransportError carrying the cause.
func handleTransportError(path string, statusCode int, err error) error {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	return &domain.TransportError{Path: path, StatusCode: statusCode, Err: err}
}
