// Package capture acquires the two inputs of a submission attempt: a single
// geolocation fix and a single still frame from the station camera.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultFixTimeout is the hard bound on waiting for a position fix.
const DefaultFixTimeout = 10 * time.Second

// ErrLocationTimeout means no fix arrived within the bound.
var ErrLocationTimeout = errors.New("location fix timed out")

// ErrLocationUnavailable means the location source denied or failed the request.
var ErrLocationUnavailable = errors.New("location unavailable")

// Fix is one latitude/longitude sample. It lives only for the attempt that
// requested it.
type Fix struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Locator produces exactly one fix per call. Retry policy belongs to the
// caller; implementations never retry internally.
type Locator interface {
	Fix(ctx context.Context) (Fix, error)
}

// StaticLocator returns a fixed position, for stations mounted at a known
// spot with no GPS hardware.
type StaticLocator struct {
	Lat float64
	Lon float64
}

// Fix returns the configured position.
func (s StaticLocator) Fix(context.Context) (Fix, error) {
	return Fix{Lat: s.Lat, Lon: s.Lon}, nil
}

// HTTPLocator reads a gpsd-style JSON endpoint serving the device's current
// position. High accuracy is requested on every call.
type HTTPLocator struct {
	URL     string
	Timeout time.Duration
	HTTP    *http.Client
}

// NewHTTPLocator creates a locator with the default 10s bound.
func NewHTTPLocator(url string) *HTTPLocator {
	return &HTTPLocator{
		URL:     url,
		Timeout: DefaultFixTimeout,
		HTTP:    &http.Client{},
	}
}

// Fix requests one position sample. The wait is bounded by Timeout; hitting
// the bound yields ErrLocationTimeout, everything else that prevents a fix
// yields ErrLocationUnavailable.
func (l *HTTPLocator) Fix(ctx context.Context) (Fix, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultFixTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL+"?accuracy=high", nil)
	if err != nil {
		return Fix{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	resp, err := l.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return Fix{}, fmt.Errorf("%w after %s", ErrLocationTimeout, timeout)
		}
		return Fix{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return Fix{}, fmt.Errorf("%w: status %d: %s", ErrLocationUnavailable, resp.StatusCode, body)
	}

	var out struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Fix{}, fmt.Errorf("%w: decode fix: %v", ErrLocationUnavailable, err)
	}
	if out.Lat == nil || out.Lon == nil {
		return Fix{}, fmt.Errorf("%w: source reported no position", ErrLocationUnavailable)
	}
	return Fix{Lat: *out.Lat, Lon: *out.Lon}, nil
}
