package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// ErrCameraUnavailable means the device denied access or is not reachable.
var ErrCameraUnavailable = errors.New("camera unavailable")

// ErrNoFrame means a capture was attempted but yielded no image data.
var ErrNoFrame = errors.New("no frame available")

// ErrStreamClosed means the stream was released and cannot capture.
var ErrStreamClosed = errors.New("camera stream closed")

// Stream is an open connection to the camera. It stays open across multiple
// captures; the owning view must Close it on teardown so the device is not
// held.
type Stream interface {
	// Frame grabs the current frame and returns it re-encoded as JPEG.
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// Camera opens a live stream.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// HTTPCamera drives an IP camera through its still-snapshot endpoint.
type HTTPCamera struct {
	SnapshotURL string
	Quality     int
	HTTP        *http.Client
}

// NewHTTPCamera creates a camera client; quality is the JPEG re-encode
// setting applied to every captured frame.
func NewHTTPCamera(snapshotURL string, quality int) *HTTPCamera {
	return &HTTPCamera{
		SnapshotURL: snapshotURL,
		Quality:     quality,
		HTTP:        &http.Client{Timeout: 15 * time.Second},
	}
}

// Open probes the device and returns a live stream handle.
func (c *HTTPCamera) Open(ctx context.Context) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SnapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: device returned %d", ErrCameraUnavailable, resp.StatusCode)
	}
	return &httpStream{cam: c}, nil
}

type httpStream struct {
	cam    *HTTPCamera
	closed atomic.Bool
}

func (s *httpStream) Frame(ctx context.Context) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cam.SnapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	resp, err := s.cam.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: device returned %d", ErrNoFrame, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read frame: %v", ErrNoFrame, err)
	}
	return Reencode(raw, s.cam.Quality)
}

func (s *httpStream) Close() error {
	s.closed.Store(true)
	return nil
}
