// Package attendance coordinates one submission attempt: geolocation fix,
// still-frame capture, multipart upload, verdict interpretation, and the
// unconditional history refresh that follows every attempt.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attendkiosk/internal/backend"
	"attendkiosk/internal/capture"
	"attendkiosk/internal/history"
	"attendkiosk/internal/metrics"
	"attendkiosk/internal/session"
)

// ErrBusy is returned when a submission is already in flight. Attempts are
// never interleaved: the frame and the fix of one attempt must correspond.
var ErrBusy = errors.New("submission already in flight")

// ErrNoStream means the camera stream was never started.
var ErrNoStream = errors.New("camera stream not started")

// State is the phase of the current attempt.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring_location"
	StateCapturing State = "capturing_image"
	StateUploading State = "uploading"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Result is the terminal outcome of a successful attempt.
type Result struct {
	AttemptID string      `json:"attempt_id"`
	Status    string      `json:"status"`
	Score     *float64    `json:"score,omitempty"`
	Message   string      `json:"message,omitempty"`
	Fix       capture.Fix `json:"location"`
}

// Display renders the outcome the way the station screen shows it.
func (r Result) Display() string {
	if r.Status == "" {
		return r.Message
	}
	s := "Submitted: " + r.Status
	if r.Score != nil {
		s += fmt.Sprintf(" (score %g)", *r.Score)
	}
	return s
}

// Submitter runs submission attempts one at a time.
type Submitter struct {
	locator  capture.Locator
	client   *backend.Client
	sessions *session.Manager
	cache    *history.Store // optional
	metrics  *metrics.Set   // optional
	log      *zap.Logger

	// site, when set, is only used to warn about stations reporting a fix
	// far from their expected position.
	site        *capture.Fix
	siteRadiusM float64

	// attempt guards the whole sequence, not just the upload: the frame and
	// fix of concurrent attempts must never mix.
	attempt sync.Mutex

	mu      sync.RWMutex
	stream  capture.Stream
	state   State
	history []backend.Record
}

// New creates a submitter. cache and met may be nil.
func New(locator capture.Locator, client *backend.Client, sessions *session.Manager, cache *history.Store, met *metrics.Set, log *zap.Logger) *Submitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{
		locator:  locator,
		client:   client,
		sessions: sessions,
		cache:    cache,
		metrics:  met,
		log:      log,
		state:    StateIdle,
	}
}

// SetSite configures the expected station position for drift warnings.
func (s *Submitter) SetSite(fix capture.Fix, radiusM float64) {
	s.site = &fix
	s.siteRadiusM = radiusM
}

// AttachStream hands the open camera stream to the submitter. The owning
// view keeps responsibility for releasing it.
func (s *Submitter) AttachStream(stream capture.Stream) {
	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
}

// State returns the phase of the attempt in flight, or idle.
func (s *Submitter) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Submitter) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// History returns the last known history snapshot, most recent first.
func (s *Submitter) History() []backend.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backend.Record, len(s.history))
	copy(out, s.history)
	return out
}

// LoadCachedHistory primes the in-memory snapshot from the local cache,
// called once at startup before the first refresh.
func (s *Submitter) LoadCachedHistory(ctx context.Context) {
	if s.cache == nil {
		return
	}
	recs, err := s.cache.Recent(ctx, 200)
	if err != nil {
		s.log.Warn("history cache read failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.history = recs
	s.mu.Unlock()
}

// Submit runs one attempt: fix, frame, upload, verdict. The sequence is
// strictly ordered because the upload payload needs both inputs. A second
// call while one is outstanding fails with ErrBusy. Whatever the outcome,
// the caller's history is refreshed exactly once before returning.
func (s *Submitter) Submit(ctx context.Context) (Result, error) {
	if !s.attempt.TryLock() {
		s.count(metrics.OutcomeBusy)
		return Result{}, ErrBusy
	}
	defer s.attempt.Unlock()

	attemptID := uuid.NewString()
	log := s.log.With(zap.String("attempt_id", attemptID))
	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.SubmissionDuration.Observe(time.Since(started).Seconds())
		}
		s.setState(StateIdle)
	}()
	defer s.refreshHistory(ctx, log)

	s.setState(StateAcquiring)
	fixStart := time.Now()
	fix, err := s.locator.Fix(ctx)
	if s.metrics != nil {
		s.metrics.LocationFixDuration.Observe(time.Since(fixStart).Seconds())
	}
	if err != nil {
		s.setState(StateFailed)
		s.count(metrics.OutcomeLocationFailed)
		log.Warn("location fix failed", zap.Error(err))
		return Result{}, err
	}
	if s.site != nil && !capture.WithinRadius(*s.site, fix, s.siteRadiusM) {
		log.Warn("fix outside expected site radius",
			zap.Float64("lat", fix.Lat), zap.Float64("lon", fix.Lon),
			zap.Float64("distance_m", capture.HaversineMeters(*s.site, fix)))
	}

	s.setState(StateCapturing)
	s.mu.RLock()
	stream := s.stream
	s.mu.RUnlock()
	if stream == nil {
		s.setState(StateFailed)
		s.count(metrics.OutcomeCaptureFailed)
		return Result{}, ErrNoStream
	}
	frame, err := stream.Frame(ctx)
	if err != nil {
		s.setState(StateFailed)
		s.count(metrics.OutcomeCaptureFailed)
		log.Warn("frame capture failed", zap.Error(err))
		return Result{}, err
	}

	s.setState(StateUploading)
	verdict, err := s.client.Submit(ctx, s.sessions.Token(), frame, fix.Lat, fix.Lon)
	if err != nil {
		s.setState(StateFailed)
		s.count(metrics.OutcomeUploadFailed)
		log.Warn("upload rejected", zap.Error(err))
		return Result{}, err
	}

	s.setState(StateSucceeded)
	s.count(metrics.OutcomeAccepted)
	log.Info("submission accepted",
		zap.String("status", verdict.Status),
		zap.Float64p("score", verdict.Score))
	return Result{
		AttemptID: attemptID,
		Status:    verdict.Status,
		Score:     verdict.Score,
		Message:   verdict.Message,
		Fix:       fix,
	}, nil
}

// refreshHistory pulls the caller's records after every attempt so the view
// reflects the latest known state. On fetch failure the cached snapshot
// stands.
func (s *Submitter) refreshHistory(ctx context.Context, log *zap.Logger) {
	recs, err := s.client.MyHistory(ctx, s.sessions.Token())
	if err != nil {
		if s.metrics != nil {
			s.metrics.HistoryRefreshes.WithLabelValues("failed").Inc()
		}
		log.Warn("history refresh failed, keeping cached snapshot", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.HistoryRefreshes.WithLabelValues("ok").Inc()
	}
	s.mu.Lock()
	s.history = recs
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.ReplaceAll(ctx, recs); err != nil {
			log.Warn("history cache write failed", zap.Error(err))
		}
	}
}

func (s *Submitter) count(outcome string) {
	if s.metrics != nil {
		s.metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
	}
}
