// Package admin implements the filtered records query and the spreadsheet
// export used by administrators.
package admin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"attendkiosk/internal/backend"
	"attendkiosk/internal/metrics"
	"attendkiosk/internal/session"
)

// Service runs admin queries against the backend. Both operations are
// read-only and safe to repeat.
type Service struct {
	client   *backend.Client
	sessions *session.Manager
	metrics  *metrics.Set // optional
	log      *zap.Logger
}

// New creates the service. met may be nil.
func New(client *backend.Client, sessions *session.Manager, met *metrics.Set, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{client: client, sessions: sessions, metrics: met, log: log}
}

// Query fetches one filtered page. The returned total is the server's count
// over the whole filtered set and may exceed the page length.
func (s *Service) Query(ctx context.Context, f backend.Filter) (backend.RecordsPage, error) {
	page, err := s.client.AdminRecords(ctx, s.sessions.Token(), f)
	if err != nil {
		return backend.RecordsPage{}, err
	}
	if s.metrics != nil {
		s.metrics.AdminQueriesTotal.Inc()
	}
	s.log.Debug("records query",
		zap.Int("returned", len(page.Data)),
		zap.Int("total", page.Total))
	return page, nil
}

// Export downloads the spreadsheet for the same filter set and writes it to
// dir, returning the written path. The save-to-disk is the whole point; the
// blob itself is opaque to the client.
func (s *Service) Export(ctx context.Context, f backend.Filter, dir string) (string, error) {
	data, err := s.client.AdminExport(ctx, s.sessions.Token(), f)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("export returned no data")
	}
	name := fmt.Sprintf("attendance_export_%s.xlsx", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AdminExportsTotal.Inc()
	}
	s.log.Info("export written", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}
