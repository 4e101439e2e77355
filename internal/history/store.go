// Package history mirrors the caller's recent attendance records into a
// local SQLite file so the station keeps showing the latest known state
// across restarts and network outages.
package history

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"attendkiosk/internal/backend"
)

const schema = `
CREATE TABLE IF NOT EXISTS attendance_history (
	id         TEXT PRIMARY KEY,
	ts         TIMESTAMP NOT NULL,
	company_id TEXT,
	student    TEXT,
	lat        REAL NOT NULL,
	lon        REAL NOT NULL,
	status     TEXT NOT NULL,
	score      REAL,
	reason     TEXT
);
CREATE INDEX IF NOT EXISTS idx_history_ts ON attendance_history (ts DESC);
`

// Store is the local cache of the server-owned history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache file and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// ReplaceAll swaps the cached rows for a fresh server snapshot in one
// transaction, so readers never observe a half-applied refresh.
func (s *Store) ReplaceAll(ctx context.Context, recs []backend.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_history`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance_history (id, ts, company_id, student, lat, lon, status, score, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		var score sql.NullFloat64
		if r.Score != nil {
			score = sql.NullFloat64{Float64: *r.Score, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Timestamp.UTC(), r.CompanyID, r.StudentIdentity(),
			r.Location.Lat, r.Location.Lon, r.Status, score, r.Reason,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Recent returns cached records, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]backend.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, company_id, student, lat, lon, status, score, reason
		FROM attendance_history
		ORDER BY ts DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backend.Record
	for rows.Next() {
		var (
			r     backend.Record
			ts    time.Time
			score sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &ts, &r.CompanyID, &r.StudentUsername,
			&r.Location.Lat, &r.Location.Lon, &r.Status, &score, &r.Reason); err != nil {
			return nil, err
		}
		r.Timestamp = backend.Timestamp{Time: ts}
		if score.Valid {
			v := score.Float64
			r.Score = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
