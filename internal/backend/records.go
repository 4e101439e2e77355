package backend

import (
	"fmt"
	"strings"
	"time"
)

// GeoPoint is a latitude/longitude pair as stored on attendance records.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Timestamp decodes the server's datetime encoding. The API emits either
// RFC 3339 or an HTTP-date string depending on the serializer in front of it.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON tries the known server layouts in order.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// MarshalJSON emits RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + t.Format(time.RFC3339) + `"`), nil
}

// Record is a read-only copy of a server-owned attendance record.
type Record struct {
	ID              string    `json:"_id"`
	Timestamp       Timestamp `json:"timestamp"`
	CompanyID       string    `json:"company_id"`
	StudentID       string    `json:"student_id,omitempty"`
	StudentUsername string    `json:"student_username,omitempty"`
	StudentFullName string    `json:"student_full_name,omitempty"`
	Location        GeoPoint  `json:"location"`
	Status          string    `json:"status"`
	Score           *float64  `json:"score"`
	Reason          string    `json:"reason,omitempty"`
}

// StudentIdentity prefers the full name and falls back to the username.
func (r Record) StudentIdentity() string {
	if r.StudentFullName != "" {
		return r.StudentFullName
	}
	return r.StudentUsername
}

// RecordsPage is one admin query result page. Total is the server's count
// over the whole filtered set and may exceed len(Data).
type RecordsPage struct {
	Data  []Record `json:"data"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
	Total int      `json:"total"`
}

// Verdict is the server's decision on one submission.
type Verdict struct {
	ID     string   `json:"_id"`
	Status string   `json:"status"`
	Score  *float64 `json:"score"`
	Reason string   `json:"reason,omitempty"`
	// Message is set when the server short-circuits (e.g. already marked today).
	Message string `json:"message,omitempty"`
}

// User is the authenticated profile returned by /auth/login and /auth/me.
type User struct {
	ID              string `json:"_id"`
	Username        string `json:"username"`
	Role            string `json:"role"`
	CompanyID       string `json:"company_id,omitempty"`
	FullName        string `json:"full_name,omitempty"`
	HasFaceEncoding bool   `json:"has_face_encoding,omitempty"`
}

// LoginResult is the /auth/login payload.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// RegisterResult is the /auth/register payload.
type RegisterResult struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
