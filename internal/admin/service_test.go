package admin

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"attendkiosk/internal/backend"
	"attendkiosk/internal/session"
)

func adminSession(t *testing.T) *session.Manager {
	t.Helper()
	mgr := session.NewManager(session.NewFileStore(filepath.Join(t.TempDir(), "s.json")))
	u := backend.User{ID: "a1", Username: "admin", Role: "faculty_admin"}
	if err := mgr.Login(context.Background(), "admin-tok", u); err != nil {
		t.Fatalf("login: %v", err)
	}
	return mgr
}

func TestQuery_FilterSerializationAndServerTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/records" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.RawQuery; got != "company=Acme&start=2024-01-01" {
			t.Errorf("query = %q, want company=Acme&start=2024-01-01", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer admin-tok" {
			t.Errorf("auth = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":[
			{"_id":"r1","timestamp":"2024-01-05T08:00:00Z","company_id":"Acme","student_username":"alice","location":{"lat":12.9,"lon":77.6},"status":"present","score":0.92},
			{"_id":"r2","timestamp":"2024-01-04T08:00:00Z","company_id":"Acme","student_username":"bob","location":{"lat":12.9,"lon":77.6},"status":"late"}
		],"page":1,"limit":50,"total":321}`)
	}))
	defer srv.Close()

	svc := New(backend.New(srv.URL), adminSession(t), nil, nil)
	page, err := svc.Query(context.Background(), backend.Filter{Company: "Acme", Student: "", Start: "2024-01-01", End: ""})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if page.Total != 321 {
		t.Fatalf("total = %d, want server-reported 321", page.Total)
	}
	if len(page.Data) >= page.Total {
		t.Fatal("test requires a paginated response with total > page length")
	}
}

func TestQuery_RepeatIsIdempotent(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		io.WriteString(w, `{"data":[],"total":0}`)
	}))
	defer srv.Close()

	svc := New(backend.New(srv.URL), adminSession(t), nil, nil)
	for i := 0; i < 3; i++ {
		if _, err := svc.Query(context.Background(), backend.Filter{}); err != nil {
			t.Fatalf("Query %d: %v", i, err)
		}
	}
	if hits != 3 {
		t.Fatalf("hits = %d", hits)
	}
}

func TestExport_WritesSpreadsheetToDisk(t *testing.T) {
	blob := []byte{0x50, 0x4b, 0x03, 0x04, 0xaa, 0xbb}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/export" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.RawQuery != "end=2024-02-01&start=2024-01-01" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		w.Write(blob)
	}))
	defer srv.Close()

	dir := t.TempDir()
	svc := New(backend.New(srv.URL), adminSession(t), nil, nil)
	path, err := svc.Export(context.Background(), backend.Filter{Start: "2024-01-01", End: "2024-02-01"}, dir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasSuffix(path, ".xlsx") {
		t.Fatalf("unexpected export path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !bytes.Equal(data, blob) {
		t.Fatalf("export bytes altered")
	}
}

func TestExport_ServerErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "export too large", http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := New(backend.New(srv.URL), adminSession(t), nil, nil)
	if _, err := svc.Export(context.Background(), backend.Filter{}, t.TempDir()); err == nil || !strings.Contains(err.Error(), "export too large") {
		t.Fatalf("server message not surfaced: %v", err)
	}
}

func TestRenderTable_ShowsServerTotal(t *testing.T) {
	score := 0.92
	page := backend.RecordsPage{
		Data: []backend.Record{{
			ID:              "r1",
			CompanyID:       "Acme",
			StudentUsername: "alice",
			Location:        backend.GeoPoint{Lat: 12.9, Lon: 77.6},
			Status:          "present",
			Score:           &score,
		}},
		Total: 321,
	}
	var buf bytes.Buffer
	if err := RenderTable(&buf, page); err != nil {
		t.Fatalf("RenderTable: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "alice") || !strings.Contains(out, "present") {
		t.Fatalf("table missing record fields:\n%s", out)
	}
	if !strings.Contains(out, "Showing 1 of 321 record(s)") {
		t.Fatalf("footer must carry the server total:\n%s", out)
	}
}
