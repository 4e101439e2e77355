package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogin_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"username":"alice"`) {
			t.Errorf("missing username in body: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"tok-1","user":{"_id":"u1","username":"alice","role":"student","company_id":"acme"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken != "tok-1" || res.User.Username != "alice" || res.User.Role != "student" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestLogin_ErrorBodySurfacedVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Login(context.Background(), "alice", "wrong")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid credentials") {
		t.Fatalf("server message not surfaced: %v", err)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("401 should match ErrUnauthorized, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected *APIError with 401, got %v", err)
	}
}

func TestSubmit_MultipartFields(t *testing.T) {
	image := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attendance" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("lat") != "12.9" || r.FormValue("lon") != "77.6" {
			t.Errorf("lat/lon = %q/%q", r.FormValue("lat"), r.FormValue("lon"))
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("image part missing: %v", err)
		}
		defer file.Close()
		if header.Filename != "selfie.jpg" {
			t.Errorf("filename = %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if len(data) != len(image) {
			t.Errorf("image size = %d, want %d", len(data), len(image))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"_id":"r1","status":"present","score":0.92}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	v, err := c.Submit(context.Background(), "tok-1", image, 12.9, 77.6)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if v.Status != "present" {
		t.Fatalf("status = %q", v.Status)
	}
	if v.Score == nil || *v.Score != 0.92 {
		t.Fatalf("score = %v", v.Score)
	}
}

func TestSubmit_RejectsEmptyImage(t *testing.T) {
	c := New("http://unreachable.invalid")
	if _, err := c.Submit(context.Background(), "tok", nil, 1, 2); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestMyHistory_DecodesTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attendance/me" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"_id":"r2","timestamp":"2024-03-02T09:00:00Z","status":"present","location":{"lat":12.9,"lon":77.6},"score":0.92},
			{"_id":"r1","timestamp":"Fri, 01 Mar 2024 09:00:00 GMT","status":"rejected","location":{"lat":12.9,"lon":77.6}}
		]`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	recs, err := c.MyHistory(context.Background(), "tok")
	if err != nil {
		t.Fatalf("MyHistory: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d", len(recs))
	}
	if recs[0].Timestamp.IsZero() || recs[1].Timestamp.IsZero() {
		t.Fatalf("timestamps not parsed: %+v", recs)
	}
	if !recs[0].Timestamp.After(recs[1].Timestamp.Time) {
		t.Fatalf("expected most-recent-first ordering preserved")
	}
	if recs[1].Score != nil {
		t.Fatalf("absent score should stay nil")
	}
}

func TestAdminRecords_FilterAndTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/records" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.RawQuery; got != "company=Acme&start=2024-01-01" {
			t.Errorf("query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":[{"_id":"r1","status":"present","timestamp":"2024-01-02T08:00:00Z"}],"page":1,"limit":50,"total":137}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	page, err := c.AdminRecords(context.Background(), "tok", Filter{Company: "Acme", Student: "", Start: "2024-01-01", End: ""})
	if err != nil {
		t.Fatalf("AdminRecords: %v", err)
	}
	if page.Total != 137 {
		t.Fatalf("total = %d, want server-reported 137", page.Total)
	}
	if len(page.Data) != 1 {
		t.Fatalf("len(data) = %d", len(page.Data))
	}
	if page.Total == len(page.Data) {
		t.Fatal("test must cover total > page length")
	}
}

func TestAdminExport_ReturnsRawBytes(t *testing.T) {
	blob := []byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0x01} // xlsx is a zip
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/export" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.RawQuery != "student=bob" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Write(blob)
	}))
	defer srv.Close()

	c := New(srv.URL)
	data, err := c.AdminExport(context.Background(), "tok", Filter{Student: "bob"})
	if err != nil {
		t.Fatalf("AdminExport: %v", err)
	}
	if string(data) != string(blob) {
		t.Fatalf("export bytes altered: %v", data)
	}
}

func TestRegister_OptionalFaceImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("username") != "carol" || r.FormValue("role") != "student" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		if _, ok := r.MultipartForm.Value["company_id"]; ok {
			t.Error("empty company_id should be omitted")
		}
		if _, _, err := r.FormFile("image"); err == nil {
			t.Error("no face image was provided, image part should be absent")
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"_id":"u9","username":"carol","role":"student"}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Register(context.Background(), RegisterInput{Username: "carol", Password: "pw", Role: "student"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.ID != "u9" {
		t.Fatalf("id = %q", res.ID)
	}
}
