package capture

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStaticLocator(t *testing.T) {
	fix, err := StaticLocator{Lat: 12.9, Lon: 77.6}.Fix(context.Background())
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if fix.Lat != 12.9 || fix.Lon != 77.6 {
		t.Fatalf("fix = %+v", fix)
	}
}

func TestHTTPLocator_RequestsHighAccuracy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("accuracy") != "high" {
			t.Errorf("accuracy = %q, want high", r.URL.Query().Get("accuracy"))
		}
		io.WriteString(w, `{"lat":12.9,"lon":77.6}`)
	}))
	defer srv.Close()

	l := NewHTTPLocator(srv.URL)
	fix, err := l.Fix(context.Background())
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if fix != (Fix{Lat: 12.9, Lon: 77.6}) {
		t.Fatalf("fix = %+v", fix)
	}
}

func TestHTTPLocator_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	l := NewHTTPLocator(srv.URL)
	l.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := l.Fix(context.Background())
	if !errors.Is(err, ErrLocationTimeout) {
		t.Fatalf("err = %v, want ErrLocationTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("wait not bounded, took %s", elapsed)
	}
}

func TestHTTPLocator_DeniedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewHTTPLocator(srv.URL).Fix(context.Background())
	if !errors.Is(err, ErrLocationUnavailable) {
		t.Fatalf("err = %v, want ErrLocationUnavailable", err)
	}
}

func TestHTTPLocator_MissingCoordinatesIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"class":"TPV"}`)
	}))
	defer srv.Close()

	_, err := NewHTTPLocator(srv.URL).Fix(context.Background())
	if !errors.Is(err, ErrLocationUnavailable) {
		t.Fatalf("err = %v, want ErrLocationUnavailable", err)
	}
}
