package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vitaliisemenov/videowall-controlplane/internal/core/resilience"
)

func TestGetJSON_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/widgets" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 3}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, nil)
	var out struct {
		Count int `json:"count"`
	}
	if err := c.GetJSON(context.Background(), "/widgets", &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Count != 3 {
		t.Fatalf("expected count 3, got %d", out.Count)
	}
}

func TestGetJSON_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, nil)
	var out map[string]any
	if err := c.GetJSON(context.Background(), "/broken", &out); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestPostJSON_SendsBody(t *testing.T) {
	var received struct {
		Name string `json:"name"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected application/json content type, got %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, nil)
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.PostJSON(context.Background(), "/items", map[string]string{"name": "tile-1"}, &out); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if !out.OK {
		t.Fatal("expected ok=true in response")
	}
	if received.Name != "tile-1" {
		t.Fatalf("expected server to receive name=tile-1, got %q", received.Name)
	}
}

func TestGetJSON_RetriesTransientFailures(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ready": true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, &resilience.RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	})
	var out struct {
		Ready bool `json:"ready"`
	}
	if err := c.GetJSON(context.Background(), "/slow", &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if !out.Ready {
		t.Fatal("expected eventual success after retries")
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}
