package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/punchamoorthee/payflow/internal/logging"
	"github.com/punchamoorthee/payflow/internal/logsink"
	"github.com/punchamoorthee/payflow/internal/store"
)

func newLogSinkServer(t *testing.T, opts logsink.Options) (*httptest.Server, *logsink.Sink) {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir(), 0, -1)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	sink := logsink.New(fs, logging.Discard(), opts)
	srv := httptest.NewServer(NewLogSinkRouter(sink, logging.Discard()))
	t.Cleanup(func() {
		srv.Close()
		sink.Close()
	})
	return srv, sink
}

func TestLogSinkAPI_IngestAndQuery(t *testing.T) {
	srv, _ := newLogSinkServer(t, logsink.Options{})

	resp, body := do(t, http.MethodPost, srv.URL+"/log",
		`{"service":"payment","level":"info","message":"payment created","details":{"payment_id":"p-1"},"timestamp":"2025-03-01T10:00:00Z"}`)
	expectStatus(t, resp, http.StatusOK)
	if body["status"] != "success" {
		t.Errorf("body = %v", body)
	}

	resp, body = do(t, http.MethodPost, srv.URL+"/log/batch", `{"logs":[
		{"service":"payment","level":"ERROR","message":"gateway down","timestamp":"2025-03-01T11:00:00Z"},
		{"service":"payment","level":"WARNING","message":"slow mailer","timestamp":"2025-03-01T12:00:00Z"}
	]}`)
	expectStatus(t, resp, http.StatusOK)
	if body["count"] != float64(2) {
		t.Errorf("batch count = %v, want 2", body["count"])
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/logs/payment", "")
	expectStatus(t, resp, http.StatusOK)
	if body["total"] != float64(3) {
		t.Fatalf("total = %v, want 3", body["total"])
	}
	logs := body["logs"].([]any)
	first := logs[0].(map[string]any)
	if first["message"] != "payment created" || first["level"] != "INFO" {
		t.Errorf("first = %v", first)
	}

	q := url.Values{}
	q.Set("level", "error")
	resp, body = do(t, http.MethodGet, srv.URL+"/logs/payment?"+q.Encode(), "")
	expectStatus(t, resp, http.StatusOK)
	if body["total"] != float64(1) {
		t.Errorf("level filter total = %v, want 1", body["total"])
	}

	q = url.Values{}
	q.Set("start_time", "2025-03-01T10:30:00")
	q.Set("end_time", "2025-03-01T11:30:00Z")
	resp, body = do(t, http.MethodGet, srv.URL+"/logs/payment?"+q.Encode(), "")
	expectStatus(t, resp, http.StatusOK)
	if body["total"] != float64(1) {
		t.Errorf("window total = %v, want 1", body["total"])
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/logs/payment?contains=slow&limit=1&offset=0", "")
	expectStatus(t, resp, http.StatusOK)
	if got := len(body["logs"].([]any)); got != 1 {
		t.Errorf("contains page = %d records, want 1", got)
	}
}

func TestLogSinkAPI_ZonelessTimestamp(t *testing.T) {
	srv, _ := newLogSinkServer(t, logsink.Options{})

	resp, _ := do(t, http.MethodPost, srv.URL+"/log",
		`{"service":"payment","level":"INFO","message":"from python","timestamp":"2025-03-01T10:00:00.123456"}`)
	expectStatus(t, resp, http.StatusOK)
	resp, _ = do(t, http.MethodPost, srv.URL+"/log",
		`{"service":"payment","level":"INFO","message":"bad clock","timestamp":"last tuesday"}`)
	expectStatus(t, resp, http.StatusBadRequest)

	_, body := do(t, http.MethodGet, srv.URL+"/logs/payment", "")
	if body["total"] != float64(1) {
		t.Fatalf("total = %v, want 1", body["total"])
	}
	rec := body["logs"].([]any)[0].(map[string]any)
	ts, err := time.Parse(time.RFC3339Nano, rec["timestamp"].(string))
	if err != nil {
		t.Fatalf("stored timestamp %v: %v", rec["timestamp"], err)
	}
	if want := time.Date(2025, 3, 1, 10, 0, 0, 123456000, time.UTC); !ts.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ts, want)
	}
}

func TestLogSinkAPI_ReadYourWritesAsync(t *testing.T) {
	srv, _ := newLogSinkServer(t, logsink.Options{Async: true, QueueSize: 64})

	for i := 0; i < 20; i++ {
		resp, _ := do(t, http.MethodPost, srv.URL+"/log",
			fmt.Sprintf(`{"service":"payment","level":"INFO","message":"queued %d"}`, i))
		expectStatus(t, resp, http.StatusOK)
	}
	resp, body := do(t, http.MethodGet, srv.URL+"/logs/payment?limit=100", "")
	expectStatus(t, resp, http.StatusOK)
	if body["total"] != float64(20) {
		t.Errorf("total = %v right after ingest, want 20", body["total"])
	}
}

func TestLogSinkAPI_EmptyService(t *testing.T) {
	srv, _ := newLogSinkServer(t, logsink.Options{})
	resp, body := do(t, http.MethodGet, srv.URL+"/logs/mailer", "")
	expectStatus(t, resp, http.StatusOK)
	if logs, ok := body["logs"].([]any); !ok || len(logs) != 0 || body["total"] != float64(0) {
		t.Errorf("body = %v, want empty page", body)
	}
}

func TestLogSinkAPI_Rejects(t *testing.T) {
	srv, _ := newLogSinkServer(t, logsink.Options{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad level", http.MethodPost, "/log", `{"service":"payment","level":"trace","message":"x"}`, http.StatusUnprocessableEntity},
		{"bad service", http.MethodPost, "/log", `{"service":"../etc","level":"INFO","message":"x"}`, http.StatusUnprocessableEntity},
		{"no message", http.MethodPost, "/log", `{"service":"payment","level":"INFO"}`, http.StatusUnprocessableEntity},
		{"malformed", http.MethodPost, "/log", `{"service"`, http.StatusBadRequest},
		{"batch with one bad entry", http.MethodPost, "/log/batch", `{"logs":[{"service":"payment","level":"INFO","message":"ok"},{"service":"payment","level":"nope","message":"x"}]}`, http.StatusUnprocessableEntity},
		{"bad start_time", http.MethodGet, "/logs/payment?start_time=yesterday", "", http.StatusUnprocessableEntity},
		{"bad limit", http.MethodGet, "/logs/payment?limit=ten", "", http.StatusUnprocessableEntity},
		{"negative offset", http.MethodGet, "/logs/payment?offset=-1", "", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, tt.method, srv.URL+tt.path, tt.body)
			expectStatus(t, resp, tt.want)
		})
	}

	// The rejected batch must not have written its valid entry.
	_, body := do(t, http.MethodGet, srv.URL+"/logs/payment", "")
	if body["total"] != float64(0) {
		t.Errorf("total = %v after rejected writes, want 0", body["total"])
	}
}

func TestLogSinkAPI_Closed(t *testing.T) {
	srv, sink := newLogSinkServer(t, logsink.Options{})
	sink.Close()

	resp, _ := do(t, http.MethodPost, srv.URL+"/log", `{"service":"payment","level":"INFO","message":"late"}`)
	expectStatus(t, resp, http.StatusServiceUnavailable)
}
