package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/punchamoorthee/payflow/internal/logging"
	"github.com/punchamoorthee/payflow/internal/models"
	"github.com/punchamoorthee/payflow/internal/service"
	"github.com/punchamoorthee/payflow/internal/store"
)

type recordingNotifier struct {
	mu        sync.Mutex
	templates []string
}

func (n *recordingNotifier) SendTemplate(_ context.Context, req models.TemplateEmailRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.templates = append(n.templates, req.TemplateID)
	return nil
}

func newPaymentServer(t *testing.T) (*httptest.Server, *recordingNotifier) {
	t.Helper()
	var seq atomic.Int64
	n := &recordingNotifier{}
	mem := store.NewMemoryStore()
	wf := service.NewWorkflow(mem, mem, mem, n, logging.Discard(), service.Options{
		Now:   func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
		NewID: func() string { return fmt.Sprintf("id-%d", seq.Add(1)) },
	})
	srv := httptest.NewServer(NewPaymentRouter(wf, logging.Discard()))
	t.Cleanup(srv.Close)
	return srv, n
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var v any
		if err := json.NewDecoder(resp.Body).Decode(&v); err == nil {
			if m, ok := v.(map[string]any); ok {
				out = m
			} else {
				out["items"] = v
			}
		}
	}
	return resp, out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status = %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

const s1 = `{"service_id":"S1","name":"Premium","description":"premium plan","base_price":100}`

func TestPaymentAPI_CreateThenPay(t *testing.T) {
	srv, n := newPaymentServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/payments/services", s1)
	expectStatus(t, resp, http.StatusOK)

	resp, body := do(t, http.MethodPost, srv.URL+"/payments/create",
		`{"service_id":"S1","amount":100,"user_id":"u-1","email":"user@example.com"}`)
	expectStatus(t, resp, http.StatusOK)
	if body["payment_id"] != "id-1" || body["status"] != "pending" {
		t.Fatalf("create body = %v", body)
	}
	if body["amount"] != float64(100) {
		t.Errorf("amount = %v, want JSON number 100", body["amount"])
	}

	resp, body = do(t, http.MethodPut, srv.URL+"/payments/id-1", `{"status":"paid"}`)
	expectStatus(t, resp, http.StatusOK)
	if body["status"] != "paid" {
		t.Errorf("status = %v, want paid", body["status"])
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/payments/id-1/info", "")
	expectStatus(t, resp, http.StatusOK)
	if body["status"] != "paid" {
		t.Errorf("info status = %v", body["status"])
	}

	want := []string{"payment_created", "payment_success"}
	if fmt.Sprint(n.templates) != fmt.Sprint(want) {
		t.Errorf("templates = %v, want %v", n.templates, want)
	}
}

func TestPaymentAPI_ErrorMapping(t *testing.T) {
	srv, _ := newPaymentServer(t)
	do(t, http.MethodPost, srv.URL+"/payments/services", s1)
	do(t, http.MethodPost, srv.URL+"/payments/create",
		`{"service_id":"S1","amount":100,"user_id":"u-1","email":"user@example.com"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/payments/create", `{"service_id":`, http.StatusBadRequest},
		{"duplicate service", http.MethodPost, "/payments/services", s1, http.StatusConflict},
		{"unknown service", http.MethodPost, "/payments/create", `{"service_id":"nope","amount":1,"user_id":"u","email":"a@b.co"}`, http.StatusNotFound},
		{"bad email", http.MethodPost, "/payments/create", `{"service_id":"S1","amount":1,"user_id":"u","email":"nope"}`, http.StatusUnprocessableEntity},
		{"zero amount", http.MethodPost, "/payments/create", `{"service_id":"S1","amount":0,"user_id":"u","email":"a@b.co"}`, http.StatusUnprocessableEntity},
		{"unknown status", http.MethodPut, "/payments/id-1", `{"status":"refunded"}`, http.StatusUnprocessableEntity},
		{"unknown payment", http.MethodGet, "/payments/missing/info", "", http.StatusNotFound},
		{"unknown application", http.MethodPut, "/payments/applications/missing/approve", "", http.StatusNotFound},
		{"reject without reason", http.MethodPut, "/payments/applications/missing/reject", "", http.StatusUnprocessableEntity},
		{"unknown service get", http.MethodGet, "/payments/services/missing", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, tt.method, srv.URL+tt.path, tt.body)
			expectStatus(t, resp, tt.want)
			if d, _ := body["detail"].(string); d == "" {
				t.Errorf("missing detail in %v", body)
			}
		})
	}
}

func TestPaymentAPI_ApplicationFlow(t *testing.T) {
	srv, n := newPaymentServer(t)
	do(t, http.MethodPost, srv.URL+"/payments/services", s1)

	resp, body := do(t, http.MethodPost, srv.URL+"/payments/apply",
		`{"user_id":"u-1","service_id":"S1","amount":100,"reason":"need it","email":"user@example.com"}`)
	expectStatus(t, resp, http.StatusOK)
	appID, _ := body["application_id"].(string)
	if appID == "" || body["status"] != "pending" {
		t.Fatalf("apply body = %v", body)
	}

	resp, body = do(t, http.MethodPut, srv.URL+"/payments/applications/"+appID+"/approve", "")
	expectStatus(t, resp, http.StatusOK)
	paymentID, _ := body["payment_id"].(string)
	if paymentID == "" || body["status"] != "approved" {
		t.Fatalf("approve body = %v", body)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/payments/"+paymentID+"/info", "")
	expectStatus(t, resp, http.StatusOK)
	if body["status"] != "pending" {
		t.Errorf("approved payment status = %v, want pending", body["status"])
	}

	resp, body = do(t, http.MethodDelete, srv.URL+"/payments/applications/"+appID, "")
	expectStatus(t, resp, http.StatusOK)
	if body["message"] != "Payment application successfully deleted" {
		t.Errorf("delete message = %v", body["message"])
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/payments/applications/"+appID, "")
	expectStatus(t, resp, http.StatusNotFound)

	want := []string{"application_created", "application_approved", "payment_created", "application_deleted"}
	if fmt.Sprint(n.templates) != fmt.Sprint(want) {
		t.Errorf("templates = %v, want %v", n.templates, want)
	}
}

func TestPaymentAPI_RejectReasonFromQueryOrBody(t *testing.T) {
	srv, _ := newPaymentServer(t)
	do(t, http.MethodPost, srv.URL+"/payments/services", s1)
	apply := `{"user_id":"u-1","service_id":"S1","amount":100,"reason":"need it","email":"user@example.com"}`

	_, a1 := do(t, http.MethodPost, srv.URL+"/payments/apply", apply)
	resp, body := do(t, http.MethodPut, srv.URL+"/payments/applications/"+a1["application_id"].(string)+"/reject?reason=incomplete", "")
	expectStatus(t, resp, http.StatusOK)
	if body["message"] != "Application rejected" {
		t.Errorf("message = %v", body["message"])
	}

	_, a2 := do(t, http.MethodPost, srv.URL+"/payments/apply", apply)
	resp, _ = do(t, http.MethodPut, srv.URL+"/payments/applications/"+a2["application_id"].(string)+"/reject", `{"reason":"incomplete"}`)
	expectStatus(t, resp, http.StatusOK)

	resp, body = do(t, http.MethodGet, srv.URL+"/payments/applications/"+a2["application_id"].(string), "")
	expectStatus(t, resp, http.StatusOK)
	if body["status"] != "rejected" {
		t.Errorf("status = %v, want rejected", body["status"])
	}
}

func TestPaymentAPI_ProcessWithoutBody(t *testing.T) {
	srv, _ := newPaymentServer(t)
	do(t, http.MethodPost, srv.URL+"/payments/services", s1)
	do(t, http.MethodPost, srv.URL+"/payments/create",
		`{"service_id":"S1","amount":100,"user_id":"u-1","email":"user@example.com"}`)

	resp, body := do(t, http.MethodPost, srv.URL+"/payments/id-1/process", "")
	expectStatus(t, resp, http.StatusOK)
	if body["status"] != "paid" || body["transaction_id"] == "" {
		t.Errorf("process body = %v", body)
	}
}

func TestPaymentAPI_Download(t *testing.T) {
	srv, _ := newPaymentServer(t)
	do(t, http.MethodPost, srv.URL+"/payments/services", s1)
	do(t, http.MethodPost, srv.URL+"/payments/create",
		`{"service_id":"S1","amount":100,"user_id":"u-1","email":"user@example.com"}`)

	resp, err := http.Get(srv.URL + "/payments/id-1/download")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="payment_id-1.csv"` {
		t.Errorf("content disposition = %q", cd)
	}

	resp, err = http.Get(srv.URL + "/export/payments")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="payments_20250301_100000.csv"` {
		t.Errorf("content disposition = %q", cd)
	}
}

func TestPaymentAPI_ServiceCatalog(t *testing.T) {
	srv, _ := newPaymentServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/payments/services", "")
	expectStatus(t, resp, http.StatusOK)
	if items, _ := body["items"].([]any); items == nil || len(items) != 0 {
		t.Fatalf("empty catalog = %v, want []", body)
	}

	do(t, http.MethodPost, srv.URL+"/payments/services", s1)
	resp, body = do(t, http.MethodPut, srv.URL+"/payments/services/S1", `{"base_price":120}`)
	expectStatus(t, resp, http.StatusOK)
	if body["base_price"] != float64(120) || body["name"] != "Premium" {
		t.Errorf("updated = %v", body)
	}

	resp, body = do(t, http.MethodDelete, srv.URL+"/payments/services/S1", "")
	expectStatus(t, resp, http.StatusOK)
	if body["message"] != "Payment service deleted successfully" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newPaymentServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	expectStatus(t, resp, http.StatusOK)
	if body["status"] != "healthy" || body["service"] != "payment" {
		t.Errorf("health = %v", body)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), `payflow_http_requests_total{endpoint="/health"`) {
		t.Error("request counter missing /health sample")
	}
}
