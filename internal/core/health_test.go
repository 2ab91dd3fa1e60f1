package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func runHealth(t *testing.T, probes ...HealthProbe) (*httptest.ResponseRecorder, healthResponse) {
	t.Helper()
	srv, _ := NewServer(testConfig(), testLogger())
	srv.HealthProbes = probes

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid health body: %v", err)
	}
	return rec, resp
}

func okProbe(name string) HealthProbe {
	return ProbeFunc{ProbeName: name, Fn: func(context.Context) error { return nil }}
}

func TestHandleHealth_NoProbes(t *testing.T) {
	rec, resp := runHealth(t)
	if rec.Code != http.StatusOK || resp.Status != "healthy" || resp.Version != "test" {
		t.Errorf("unexpected response %d %+v", rec.Code, resp)
	}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	rec, resp := runHealth(t, okProbe("store"), okProbe("alert_queue"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.Components["store"].Status != "healthy" || resp.Components["alert_queue"].Status != "healthy" {
		t.Errorf("components = %+v", resp.Components)
	}
}

func TestHandleHealth_FailingProbe(t *testing.T) {
	failing := ProbeFunc{ProbeName: "store", Fn: func(context.Context) error { return errors.New("connection refused") }}

	rec, resp := runHealth(t, failing, okProbe("alert_queue"))

	if rec.Code != http.StatusServiceUnavailable || resp.Status != "unhealthy" {
		t.Fatalf("unexpected response %d %+v", rec.Code, resp)
	}
	if resp.Components["store"].Message != "connection refused" {
		t.Errorf("store component = %+v", resp.Components["store"])
	}
}

func TestHandleHealth_PanickingProbe(t *testing.T) {
	panicking := ProbeFunc{ProbeName: "store", Fn: func(context.Context) error { panic("nil pool") }}

	rec, resp := runHealth(t, panicking)

	if rec.Code != http.StatusServiceUnavailable || resp.Components["store"].Status != "unhealthy" {
		t.Errorf("unexpected response %d %+v", rec.Code, resp)
	}
}

func TestHandleHealth_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the health deadline")
	}
	slow := ProbeFunc{ProbeName: "store", Fn: func(context.Context) error {
		time.Sleep(healthCheckTimeout + 500*time.Millisecond)
		return nil
	}}

	rec, resp := runHealth(t, slow)

	if rec.Code != http.StatusServiceUnavailable || resp.Components["store"].Message != "health check timed out" {
		t.Errorf("unexpected response %d %+v", rec.Code, resp)
	}
}
