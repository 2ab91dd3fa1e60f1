package core

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"outbreakwatch/internal/types"
)

func TestError_AppErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   types.ErrorCode
	}{
		{types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil), http.StatusNotFound, types.ErrCodeNotFoundAlert},
		{types.NewAppError(types.ErrCodeConflictAlertResolved, "already resolved", nil), http.StatusConflict, types.ErrCodeConflictAlertResolved},
		{types.NewAppError(types.ErrCodeUnavailableAINotConfigured, "ai off", nil), http.StatusServiceUnavailable, types.ErrCodeUnavailableAINotConfigured},
		{types.NewAppError(types.ErrCodeUpstreamAI, "upstream", nil), http.StatusBadGateway, types.ErrCodeUpstreamAI},
		{fmt.Errorf("handler: %w", types.NewAppError(types.ErrCodeValidationInvalidCount, "bad count", nil)), http.StatusBadRequest, types.ErrCodeValidationInvalidCount},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(types.WithRequestID(req.Context(), "req-1"))
			rec := httptest.NewRecorder()

			Error(rec, req, tt.err)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			resp := decodeError(t, rec)
			if resp.Success || resp.Error.Code != string(tt.code) || resp.Error.RequestID != "req-1" {
				t.Errorf("unexpected envelope: %+v", resp)
			}
		})
	}
}

func TestError_GenericErrorHidesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("internal error message leaked")
	}
}

func TestJSON_MarshalFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, map[string]any{"bad": make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestDecodeJSON(t *testing.T) {
	type briefRequest struct {
		Area  string `json:"area"`
		Count int    `json:"count"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"area":"560001","count":3}`, false},
		{"empty", ``, true},
		{"syntax", `{"area":`, true},
		{"unknown field", `{"area":"x","extra":1}`, true},
		{"wrong type", `{"area":"x","count":"three"}`, true},
		{"trailing value", `{"area":"x"}{"area":"y"}`, true},
		{"oversized", `{"area":"` + strings.Repeat("a", maxRequestBodySize) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst briefRequest
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)

			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Area != "560001" || dst.Count != 3 {
					t.Errorf("decoded %+v", dst)
				}
				return
			}

			var appErr *types.AppError
			if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeValidationInvalidBody {
				t.Fatalf("expected validation_invalid_body, got %v", err)
			}
		})
	}
}
