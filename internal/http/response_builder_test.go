package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"paylog/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusCreated).Set("balance", "1.00").Header("X-Test", "1").Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header not set")
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != true || body["balance"] != "1.00" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{core.ErrInvalidAmount, http.StatusBadRequest, "invalid amount"},
		{fmt.Errorf("apply: %w", core.ErrInvalidDate), http.StatusBadRequest, "invalid date"},
		{core.ErrMemberNotFound, http.StatusNotFound, "member not found"},
		{core.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{core.StorageFailure("insert", errors.New("disk I/O error")), http.StatusInternalServerError, "internal error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal error"},
		{core.ErrValidation, http.StatusBadRequest, "invalid request"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		ErrorFor(tt.err).Write(w)
		if w.Code != tt.status {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.status)
		}
		var body map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["success"] != false || body["error"] != tt.message {
			t.Errorf("%v: body = %v, want error %q", tt.err, body, tt.message)
		}
	}
}

func TestUnauthorizedErrorIsBare(t *testing.T) {
	w := httptest.NewRecorder()
	UnauthorizedError().Write(w)
	if got := w.Body.String(); got != "{\"success\":false}\n" {
		t.Errorf("body = %q", got)
	}
}
