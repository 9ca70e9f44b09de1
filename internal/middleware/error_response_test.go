package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/authgate/internal/model"
)

func TestWriteAPIError_UsesErrorStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteAPIError(rec, model.NewInvalidRefreshTokenError())

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != "Invalid refresh token" {
		t.Errorf("error = %q, want %q", body.Error, "Invalid refresh token")
	}
	if body.Code != model.ErrCodeInvalidRefreshToken {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidRefreshToken)
	}
}

func TestWriteError_APIError_IsPassedThrough(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, model.NewInvalidStateError())

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != "Invalid state" {
		t.Errorf("error = %q, want %q", body.Error, "Invalid state")
	}
}

func TestWriteError_WrappedAPIError_IsUnwrapped(t *testing.T) {
	rec := httptest.NewRecorder()

	wrapped := errors.Join(errors.New("context"), model.NewUnauthorizedError())
	WriteError(rec, wrapped)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestWriteError_PlainError_Returns500(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, errors.New("db down"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	// 内部エラーの詳細は漏らさない
	if body.Error != "Internal server error" {
		t.Errorf("error = %q, want generic message", body.Error)
	}
}
