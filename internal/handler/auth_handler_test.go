package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
)

// newTestDeps は全依存をデフォルトのモックで埋めたRouterDepsを返す。
// テスト側で必要なフィールドだけ差し替える。
func newTestDeps() *RouterDeps {
	return &RouterDeps{
		Sessions:          &mockSessionGetter{},
		CORSAllowedOrigin: "http://localhost:3000",
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		HTTPMetrics:       nopHTTPMetrics{},
		AuthService:       &mockAuthService{},
		TokenService:      &mockTokenService{},
		SessionService:    &mockSessionService{},
		TokenMetrics:      &mockTokenMetrics{},
		DB:                &mockPinger{},
		MetricsGatherer:   prometheus.NewRegistry(),
	}
}

func doRequest(deps *RouterDeps, method, target string, body io.Reader) *httptest.ResponseRecorder {
	router := NewRouter(deps)
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- ログインフロー ---

func TestLogin_RedirectsToProvider(t *testing.T) {
	deps := newTestDeps()
	deps.AuthService = &mockAuthService{
		beginLoginFn: func(provider string) (string, error) {
			if provider != "google" {
				t.Errorf("provider = %q, want %q", provider, "google")
			}
			return "https://accounts.google.com/o/oauth2/auth?state=abc", nil
		},
	}

	rec := doRequest(deps, http.MethodGet, "/auth/login/google", nil)

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "https://accounts.google.com/") {
		t.Errorf("Location = %q, want provider URL", loc)
	}
}

func TestLogin_UnknownProvider_Returns400(t *testing.T) {
	deps := newTestDeps()
	deps.AuthService = &mockAuthService{
		beginLoginFn: func(provider string) (string, error) {
			return "", model.NewInvalidProviderError(provider)
		},
	}

	rec := doRequest(deps, http.MethodGet, "/auth/login/github", nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if body := decodeError(t, rec); body.Error != "Invalid provider" {
		t.Errorf("error = %q, want %q", body.Error, "Invalid provider")
	}
}

func TestCallback_ReturnsCredentials(t *testing.T) {
	deps := newTestDeps()
	deps.AuthService = &mockAuthService{
		completeLoginFn: func(ctx context.Context, provider, state, code string) (*auth.LoginResult, error) {
			if provider != "google" || state != "state-1" || code != "code-1" {
				t.Errorf("got (%q, %q, %q), want (google, state-1, code-1)", provider, state, code)
			}
			return &auth.LoginResult{
				AccessToken:  "access-token",
				RefreshToken: "refresh-token",
				ExpiresIn:    2592000,
				SessionID:    "session-1",
			}, nil
		},
	}

	rec := doRequest(deps, http.MethodGet, "/auth/callback/google?state=state-1&code=code-1", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.AccessToken != "access-token" {
		t.Errorf("accessToken = %q, want %q", body.AccessToken, "access-token")
	}
	if body.ExpiresIn != 2592000 {
		t.Errorf("expiresIn = %d, want 2592000", body.ExpiresIn)
	}
	if body.SessionID != "session-1" {
		t.Errorf("sessionId = %q, want %q", body.SessionID, "session-1")
	}
}

func TestCallback_InvalidState_Returns400(t *testing.T) {
	deps := newTestDeps()
	deps.AuthService = &mockAuthService{
		completeLoginFn: func(ctx context.Context, provider, state, code string) (*auth.LoginResult, error) {
			return nil, model.NewInvalidStateError()
		},
	}

	rec := doRequest(deps, http.MethodGet, "/auth/callback/google?state=reused&code=code-1", nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if body := decodeError(t, rec); body.Error != "Invalid state" {
		t.Errorf("error = %q, want %q", body.Error, "Invalid state")
	}
}

func TestCallback_ExchangeFailure_Returns500(t *testing.T) {
	deps := newTestDeps()
	deps.AuthService = &mockAuthService{
		completeLoginFn: func(ctx context.Context, provider, state, code string) (*auth.LoginResult, error) {
			return nil, model.NewAuthFailedError()
		},
	}

	rec := doRequest(deps, http.MethodGet, "/auth/callback/google?state=state-1&code=bad", nil)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if body := decodeError(t, rec); body.Error != "Authentication failed" {
		t.Errorf("error = %q, want %q", body.Error, "Authentication failed")
	}
}

// --- トークン操作 ---

func TestRefresh_ReturnsNewAccessToken(t *testing.T) {
	deps := newTestDeps()
	metrics := &mockTokenMetrics{}
	deps.TokenMetrics = metrics

	rec := doRequest(deps, http.MethodPost, "/auth/refresh", strings.NewReader(`{"refreshToken":"valid-token"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body refreshResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.AccessToken != "new-access-token" {
		t.Errorf("accessToken = %q, want %q", body.AccessToken, "new-access-token")
	}
	if body.ExpiresIn != 3600 {
		t.Errorf("expiresIn = %d, want 3600", body.ExpiresIn)
	}
	if metrics.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", metrics.refreshes)
	}
}

func TestRefresh_InvalidToken_Returns401(t *testing.T) {
	deps := newTestDeps()
	deps.TokenService = &mockTokenService{
		refreshFn: func(ctx context.Context, refreshToken string) (*auth.AccessTokenResult, error) {
			return nil, model.NewInvalidRefreshTokenError()
		},
	}

	rec := doRequest(deps, http.MethodPost, "/auth/refresh", strings.NewReader(`{"refreshToken":"expired"}`))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if body := decodeError(t, rec); body.Error != "Invalid refresh token" {
		t.Errorf("error = %q, want %q", body.Error, "Invalid refresh token")
	}
}

func TestRefresh_MalformedBody_Returns401(t *testing.T) {
	deps := newTestDeps()

	rec := doRequest(deps, http.MethodPost, "/auth/refresh", strings.NewReader(`not json`))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRevoke_ReturnsMessage(t *testing.T) {
	deps := newTestDeps()
	metrics := &mockTokenMetrics{}
	deps.TokenMetrics = metrics

	var revoked string
	deps.TokenService = &mockTokenService{
		revokeFn: func(ctx context.Context, refreshToken string) error {
			revoked = refreshToken
			return nil
		},
	}

	rec := doRequest(deps, http.MethodPost, "/auth/revoke", strings.NewReader(`{"refreshToken":"token-1"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if revoked != "token-1" {
		t.Errorf("revoked = %q, want %q", revoked, "token-1")
	}
	if metrics.revocations != 1 {
		t.Errorf("revocations = %d, want 1", metrics.revocations)
	}

	var body messageResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Message == "" {
		t.Error("expected non-empty message")
	}
}

func TestRevoke_StorageFailure_Returns500(t *testing.T) {
	deps := newTestDeps()
	deps.TokenService = &mockTokenService{
		revokeFn: func(ctx context.Context, refreshToken string) error {
			return errors.New("db down")
		},
	}

	rec := doRequest(deps, http.MethodPost, "/auth/revoke", strings.NewReader(`{"refreshToken":"token-1"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// --- セッション管理 ---

func activeSessionGetter(session *model.Session) *mockSessionGetter {
	return &mockSessionGetter{
		getFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == session.ID {
				return session, nil
			}
			return nil, nil
		},
	}
}

func TestGetSession_ReturnsSessionView(t *testing.T) {
	session := &model.Session{
		ID:        "session-1",
		UserID:    "user-1",
		Data:      map[string]string{"provider": "google", "email": "a@b.com"},
		ExpiresAt: time.Now().Add(12 * time.Hour),
	}
	deps := newTestDeps()
	deps.Sessions = activeSessionGetter(session)

	router := NewRouter(deps)
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.Header.Set(middleware.SessionIDHeader, "session-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body sessionView
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.SessionID != "session-1" {
		t.Errorf("sessionId = %q, want %q", body.SessionID, "session-1")
	}
	if body.UserID != "user-1" {
		t.Errorf("userId = %q, want %q", body.UserID, "user-1")
	}
	if body.Data["email"] != "a@b.com" {
		t.Errorf("data.email = %q, want %q", body.Data["email"], "a@b.com")
	}
}

func TestGetSession_MissingHeader_Returns401(t *testing.T) {
	deps := newTestDeps()

	rec := doRequest(deps, http.MethodGet, "/auth/session", nil)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestDeleteSession_DeletesCurrentSession(t *testing.T) {
	session := &model.Session{ID: "session-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	deps := newTestDeps()
	deps.Sessions = activeSessionGetter(session)

	var deleted string
	deps.SessionService = &mockSessionService{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}

	router := NewRouter(deps)
	req := httptest.NewRequest(http.MethodDelete, "/auth/session", nil)
	req.Header.Set(middleware.SessionIDHeader, "session-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if deleted != "session-1" {
		t.Errorf("deleted = %q, want %q", deleted, "session-1")
	}
}

func TestDeleteAllSessions_DeletesByUser(t *testing.T) {
	session := &model.Session{ID: "session-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	deps := newTestDeps()
	deps.Sessions = activeSessionGetter(session)

	var deletedUser string
	deps.SessionService = &mockSessionService{
		deleteUserSessionsFn: func(ctx context.Context, userID string) error {
			deletedUser = userID
			return nil
		},
	}

	router := NewRouter(deps)
	req := httptest.NewRequest(http.MethodDelete, "/auth/sessions", nil)
	req.Header.Set(middleware.SessionIDHeader, "session-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if deletedUser != "user-1" {
		t.Errorf("deletedUser = %q, want %q", deletedUser, "user-1")
	}
}
