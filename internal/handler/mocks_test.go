package handler

import (
	"context"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	beginLoginFn    func(provider string) (string, error)
	completeLoginFn func(ctx context.Context, provider, state, code string) (*auth.LoginResult, error)
}

func (m *mockAuthService) BeginLogin(provider string) (string, error) {
	if m.beginLoginFn != nil {
		return m.beginLoginFn(provider)
	}
	return "https://example.com/authorize?state=test-state", nil
}

func (m *mockAuthService) CompleteLogin(ctx context.Context, provider, state, code string) (*auth.LoginResult, error) {
	if m.completeLoginFn != nil {
		return m.completeLoginFn(ctx, provider, state, code)
	}
	return &auth.LoginResult{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresIn:    2592000,
		SessionID:    "session-1",
	}, nil
}

type mockTokenService struct {
	refreshFn func(ctx context.Context, refreshToken string) (*auth.AccessTokenResult, error)
	revokeFn  func(ctx context.Context, refreshToken string) error
}

func (m *mockTokenService) RefreshAccessToken(ctx context.Context, refreshToken string) (*auth.AccessTokenResult, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return &auth.AccessTokenResult{AccessToken: "new-access-token", ExpiresIn: 3600}, nil
}

func (m *mockTokenService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, refreshToken)
	}
	return nil
}

type mockSessionService struct {
	deleteFn             func(ctx context.Context, id string) error
	deleteUserSessionsFn func(ctx context.Context, userID string) error
}

func (m *mockSessionService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockSessionService) DeleteUserSessions(ctx context.Context, userID string) error {
	if m.deleteUserSessionsFn != nil {
		return m.deleteUserSessionsFn(ctx, userID)
	}
	return nil
}

type mockSessionGetter struct {
	getFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionGetter) Get(ctx context.Context, id string) (*model.Session, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

type mockTokenMetrics struct {
	refreshes   int
	revocations int
}

func (m *mockTokenMetrics) RecordTokenRefresh()    { m.refreshes++ }
func (m *mockTokenMetrics) RecordTokenRevocation() { m.revocations++ }

type mockPinger struct {
	pingFn func(ctx context.Context) error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

type nopHTTPMetrics struct{}

func (nopHTTPMetrics) RecordHTTPRequest(method, path string, status int) {}

// --- compile-time interface checks ---
var _ AuthServiceInterface = (*mockAuthService)(nil)
var _ TokenServiceInterface = (*mockTokenService)(nil)
var _ SessionServiceInterface = (*mockSessionService)(nil)
var _ middleware.SessionGetter = (*mockSessionGetter)(nil)
var _ TokenMetrics = (*mockTokenMetrics)(nil)
var _ Pinger = (*mockPinger)(nil)
var _ middleware.HTTPMetricsRecorder = nopHTTPMetrics{}
