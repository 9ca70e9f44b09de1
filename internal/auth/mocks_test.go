package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
	"github.com/hitoshi/authgate/internal/security"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn              func(ctx context.Context, id string) (*model.User, error)
	findByProviderSubjectFn func(ctx context.Context, provider, providerUserID string) (*model.User, error)
	createFn                func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByProviderSubject(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	if m.findByProviderSubjectFn != nil {
		return m.findByProviderSubjectFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

type mockRefreshTokenRepo struct {
	createFn            func(ctx context.Context, token *model.RefreshToken) error
	findUsableByTokenFn func(ctx context.Context, token string) (*model.RefreshToken, error)
	revokeByTokenFn     func(ctx context.Context, token string) error
	deleteExpiredFn     func(ctx context.Context) (int64, error)
}

func (m *mockRefreshTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	if m.createFn != nil {
		return m.createFn(ctx, token)
	}
	return nil
}

func (m *mockRefreshTokenRepo) FindUsableByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	if m.findUsableByTokenFn != nil {
		return m.findUsableByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockRefreshTokenRepo) RevokeByToken(ctx context.Context, token string) error {
	if m.revokeByTokenFn != nil {
		return m.revokeByTokenFn(ctx, token)
	}
	return nil
}

func (m *mockRefreshTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

type mockSessionRepo struct {
	createFn             func(ctx context.Context, session *model.Session) error
	findActiveByIDFn     func(ctx context.Context, id string) (*model.Session, error)
	touchFn              func(ctx context.Context, id string) error
	extendFn             func(ctx context.Context, id string, expiresAt time.Time) error
	updateDataFn         func(ctx context.Context, id string, data map[string]string) error
	deleteByIDFn         func(ctx context.Context, id string) error
	deleteByUserIDFn     func(ctx context.Context, userID string) error
	listActiveByUserIDFn func(ctx context.Context, userID string) ([]*model.Session, error)
	deleteExpiredFn      func(ctx context.Context) (int64, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindActiveByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findActiveByIDFn != nil {
		return m.findActiveByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) Touch(ctx context.Context, id string) error {
	if m.touchFn != nil {
		return m.touchFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	if m.extendFn != nil {
		return m.extendFn(ctx, id, expiresAt)
	}
	return nil
}

func (m *mockSessionRepo) UpdateData(ctx context.Context, id string, data map[string]string) error {
	if m.updateDataFn != nil {
		return m.updateDataFn(ctx, id, data)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) ListActiveByUserID(ctx context.Context, userID string) ([]*model.Session, error) {
	if m.listActiveByUserIDFn != nil {
		return m.listActiveByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

type mockOAuthProvider struct {
	name          string
	authCodeURLFn func(state, codeChallenge string) string
	exchangeFn    func(ctx context.Context, code, codeVerifier string) (*Profile, error)
}

func (m *mockOAuthProvider) Name() string {
	if m.name != "" {
		return m.name
	}
	return "google"
}

func (m *mockOAuthProvider) AuthCodeURL(state, codeChallenge string) string {
	if m.authCodeURLFn != nil {
		return m.authCodeURLFn(state, codeChallenge)
	}
	return "https://example.com/authorize?state=" + state
}

func (m *mockOAuthProvider) Exchange(ctx context.Context, code, codeVerifier string) (*Profile, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code, codeVerifier)
	}
	return &Profile{Sub: "sub-1", Email: "a@b.com", Name: "A"}, nil
}

// passthroughSanitizer は入力をそのまま返すサニタイザ。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(raw string) string { return raw }

// nopMetrics はメトリクス呼び出しを記録するだけのコレクター。
type nopMetrics struct {
	mu       sync.Mutex
	logins   []string
	failures []string
}

func (m *nopMetrics) RecordLogin(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, provider)
}

func (m *nopMetrics) RecordLoginFailure(provider, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, provider+":"+reason)
}

func (m *nopMetrics) RecordExchangeLatency(time.Duration) {}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.RefreshTokenRepository = (*mockRefreshTokenRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)
var _ security.ProfileSanitizerService = passthroughSanitizer{}
var _ LoginMetrics = (*nopMetrics)(nil)
