package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
	"github.com/hitoshi/authgate/internal/security"
)

// LoginMetrics は認証フローが記録するメトリクスのインターフェース。
// metrics.Collectorの部分集合として定義する。
type LoginMetrics interface {
	RecordLogin(provider string)
	RecordLoginFailure(provider, reason string)
	RecordExchangeLatency(duration time.Duration)
}

// LoginResult はログイン完了時にクライアントへ返す資格情報一式を表す。
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	SessionID    string
}

// Service はOAuthログインフロー全体を調停するビジネスロジックを提供する。
// 一時的なハンドシェイク状態の管理、IdPとのコード交換、ユーザーの冪等な
// プロビジョニング、トークン・セッションの発行をつなぐ。
type Service struct {
	providers map[string]OAuthProvider
	registry  *ExchangeRegistry
	userRepo  repository.UserRepository
	issuer    *TokenIssuer
	sessions  *SessionService
	sanitizer security.ProfileSanitizerService
	metrics   LoginMetrics
	now       func() time.Time
}

// NewService はServiceを生成する。
// providersに渡された各プロバイダーはName()をキーとして登録される。
func NewService(
	providers []OAuthProvider,
	registry *ExchangeRegistry,
	userRepo repository.UserRepository,
	issuer *TokenIssuer,
	sessions *SessionService,
	sanitizer security.ProfileSanitizerService,
	metrics LoginMetrics,
) *Service {
	m := make(map[string]OAuthProvider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Service{
		providers: m,
		registry:  registry,
		userRepo:  userRepo,
		issuer:    issuer,
		sessions:  sessions,
		sanitizer: sanitizer,
		metrics:   metrics,
		now:       time.Now,
	}
}

// BeginLogin は指定プロバイダーへのログインフローを開始し、認証URLを返す。
// 未知のプロバイダーはInvalidProviderで拒否し、ハンドシェイク状態を残さない。
// PKCE検証子とstateを生成してPendingExchangeとして登録する。
// この時点では永続化層への書き込みは発生しない。
func (s *Service) BeginLogin(provider string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", model.NewInvalidProviderError(provider)
	}

	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}

	state, err := GenerateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	s.registry.Put(&PendingExchange{
		State:        state,
		CodeVerifier: verifier,
		Provider:     provider,
		CreatedAt:    s.now(),
	})

	return p.AuthCodeURL(state, ChallengeS256(verifier)), nil
}

// CompleteLogin はOAuthコールバックを処理し、資格情報一式を発行する。
//
// stateに対応するPendingExchangeを原子的に消費する。見つからない・プロバイダー
// 不一致・期限超過の場合はInvalidStateで失敗し、同一stateの再試行も必ず失敗する。
// 消費後、保存していたPKCE検証子で認可コードをIdPのトークンに交換し、
// 正規化したユーザー情報で（provider, sub）のユーザーを冪等に解決する。
// IdP側の失敗はAuthenticationFailedとして返し、部分的なユーザー・セッション状態を残さない。
func (s *Service) CompleteLogin(ctx context.Context, provider, state, code string) (*LoginResult, error) {
	pending := s.registry.Consume(state, provider)
	if pending == nil {
		s.metrics.RecordLoginFailure(provider, "invalid_state")
		return nil, model.NewInvalidStateError()
	}

	p := s.providers[pending.Provider]

	exchangeStart := s.now()
	profile, err := p.Exchange(ctx, code, pending.CodeVerifier)
	s.metrics.RecordExchangeLatency(s.now().Sub(exchangeStart))
	if err != nil {
		slog.Error("oauth code exchange failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordLoginFailure(provider, "exchange_failed")
		return nil, model.NewAuthFailedError()
	}

	user, err := s.resolveUser(ctx, provider, profile)
	if err != nil {
		slog.Error("failed to resolve user",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordLoginFailure(provider, "provisioning_failed")
		return nil, model.NewAuthFailedError()
	}

	// トークン発行に失敗してもユーザー行は残るが、アイデンティティの解決は
	// 冪等なため次回ログインで同じ行に解決される（リトライ可能な失敗として扱う）
	tokens, err := s.issuer.GenerateTokens(ctx, user.ID, provider)
	if err != nil {
		slog.Error("failed to generate tokens",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordLoginFailure(provider, "token_issuance_failed")
		return nil, model.NewAuthFailedError()
	}

	session, err := s.sessions.Create(ctx, user.ID, map[string]string{
		"provider":   provider,
		"email":      user.Email,
		"name":       user.Name,
		"last_login": s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		slog.Error("failed to create session",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordLoginFailure(provider, "session_creation_failed")
		return nil, model.NewAuthFailedError()
	}

	s.metrics.RecordLogin(provider)
	slog.Info("login completed",
		slog.String("user_id", user.ID),
		slog.String("provider", provider),
		slog.String("session_id", session.ID),
	)

	return &LoginResult{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		SessionID:    session.ID,
	}, nil
}

// Providers は設定済みプロバイダー名の一覧を返す。
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

// resolveUser は(provider, sub)でユーザーを冪等に解決する。
// 見つからない場合は新規作成する。同一外部アイデンティティの同時初回ログインが
// 競合した場合、ストレージ層の一意性制約で片方が失敗するため、
// DuplicateIdentityを検出したら再取得して勝者の行に解決する。
func (s *Service) resolveUser(ctx context.Context, provider string, profile *Profile) (*model.User, error) {
	user, err := s.userRepo.FindByProviderSubject(ctx, provider, profile.Sub)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user != nil {
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", provider),
		)
		return user, nil
	}

	newUser := &model.User{
		ID:             uuid.New().String(),
		Provider:       provider,
		ProviderUserID: profile.Sub,
		Email:          profile.Email,
		Name:           s.sanitizer.Sanitize(profile.Name),
		CreatedAt:      s.now(),
	}

	err = s.userRepo.Create(ctx, newUser)
	if err == nil {
		slog.Info("new user created",
			slog.String("user_id", newUser.ID),
			slog.String("provider", provider),
		)
		return newUser, nil
	}

	if errors.Is(err, model.ErrDuplicateIdentity) {
		// 競合した初回ログインに負けた場合。勝者が作成した行に解決する
		winner, findErr := s.userRepo.FindByProviderSubject(ctx, provider, profile.Sub)
		if findErr != nil {
			return nil, fmt.Errorf("failed to refetch user after duplicate identity: %w", findErr)
		}
		if winner == nil {
			return nil, fmt.Errorf("duplicate identity reported but user not found")
		}
		return winner, nil
	}

	return nil, fmt.Errorf("failed to create user: %w", err)
}
