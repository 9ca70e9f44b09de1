package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// accessTokenIssuer はアクセストークンのissクレームに設定する発行者名。
const accessTokenIssuer = "authgate"

// TokenPair はログイン時に発行される資格情報の組を表す。
// ExpiresInはリフレッシュトークンの有効期間（秒）。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// AccessTokenResult はリフレッシュで発行される新しいアクセストークンを表す。
// ExpiresInはアクセストークンの有効期間（秒）。
type AccessTokenResult struct {
	AccessToken string
	ExpiresIn   int
}

// AccessTokenClaims は検証済みアクセストークンから取り出したクレームを表す。
type AccessTokenClaims struct {
	UserID   string
	Provider string
}

// accessTokenClaims はJWTエンコード用の内部クレーム型。
type accessTokenClaims struct {
	jwt.RegisteredClaims
	Provider string `json:"provider"`
}

// TokenIssuerConfig はトークン発行の設定。
type TokenIssuerConfig struct {
	SigningSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TokenIssuer はアクセストークン（署名付きJWT）とリフレッシュトークン
// （不透明なランダム文字列、DB永続化）の発行・検証・失効を提供する。
type TokenIssuer struct {
	tokenRepo repository.RefreshTokenRepository
	userRepo  repository.UserRepository
	config    TokenIssuerConfig
	now       func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(
	tokenRepo repository.RefreshTokenRepository,
	userRepo repository.UserRepository,
	config TokenIssuerConfig,
) *TokenIssuer {
	return &TokenIssuer{
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		config:    config,
		now:       time.Now,
	}
}

// GenerateTokens はユーザーのアクセストークンとリフレッシュトークンを発行する。
// アクセストークンはHS256署名のJWTで、DBを参照せずに検証できる。
// リフレッシュトークンはDBに永続化され、失効・期限切れで使用不能になる。
func (i *TokenIssuer) GenerateTokens(ctx context.Context, userID, provider string) (*TokenPair, error) {
	accessToken, err := i.mintAccessToken(userID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}

	refreshValue, err := generateRefreshTokenValue()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := i.now()
	record := &model.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     refreshValue,
		ExpiresAt: now.Add(i.config.RefreshTokenTTL),
		Revoked:   false,
		CreatedAt: now,
	}

	if err := i.tokenRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshValue,
		ExpiresIn:    int(i.config.RefreshTokenTTL.Seconds()),
	}, nil
}

// RefreshAccessToken はリフレッシュトークンと引き換えに新しいアクセストークンを発行する。
// 未登録・失効済み・期限切れのトークン、および所有ユーザーが存在しない場合は
// InvalidRefreshTokenを返す（どの条件で失敗したかは漏らさない）。
// リフレッシュトークン自体はローテーションしない。
func (i *TokenIssuer) RefreshAccessToken(ctx context.Context, refreshToken string) (*AccessTokenResult, error) {
	record, err := i.tokenRepo.FindUsableByToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if record == nil {
		return nil, model.NewInvalidRefreshTokenError()
	}

	user, err := i.userRepo.FindByID(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token owner: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidRefreshTokenError()
	}

	accessToken, err := i.mintAccessToken(user.ID, user.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}

	return &AccessTokenResult{
		AccessToken: accessToken,
		ExpiresIn:   int(i.config.AccessTokenTTL.Seconds()),
	}, nil
}

// RevokeRefreshToken は一致するリフレッシュトークンを失効させる。
// 失効済みまたは存在しないトークンの失効は冪等なno-opであり、エラーにしない。
func (i *TokenIssuer) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if err := i.tokenRepo.RevokeByToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// ParseAccessToken はアクセストークンの署名と有効期限を検証し、クレームを取り出す。
// DBへの問い合わせは行わない。
func (i *TokenIssuer) ParseAccessToken(tokenString string) (*AccessTokenClaims, error) {
	var claims accessTokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return []byte(i.config.SigningSecret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(accessTokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("access token has empty subject")
	}

	return &AccessTokenClaims{
		UserID:   claims.Subject,
		Provider: claims.Provider,
	}, nil
}

// mintAccessToken はuserIDとproviderを埋め込んだ署名付きJWTを生成する。
func (i *TokenIssuer) mintAccessToken(userID, provider string) (string, error) {
	now := i.now()
	claims := accessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    accessTokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.AccessTokenTTL)),
		},
		Provider: provider,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.config.SigningSecret))
	if err != nil {
		return "", err
	}
	return signed, nil
}

// generateRefreshTokenValue は暗号的に安全な不透明トークン値を生成する。
// 32バイトの乱数を16進エンコードし、64文字になる。
// 衝突対策はこのエントロピーとtokenカラムのUNIQUE制約に依存する。
func generateRefreshTokenValue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
