// Package model はドメインモデルを定義する。
package model

import "time"

// User は外部IdP経由で認証されたサービス利用ユーザーを表す。
// (Provider, ProviderUserID) の組は一意であり、同一の外部アイデンティティによる
// 再ログインは常に同じUserレコードに解決される。
type User struct {
	ID             string
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	CreatedAt      time.Time
}

// RefreshToken は長命・失効可能なリフレッシュトークンを表す。
// !Revoked かつ ExpiresAt > now の場合のみ使用可能。
// アクセストークンと異なり不透明なランダム文字列であり、DBに永続化される。
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Session はサーバーサイドのログインセッションを表す。
// リフレッシュトークンとは独立したライフサイクルを持つ。
// Dataにはprovider、email、name、last_login等の拡張可能なキー/値を保持する。
type Session struct {
	ID             string
	UserID         string
	Data           map[string]string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// IsExpired はセッションが期限切れかどうかを判定する。
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Usable はリフレッシュトークンが使用可能かどうかを判定する。
// 失効済みまたは期限切れのトークンは使用できない。
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
