// Package auth はOAuth認証フロー、トークン発行、セッション管理を提供する。
package auth

import "context"

// Profile はOAuthプロバイダーから取得し正規化したユーザー情報を表す。
// プロバイダーごとのレスポンス形状の差異は各実装内で吸収し、
// この共通形状に変換してから後続処理に渡す。
type Profile struct {
	Sub   string // プロバイダーが割り当てたユーザー識別子
	Email string
	Name  string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// プロバイダーの追加はこの契約の実装を1つ追加することで行う。
type OAuthProvider interface {
	// Name はプロバイダー識別子（"google"等）を返す。
	Name() string

	// AuthCodeURL はstateとPKCEチャレンジを含むOAuth認証URLを生成する。
	AuthCodeURL(state, codeChallenge string) string

	// Exchange は認可コードをトークンに交換し、正規化したユーザー情報を取得する。
	// codeVerifierはPKCEの証明としてトークンリクエストに含める。
	Exchange(ctx context.Context, code, codeVerifier string) (*Profile, error)
}
