// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
)

// APIError は認証APIの統一エラーフォーマットを表す。
// 安定したエラーコードとクライアント向けメッセージ、対応するHTTPステータスを含む。
// 上流（IdP・ストレージ）の失敗詳細はログのみに記録し、メッセージには含めない。
type APIError struct {
	Code    string // エラーコード
	Message string // クライアント向けメッセージ
	Status  int    // 対応するHTTPステータス
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidProvider     = "INVALID_PROVIDER"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeAuthFailed          = "AUTH_FAILED"
	ErrCodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	ErrCodeDuplicateIdentity   = "DUPLICATE_IDENTITY"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
)

// ErrDuplicateIdentity は(provider, provider_id)の一意性制約違反を表す。
// 同一外部アイデンティティの同時初回ログインの競合で発生し、
// 再取得によるリトライで解決できる（エンドユーザーにエラーとしては返さない）。
var ErrDuplicateIdentity = &APIError{
	Code:    ErrCodeDuplicateIdentity,
	Message: "Duplicate identity",
	Status:  http.StatusConflict,
}

// NewInvalidProviderError は未知のプロバイダーが指定された場合のエラーを生成する。
func NewInvalidProviderError(provider string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidProvider,
		Message: "Invalid provider",
		Status:  http.StatusBadRequest,
	}
}

// NewInvalidStateError はstateパラメータが不明・不一致・消費済みの場合のエラーを生成する。
// タイムアウトまたはリプレイが原因のクライアントエラーとして扱う。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidState,
		Message: "Invalid state",
		Status:  http.StatusBadRequest,
	}
}

// NewAuthFailedError はIdP側の失敗（コード交換拒否、ユーザー情報取得失敗等）を表す
// エラーを生成する。詳細は漏らさず、一般的なメッセージのみを返す。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:    ErrCodeAuthFailed,
		Message: "Authentication failed",
		Status:  http.StatusInternalServerError,
	}
}

// NewInvalidRefreshTokenError はリフレッシュトークンが未登録・失効済み・期限切れの
// 場合のエラーを生成する。どの条件で失敗したかは漏らさない。
func NewInvalidRefreshTokenError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidRefreshToken,
		Message: "Invalid refresh token",
		Status:  http.StatusUnauthorized,
	}
}

// NewUnauthorizedError はセッションが存在しない・期限切れの場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:    ErrCodeUnauthorized,
		Message: "Unauthorized",
		Status:  http.StatusUnauthorized,
	}
}
