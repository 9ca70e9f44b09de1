// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizerService はIdPから取得したプロフィール文字列（表示名等）を
// サニタイズし、保存・表示時のXSSリスクからユーザーを保護する。
// bluemondayライブラリのStrictPolicyを使用し、HTMLタグをすべて除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizerService はプロフィール文字列のサニタイズ機能のインターフェースを定義する。
// IdPのユーザー情報レスポンスを正規化した直後、永続化の前に使用される。
type ProfileSanitizerService interface {
	// Sanitize は文字列からHTMLタグおよびスクリプト断片を除去して返す。
	// 前後の空白は取り除く。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// profileSanitizer はProfileSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
// プロフィール文字列にHTMLが含まれる正当な理由は無いため、
// タグを一切許可しないStrictPolicyを使用する。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は文字列からHTMLタグおよびスクリプト断片を除去して返す。
func (s *profileSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ ProfileSanitizerService = (*profileSanitizer)(nil)
