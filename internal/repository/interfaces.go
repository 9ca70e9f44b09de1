// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/authgate/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByProviderSubject はproviderとprovider_idでユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderSubject(ctx context.Context, provider, providerUserID string) (*model.User, error)

	// Create はユーザーを作成する。
	// (provider, provider_id)の一意性制約違反はmodel.ErrDuplicateIdentityとして返す。
	Create(ctx context.Context, user *model.User) error
}

// RefreshTokenRepository はリフレッシュトークンの永続化インターフェース。
type RefreshTokenRepository interface {
	// Create はリフレッシュトークンレコードを作成する。
	Create(ctx context.Context, token *model.RefreshToken) error

	// FindUsableByToken はトークン値で未失効・未期限切れのレコードを検索する。
	// 見つからない場合はnilを返す。
	FindUsableByToken(ctx context.Context, token string) (*model.RefreshToken, error)

	// RevokeByToken は一致するレコードを失効済みにする。
	// 失効済みまたは存在しないトークンに対しても冪等でエラーにしない。
	RevokeByToken(ctx context.Context, token string) error

	// DeleteExpired は期限切れまたは失効済みのレコードを物理削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindActiveByID は指定IDの未期限切れセッションを取得する。
	// 見つからない場合および期限切れの場合はnilを返す。
	FindActiveByID(ctx context.Context, id string) (*model.Session, error)

	// Touch はlast_accessed_atを現在時刻に更新する。期限切れセッションは更新しない。
	Touch(ctx context.Context, id string) error

	// Extend は有効期限をexpiresAtに再設定し、last_accessed_atを更新する。
	// 期限切れセッションは更新しない。
	Extend(ctx context.Context, id string, expiresAt time.Time) error

	// UpdateData はデータブロブを置き換え、last_accessed_atを更新する。
	// 期限切れセッションは更新しない。
	UpdateData(ctx context.Context, id string, data map[string]string) error

	// DeleteByID は指定IDのセッションを削除する。対象が無くてもエラーにしない。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error

	// ListActiveByUserID は指定ユーザーの未期限切れセッション一覧を返す。
	ListActiveByUserID(ctx context.Context, userID string) ([]*model.Session, error)

	// DeleteExpired は期限切れセッションを物理削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
