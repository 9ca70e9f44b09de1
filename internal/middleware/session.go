// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/authgate/internal/model"
)

// SessionIDHeader はクライアントがセッションIDを渡すリクエストヘッダー名。
const SessionIDHeader = "x-session-id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	sessionContextKey = contextKey("session")
	userIDContextKey  = contextKey("user_id")
)

// SessionGetter はセッションの取得に必要なインターフェース。
// auth.SessionServiceの部分集合として定義する。取得はlastAccessedAtの更新と
// 期限間近セッションの自動延長を伴う。
type SessionGetter interface {
	Get(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はx-session-idヘッダーからセッションを解決するミドルウェアを返す。
// 解決したセッションとユーザーIDをリクエストコンテキストに注入する。
// ヘッダーが無い、またはセッションが存在しない・期限切れの場合は401を返す。
func NewSessionMiddleware(sessions SessionGetter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(SessionIDHeader)
			if sessionID == "" {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			session, err := sessions.Get(r.Context(), sessionID)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}
			if session == nil {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			ctx = context.WithValue(ctx, userIDContextKey, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.Session, error) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok || session == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return session, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, session)
	return context.WithValue(ctx, userIDContextKey, session.UserID)
}
