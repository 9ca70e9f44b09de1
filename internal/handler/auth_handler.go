// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするログインフローのインターフェース。
type AuthServiceInterface interface {
	BeginLogin(provider string) (string, error)
	CompleteLogin(ctx context.Context, provider, state, code string) (*auth.LoginResult, error)
}

// TokenServiceInterface はトークンの再発行・失効に必要なインターフェース。
type TokenServiceInterface interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*auth.AccessTokenResult, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
}

// SessionServiceInterface はセッション管理エンドポイントが必要とするインターフェース。
// セッションの解決自体はミドルウェアが行うため、削除系のみを要求する。
type SessionServiceInterface interface {
	Delete(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) error
}

// TokenMetrics はトークン操作のメトリクス記録に必要なインターフェース。
type TokenMetrics interface {
	RecordTokenRefresh()
	RecordTokenRevocation()
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	tokens   TokenServiceInterface
	sessions SessionServiceInterface
	metrics  TokenMetrics
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, tokens TokenServiceInterface, sessions SessionServiceInterface, metrics TokenMetrics) *AuthHandler {
	return &AuthHandler{
		service:  service,
		tokens:   tokens,
		sessions: sessions,
		metrics:  metrics,
	}
}

// Login はOAuthログインフローを開始し、プロバイダーの認証画面へリダイレクトする。
// GET /auth/login/{provider}
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	url, err := h.service.BeginLogin(provider)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// loginResponse はログイン完了時のレスポンスボディ。
type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	SessionID    string `json:"sessionId"`
}

// Callback はOAuthコールバックを処理し、資格情報一式を返す。
// stateの検証・消費はサービス層が行い、未知・消費済み・期限切れのstateは
// すべて400 Invalid stateになる。
// GET /auth/callback/{provider}?state=xxx&code=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	result, err := h.service.CompleteLogin(r.Context(), provider, state, code)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		SessionID:    result.SessionID,
	})
}

// refreshRequest はトークン再発行・失効リクエストのボディ。
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshResponse はトークン再発行のレスポンスボディ。
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

// Refresh はリフレッシュトークンからアクセストークンを再発行する。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		middleware.WriteAPIError(w, model.NewInvalidRefreshTokenError())
		return
	}

	result, err := h.tokens.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	h.metrics.RecordTokenRefresh()
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken: result.AccessToken,
		ExpiresIn:   result.ExpiresIn,
	})
}

// messageResponse は操作結果のメッセージのみを返すレスポンスボディ。
type messageResponse struct {
	Message string `json:"message"`
}

// Revoke はリフレッシュトークンを失効させる。
// 未登録・失効済みトークンへの失効は冪等に成功として扱う。
// POST /auth/revoke
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.RefreshToken = ""
	}

	if err := h.tokens.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
		slog.Error("failed to revoke refresh token", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.metrics.RecordTokenRevocation()
	writeJSON(w, http.StatusOK, messageResponse{Message: "Refresh token revoked"})
}

// sessionView はセッション照会のレスポンスボディ。
type sessionView struct {
	SessionID      string            `json:"sessionId"`
	UserID         string            `json:"userId"`
	Data           map[string]string `json:"data"`
	ExpiresAt      time.Time         `json:"expiresAt"`
	CreatedAt      time.Time         `json:"createdAt"`
	LastAccessedAt time.Time         `json:"lastAccessedAt"`
}

// GetSession は現在のセッション情報を返す。
// セッションの解決・lastAccessedAtの更新・自動延長はミドルウェアで済んでいる。
// GET /auth/session
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, sessionView{
		SessionID:      session.ID,
		UserID:         session.UserID,
		Data:           session.Data,
		ExpiresAt:      session.ExpiresAt,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
	})
}

// DeleteSession は現在のセッションを破棄する。
// DELETE /auth/session
func (h *AuthHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	if err := h.sessions.Delete(r.Context(), session.ID); err != nil {
		slog.Error("failed to delete session",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Session deleted"})
}

// DeleteAllSessions は現在のユーザーの全セッションを破棄する。
// DELETE /auth/sessions
func (h *AuthHandler) DeleteAllSessions(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	if err := h.sessions.DeleteUserSessions(r.Context(), session.UserID); err != nil {
		slog.Error("failed to delete user sessions",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "All sessions deleted"})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
