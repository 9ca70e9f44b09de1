package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          middleware.SessionGetter
	CORSAllowedOrigin string
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetricsRecorder

	// 認証
	AuthService    AuthServiceInterface
	TokenService   TokenServiceInterface
	SessionService SessionServiceInterface
	TokenMetrics   TokenMetrics

	// 運用
	DB              Pinger
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//
// セッションミドルウェアはセッション管理ルート（/auth/session*）のみに適用する。
// ログインフローとトークン操作はセッションを前提としない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.TokenService, deps.SessionService, deps.TokenMetrics)
	healthHandler := NewHealthHandler(deps.DB)

	r.Route("/auth", func(r chi.Router) {
		// OAuthログインフロー
		r.Get("/login/{provider}", authHandler.Login)
		r.Get("/callback/{provider}", authHandler.Callback)

		// トークン操作
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/revoke", authHandler.Revoke)

		// セッション管理（x-session-idヘッダーで認証）
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Sessions))

			r.Get("/session", authHandler.GetSession)
			r.Delete("/session", authHandler.DeleteSession)
			r.Delete("/sessions", authHandler.DeleteAllSessions)
		})
	})

	// 運用エンドポイント
	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))

	return r
}
