// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカー層から利用する。
type MetricsCollector interface {
	RecordLogin(provider string)
	RecordLoginFailure(provider, reason string)
	RecordExchangeLatency(duration time.Duration)
	RecordTokenRefresh()
	RecordTokenRevocation()
	RecordCleanupDeletions(target string, count int64)
	RecordHTTPRequest(method, path string, status int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins           *prometheus.CounterVec
	loginFailures    *prometheus.CounterVec
	exchangeLatency  prometheus.Histogram
	tokenRefreshes   prometheus.Counter
	tokenRevocations prometheus.Counter
	cleanupDeletions *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_logins_total",
			Help: "ログイン成功の合計数（プロバイダー別）",
		}, []string{"provider"}),
		loginFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_login_failures_total",
			Help: "ログイン失敗の合計数（プロバイダー・理由別）",
		}, []string{"provider", "reason"}),
		exchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authgate_code_exchange_latency_seconds",
			Help:    "IdPとの認可コード交換のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokenRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_token_refreshes_total",
			Help: "アクセストークン再発行の合計数",
		}),
		tokenRevocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_token_revocations_total",
			Help: "リフレッシュトークン失効の合計数",
		}),
		cleanupDeletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_cleanup_deletions_total",
			Help: "クリーンアップワーカーが削除したレコードの合計数（対象別）",
		}, []string{"target"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_http_requests_total",
			Help: "HTTPリクエストの合計数（メソッド・パス・ステータス別）",
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(
		c.logins,
		c.loginFailures,
		c.exchangeLatency,
		c.tokenRefreshes,
		c.tokenRevocations,
		c.cleanupDeletions,
		c.httpRequests,
	)

	return c
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin(provider string) {
	c.logins.WithLabelValues(provider).Inc()
}

// RecordLoginFailure はログイン失敗を理由付きで記録する。
func (c *Collector) RecordLoginFailure(provider, reason string) {
	c.loginFailures.WithLabelValues(provider, reason).Inc()
}

// RecordExchangeLatency は認可コード交換のレイテンシを記録する。
func (c *Collector) RecordExchangeLatency(duration time.Duration) {
	c.exchangeLatency.Observe(duration.Seconds())
}

// RecordTokenRefresh はアクセストークン再発行を記録する。
func (c *Collector) RecordTokenRefresh() {
	c.tokenRefreshes.Inc()
}

// RecordTokenRevocation はリフレッシュトークン失効を記録する。
func (c *Collector) RecordTokenRevocation() {
	c.tokenRevocations.Inc()
}

// RecordCleanupDeletions はクリーンアップワーカーの削除件数を記録する。
func (c *Collector) RecordCleanupDeletions(target string, count int64) {
	c.cleanupDeletions.WithLabelValues(target).Add(float64(count))
}

// RecordHTTPRequest はHTTPリクエストの結果を記録する。
func (c *Collector) RecordHTTPRequest(method, path string, status int) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
