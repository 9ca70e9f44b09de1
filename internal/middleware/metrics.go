package middleware

import "net/http"

// HTTPMetricsRecorder はリクエスト結果のメトリクス記録に必要なインターフェース。
// metrics.Collectorの部分集合として定義する。
type HTTPMetricsRecorder interface {
	RecordHTTPRequest(method, path string, status int)
}

// NewMetricsMiddleware はリクエストごとにメソッド・パス・ステータスを記録する
// ミドルウェアを返す。パスはカーディナリティを抑えるためルーティングパターン
// ではなく生のパスを渡す側の責務とする。
func NewMetricsMiddleware(recorder HTTPMetricsRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			recorder.RecordHTTPRequest(r.Method, r.URL.Path, rec.statusCode)
		})
	}
}
