// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthRecorder は認証メトリクス収集のインターフェース。
// ゲートミドルウェアと認証サービスから利用する。
type AuthRecorder interface {
	RecordAuthAttempt(channel, outcome string)
	RecordAuthLatency(duration time.Duration)
	RecordUserProvisioned()
	RecordSessionIssued()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts     *prometheus.CounterVec
	authLatency      prometheus.Histogram
	usersProvisioned prometheus.Counter
	sessionsIssued   prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jukebox_auth_attempts_total",
			Help: "チャネル・結果別の認証試行数",
		}, []string{"channel", "outcome"}),
		authLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jukebox_auth_latency_seconds",
			Help:    "認証判定のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		usersProvisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jukebox_users_provisioned_total",
			Help: "OAuth初回ログインで自動作成されたユーザー数",
		}),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jukebox_sessions_issued_total",
			Help: "発行されたセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jukebox_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.authLatency,
		c.usersProvisioned,
		c.sessionsIssued,
		c.httpStatus,
	)

	return c
}

// RecordAuthAttempt は認証試行をチャネル・結果別に記録する。
func (c *Collector) RecordAuthAttempt(channel, outcome string) {
	c.authAttempts.WithLabelValues(channel, outcome).Inc()
}

// RecordAuthLatency は認証判定のレイテンシを記録する。
func (c *Collector) RecordAuthLatency(duration time.Duration) {
	c.authLatency.Observe(duration.Seconds())
}

// RecordUserProvisioned は自動作成されたユーザーを記録する。
func (c *Collector) RecordUserProvisioned() {
	c.usersProvisioned.Inc()
}

// RecordSessionIssued は発行されたセッションを記録する。
func (c *Collector) RecordSessionIssued() {
	c.sessionsIssued.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないAuthRecorderを返す。テストやメトリクス無効時に使う。
func Nop() AuthRecorder {
	return nopRecorder{}
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthAttempt(channel, outcome string) {}
func (nopRecorder) RecordAuthLatency(duration time.Duration)  {}
func (nopRecorder) RecordUserProvisioned()                    {}
func (nopRecorder) RecordSessionIssued()                      {}
func (nopRecorder) RecordHTTPStatus(statusCode int)           {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface checks
var (
	_ AuthRecorder = (*Collector)(nil)
	_ AuthRecorder = nopRecorder{}
)
