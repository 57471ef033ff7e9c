// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証操作の結果ラベル
const (
	OutcomeSuccess           = "success"
	OutcomeAlreadyRegistered = "already_registered"
	OutcomeUserNotFound      = "user_not_found"
	OutcomeWrongPassword     = "wrong_password"
	OutcomeError             = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やミドルウェアから利用する。
type MetricsCollector interface {
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
	RecordChatLatency(duration time.Duration)
	RecordGenerationFailure()
	RecordFeedback()
	RecordHTTPStatus(statusCode int)
	RecordSessionsSwept(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	chatLatency    prometheus.Histogram
	generationFail prometheus.Counter
	feedback       prometheus.Counter
	httpStatus     *prometheus.CounterVec
	sessionsSwept  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "citizenai_registrations_total",
			Help: "ユーザー登録の試行数（結果別）",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "citizenai_logins_total",
			Help: "ログインの試行数（結果別）",
		}, []string{"outcome"}),
		chatLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "citizenai_chat_generation_seconds",
			Help:    "応答生成のレイテンシ（秒）",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		generationFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "citizenai_generation_fail_total",
			Help: "応答生成失敗の合計数",
		}),
		feedback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "citizenai_feedback_total",
			Help: "記録されたフィードバックの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "citizenai_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "citizenai_sessions_swept_total",
			Help: "期限切れで削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.chatLatency,
		c.generationFail,
		c.feedback,
		c.httpStatus,
		c.sessionsSwept,
	)

	return c
}

// RecordRegistration はユーザー登録の結果を記録する。
func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

// RecordLogin はログインの結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordChatLatency は応答生成のレイテンシを記録する。
func (c *Collector) RecordChatLatency(duration time.Duration) {
	c.chatLatency.Observe(duration.Seconds())
}

// RecordGenerationFailure は応答生成の失敗を記録する。
func (c *Collector) RecordGenerationFailure() {
	c.generationFail.Inc()
}

// RecordFeedback はフィードバックの記録を数える。
func (c *Collector) RecordFeedback() {
	c.feedback.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsSwept は削除されたセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int) {
	c.sessionsSwept.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordRegistration(string)       {}
func (Nop) RecordLogin(string)              {}
func (Nop) RecordChatLatency(time.Duration) {}
func (Nop) RecordGenerationFailure()        {}
func (Nop) RecordFeedback()                 {}
func (Nop) RecordHTTPStatus(int)            {}
func (Nop) RecordSessionsSwept(int)         {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
