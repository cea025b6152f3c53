// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証リクエストの結果ラベル。
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやミドルウェアから利用する。
type MetricsCollector interface {
	RecordAuthRequest(action, result string)
	RecordEventSave(eventCount int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authRequests   *prometheus.CounterVec
	eventSaves     prometheus.Counter
	eventsSaved    prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daycast_auth_requests_total",
			Help: "アクション・結果別の認証リクエスト数",
		}, []string{"action", "result"}),
		eventSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daycast_event_saves_total",
			Help: "イベント一括保存の合計回数",
		}),
		eventsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daycast_events_saved_total",
			Help: "保存されたイベントの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daycast_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "daycast_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.authRequests,
		c.eventSaves,
		c.eventsSaved,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordAuthRequest は認証リクエストの結果を記録する。
func (c *Collector) RecordAuthRequest(action, result string) {
	c.authRequests.WithLabelValues(action, result).Inc()
}

// RecordEventSave はイベント一括保存と保存件数を記録する。
func (c *Collector) RecordEventSave(eventCount int) {
	c.eventSaves.Inc()
	c.eventsSaved.Add(float64(eventCount))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。メトリクス無効時とテストで使う。
type Nop struct{}

func (Nop) RecordAuthRequest(string, string)   {}
func (Nop) RecordEventSave(int)                {}
func (Nop) RecordHTTPStatus(int)               {}
func (Nop) RecordRequestLatency(time.Duration) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
