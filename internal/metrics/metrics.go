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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordAuthResolution(outcome string)
	ObserveGatewayCall(service, operation, result string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordNoteMutation(operation string)
	RecordRateLimited(limitType string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authResolutions *prometheus.CounterVec
	gatewayCalls    *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
	noteMutations   *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webnote_auth_resolutions_total",
			Help: "リクエストごとの本人確認結果の数",
		}, []string{"outcome"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webnote_gateway_calls_total",
			Help: "Supabase呼び出しの結果別の数",
		}, []string{"service", "operation", "result"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webnote_gateway_call_duration_seconds",
			Help:    "Supabase呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webnote_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		noteMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webnote_note_mutations_total",
			Help: "ノートの作成・更新・削除の数",
		}, []string{"operation"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webnote_rate_limited_total",
			Help: "レート制限で拒否したリクエスト数",
		}, []string{"limit_type"}),
	}

	reg.MustRegister(
		c.authResolutions,
		c.gatewayCalls,
		c.gatewayLatency,
		c.httpStatus,
		c.noteMutations,
		c.rateLimited,
	)

	return c
}

// RecordAuthResolution は本人確認の結果を記録する。
func (c *Collector) RecordAuthResolution(outcome string) {
	c.authResolutions.WithLabelValues(outcome).Inc()
}

// ObserveGatewayCall はSupabase呼び出しの結果とレイテンシを記録する。
func (c *Collector) ObserveGatewayCall(service, operation, result string, duration time.Duration) {
	c.gatewayCalls.WithLabelValues(service, operation, result).Inc()
	c.gatewayLatency.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordNoteMutation はノートの変更操作を記録する。
func (c *Collector) RecordNoteMutation(operation string) {
	c.noteMutations.WithLabelValues(operation).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limitType string) {
	c.rateLimited.WithLabelValues(limitType).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
