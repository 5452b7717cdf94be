// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginSuccess = "success"
	LoginInvalid = "invalid"
	LoginLocked  = "locked"
)

// タスク書き込み操作のラベル値
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(method string, duration time.Duration)
	RecordLogin(outcome string)
	RecordRegistration()
	RecordTaskWrite(op string)
	RecordPersistenceConflict(op string)
	RecordLockoutsCleared(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	logins          *prometheus.CounterVec
	registrations   prometheus.Counter
	taskWrites      *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	lockoutsCleared prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_login_total",
			Help: "結果別のログイン試行数",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_registrations_total",
			Help: "ユーザー登録の合計数",
		}),
		taskWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_task_writes_total",
			Help: "操作別のタスク書き込み成功数",
		}, []string{"op"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_persistence_conflicts_total",
			Help: "影響行数0件となった書き込みの数",
		}, []string{"op"}),
		lockoutsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_lockouts_cleared_total",
			Help: "期限切れで解除されたアカウントロックの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.logins,
		c.registrations,
		c.taskWrites,
		c.conflicts,
		c.lockoutsCleared,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(method string, duration time.Duration) {
	c.requestLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordTaskWrite はタスク書き込みの成功を記録する。
func (c *Collector) RecordTaskWrite(op string) {
	c.taskWrites.WithLabelValues(op).Inc()
}

// RecordPersistenceConflict は影響行数0件の書き込みを記録する。
func (c *Collector) RecordPersistenceConflict(op string) {
	c.conflicts.WithLabelValues(op).Inc()
}

// RecordLockoutsCleared は解除したロック数を記録する。
func (c *Collector) RecordLockoutsCleared(count int) {
	c.lockoutsCleared.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
