package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily は指定名のメトリクスファミリーを返す。見つからない場合はテスト失敗。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// counterByLabel はラベル値ごとのカウンタ値を返す。
func counterByLabel(mf *dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		label := ""
		if len(m.GetLabel()) > 0 {
			label = m.GetLabel()[0].GetValue()
		}
		out[label] = m.GetCounter().GetValue()
	}
	return out
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	got := counterByLabel(findMetricFamily(t, reg, "taskman_http_status_total"))
	if len(got) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(got))
	}
	if got["200"] != 2 {
		t.Errorf("http_status_total{status_code=200} = %v, want 2", got["200"])
	}
	if got["404"] != 1 {
		t.Errorf("http_status_total{status_code=404} = %v, want 1", got["404"])
	}
}

// TestRecordRequestLatency_ObservesHistogram はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(http.MethodGet, 100*time.Millisecond)
	c.RecordRequestLatency(http.MethodGet, 2*time.Second)

	mf := findMetricFamily(t, reg, "taskman_http_request_duration_seconds")
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordLogin_CountsByOutcome はログイン結果ごとに集計されることを検証する。
func TestRecordLogin_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(LoginSuccess)
	c.RecordLogin(LoginInvalid)
	c.RecordLogin(LoginInvalid)
	c.RecordLogin(LoginLocked)

	got := counterByLabel(findMetricFamily(t, reg, "taskman_login_total"))
	if got[LoginSuccess] != 1 || got[LoginInvalid] != 2 || got[LoginLocked] != 1 {
		t.Errorf("login_total = %v, want success=1 invalid=2 locked=1", got)
	}
}

// TestRecordRegistration_IncrementsCounter はユーザー登録カウンタが増加することを検証する。
func TestRecordRegistration_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRegistration()

	mf := findMetricFamily(t, reg, "taskman_registrations_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("registrations_total = %v, want 1", val)
	}
}

// TestRecordTaskWriteAndConflict_CountByOp はタスク書き込みと競合が操作別に集計されることを検証する。
func TestRecordTaskWriteAndConflict_CountByOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTaskWrite(OpCreate)
	c.RecordTaskWrite(OpUpdate)
	c.RecordTaskWrite(OpUpdate)
	c.RecordPersistenceConflict(OpUpdate)

	writes := counterByLabel(findMetricFamily(t, reg, "taskman_task_writes_total"))
	if writes[OpCreate] != 1 || writes[OpUpdate] != 2 {
		t.Errorf("task_writes_total = %v, want create=1 update=2", writes)
	}

	conflicts := counterByLabel(findMetricFamily(t, reg, "taskman_persistence_conflicts_total"))
	if conflicts[OpUpdate] != 1 {
		t.Errorf("persistence_conflicts_total{op=update} = %v, want 1", conflicts[OpUpdate])
	}
}

// TestRecordLockoutsCleared_AddsCount は解除件数が加算されることを検証する。
func TestRecordLockoutsCleared_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLockoutsCleared(3)
	c.RecordLockoutsCleared(2)

	mf := findMetricFamily(t, reg, "taskman_lockouts_cleared_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 5 {
		t.Errorf("lockouts_cleared_total = %v, want 5", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordLogin(LoginSuccess)
	c.RecordRegistration()
	c.RecordTaskWrite(OpCreate)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"taskman_http_status_total",
		"taskman_login_total",
		"taskman_registrations_total",
		"taskman_task_writes_total",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordRegistration()
	c2.RecordRegistration()
	c2.RecordRegistration()

	val1 := findMetricFamily(t, reg1, "taskman_registrations_total").GetMetric()[0].GetCounter().GetValue()
	val2 := findMetricFamily(t, reg2, "taskman_registrations_total").GetMetric()[0].GetCounter().GetValue()

	if val1 != 1 {
		t.Errorf("reg1 registrations = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 registrations = %v, want 2", val2)
	}
}
