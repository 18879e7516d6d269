package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func family(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return nil
}

func labelsOf(metric *dto.Metric) map[string]string {
	out := map[string]string{}
	for _, l := range metric.GetLabel() {
		out[l.GetName()] = l.GetValue()
	}
	return out
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.IncrLedgerOp("create", "ok")
	m.IncrLedgerOp("create", "ok")
	m.IncrLedgerOp("confirm", "rejected")
	m.IncrSchedulerCycle()
	m.IncrRecurringRun("failed")
	m.IncrExternalError("exchange-rate-api")
	m.IncrCacheHit("fx")
	m.IncrCacheMiss("fx")

	ledger := family(t, m, "wallet_ledger_operations_total")
	counts := map[string]float64{}
	for _, metric := range ledger.GetMetric() {
		l := labelsOf(metric)
		counts[l["operation"]+"/"+l["outcome"]] = metric.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"create/ok": 2, "confirm/rejected": 1}, counts)

	cycles := family(t, m, "wallet_recurring_cycles_total")
	assert.Equal(t, float64(1), cycles.GetMetric()[0].GetCounter().GetValue())

	for _, name := range []string{
		"wallet_recurring_executions_total",
		"wallet_external_errors_total",
		"wallet_cache_hits_total",
		"wallet_cache_misses_total",
	} {
		f := family(t, m, name)
		require.Len(t, f.GetMetric(), 1, name)
		assert.Equal(t, float64(1), f.GetMetric()[0].GetCounter().GetValue(), name)
	}
}

func TestMetricsInstancesAreIndependent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.IncrSchedulerCycle()

	assert.Equal(t, float64(1), family(t, a, "wallet_recurring_cycles_total").GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, float64(0), family(t, b, "wallet_recurring_cycles_total").GetMetric()[0].GetCounter().GetValue())
}

func TestZapLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewMetrics()

	handler := ZapLoggerMiddleware(zap.New(core), m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte("ok"))
		}
	}))

	for _, path := range []string{"/ok", "/missing", "/broken"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/missing", entries[1].ContextMap()["path"])
	assert.Equal(t, int64(http.StatusNotFound), entries[1].ContextMap()["status"])

	hist := family(t, m, "wallet_http_request_duration_seconds")
	var observed uint64
	for _, metric := range hist.GetMetric() {
		observed += metric.GetHistogram().GetSampleCount()
	}
	assert.Equal(t, uint64(3), observed)
}

func TestMetricsHandlerServesText(t *testing.T) {
	m := NewMetrics()
	m.ObserveHTTP(http.MethodGet, http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `wallet_http_request_duration_seconds_count{method="GET",status="200"} 1`)
}
