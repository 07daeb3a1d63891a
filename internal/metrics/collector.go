// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/oracle"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

var _ journey.Metrics = (*Collector)(nil)

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Oracle 指标
	oracleCallsTotal   *prometheus.CounterVec
	oracleCallDuration *prometheus.HistogramVec
	oracleDegraded     *prometheus.CounterVec

	// 旅程指标
	journeysInFlight prometheus.Gauge
	journeysTotal    *prometheus.CounterVec
	journeyDuration  prometheus.Histogram
	journeySteps     prometheus.Histogram
	stepsTotal       *prometheus.CounterVec
	stepDuration     prometheus.Histogram
	stepsSkipped     *prometheus.CounterVec
	conversionScore  prometheus.Histogram
	clicksTotal      *prometheus.CounterVec
	journeysRejected prometheus.Counter

	// 存储指标
	storeOperations *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// Oracle 指标
	c.oracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Total number of vision model calls",
		},
		[]string{"provider", "kind", "status"},
	)

	c.oracleCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_duration_seconds",
			Help:      "Vision model call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "kind"},
	)

	c.oracleDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_degraded_total",
			Help:      "Oracle results replaced by a degraded default",
		},
		[]string{"call"},
	)

	// 旅程指标
	c.journeysInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "journeys_in_flight",
		Help:      "Journeys currently running",
	})

	c.journeysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journeys_total",
			Help:      "Total number of finished journeys",
		},
		[]string{"status", "reason"},
	)

	c.journeyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "journey_duration_seconds",
		Help:      "Journey wall time in seconds",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
	})

	c.journeySteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "journey_steps",
		Help:      "Recorded steps per journey",
		Buckets:   prometheus.LinearBuckets(0, 2, 8),
	})

	c.stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Recorded steps by decided action",
		},
		[]string{"action"},
	)

	c.stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "step_duration_seconds",
		Help:      "Time from step start to recorded step",
		Buckets:   []float64{1, 2, 5, 10, 20, 40, 80},
	})

	c.stepsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_skipped_total",
			Help:      "Step slots consumed without a record",
		},
		[]string{"reason"},
	)

	c.conversionScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "conversion_score",
		Help:      "Conversion score per recorded step",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	})

	c.clicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Click attempts by winning locator strategy",
		},
		[]string{"strategy", "result"},
	)

	c.journeysRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "journeys_rejected_total",
		Help:      "Journeys rejected because the concurrency limit was reached",
	})

	// 存储指标
	c.storeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Journey store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	c.storeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Journey store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🔮 Oracle 指标记录
// =============================================================================

// RecordOracleCall 记录一次视觉模型调用
func (c *Collector) RecordOracleCall(provider, kind string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.oracleCallsTotal.WithLabelValues(provider, kind, status).Inc()
	c.oracleCallDuration.WithLabelValues(provider, kind).Observe(duration.Seconds())
}

// OracleObserver 返回绑定 provider 的 oracle.CallObserver
func (c *Collector) OracleObserver(provider string) oracle.CallObserver {
	return func(kind string, took time.Duration, err error) {
		c.RecordOracleCall(provider, kind, took, err)
	}
}

// =============================================================================
// 🧭 旅程指标记录（实现 journey.Metrics）
// =============================================================================

// JourneyStarted 旅程开始
func (c *Collector) JourneyStarted() {
	c.journeysInFlight.Inc()
}

// JourneyFinished 旅程结束
func (c *Collector) JourneyFinished(status journey.Status, reason journey.FinishReason, steps int, took time.Duration) {
	c.journeysInFlight.Dec()
	c.journeysTotal.WithLabelValues(string(status), string(reason)).Inc()
	c.journeyDuration.Observe(took.Seconds())
	c.journeySteps.Observe(float64(steps))
}

// StepCompleted 记录一步
func (c *Collector) StepCompleted(action oracle.Action, score int, took time.Duration) {
	c.stepsTotal.WithLabelValues(string(action)).Inc()
	c.stepDuration.Observe(took.Seconds())
	c.conversionScore.Observe(float64(score))
}

// StepSkipped 记录被跳过的步骤
func (c *Collector) StepSkipped(reason string) {
	c.stepsSkipped.WithLabelValues(reason).Inc()
}

// OracleDegraded 记录降级
func (c *Collector) OracleDegraded(call string) {
	c.oracleDegraded.WithLabelValues(call).Inc()
}

// ClickAttempted 记录点击
func (c *Collector) ClickAttempted(strategy string, ok bool) {
	result := "clicked"
	if !ok {
		result = "no_match"
		strategy = "none"
	}
	c.clicksTotal.WithLabelValues(strategy, result).Inc()
}

// RecordJourneyRejected 记录因并发上限被拒绝的旅程
func (c *Collector) RecordJourneyRejected() {
	c.journeysRejected.Inc()
}

// =============================================================================
// 🗄️ 存储指标记录
// =============================================================================

// RecordStoreOperation 记录持久化操作
func (c *Collector) RecordStoreOperation(backend, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.storeOperations.WithLabelValues(backend, operation, status).Inc()
	c.storeDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
