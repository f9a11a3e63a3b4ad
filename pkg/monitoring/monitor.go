package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// RTECallCounter RTE 协议调用量，按操作和结果（true/false）打点
	RTECallCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorm_rte_calls_total",
			Help: "Total number of SCORM RTE API calls",
		},
		[]string{"operation", "result"},
	)

	// RTEErrorCounter RTE 非 0 错误码分布
	RTEErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorm_rte_errors_total",
			Help: "SCORM RTE calls that produced a non-zero error code",
		},
		[]string{"code"},
	)

	// InferenceCounter 完成度推断结果，按命中规则打点
	InferenceCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorm_inference_results_total",
			Help: "Completion inference evaluations by outcome rule",
		},
		[]string{"rule", "reclassified"},
	)

	// PackageUploadCounter 包上传量，按解析出的版本打点
	PackageUploadCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorm_package_uploads_total",
			Help: "Uploaded SCORM packages by detected version",
		},
		[]string{"version", "result"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RTECallCounter)
	prometheus.MustRegister(RTEErrorCounter)
	prometheus.MustRegister(InferenceCounter)
	prometheus.MustRegister(PackageUploadCounter)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

// ObserveRTECall RTE 调用打点；code 非 0 时同时累计错误码分布
func ObserveRTECall(operation, result string, code int) {
	RTECallCounter.WithLabelValues(operation, result).Inc()
	if code != 0 {
		RTEErrorCounter.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
