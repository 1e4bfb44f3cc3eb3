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

	// 出题管道指标

	GenerationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_generation_total",
			Help: "Total exam generation calls by outcome",
		},
		[]string{"outcome"}, // success, transport, degeneracy, parse, validation, cache_hit
	)

	GenerationScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exam_generation_score",
			Help:    "Validation score of generated exams",
			Buckets: []float64{50, 70, 80, 85, 90, 95, 100},
		},
	)

	GenerationTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_generation_tokens_total",
			Help: "Tokens consumed by exam generation",
		},
		[]string{"kind"}, // prompt, completion
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exam_generation_duration_seconds",
			Help:    "Wall clock duration of full generation calls",
			Buckets: []float64{5, 15, 30, 60, 120, 300},
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(GenerationCounter)
	prometheus.MustRegister(GenerationScore)
	prometheus.MustRegister(GenerationTokens)
	prometheus.MustRegister(GenerationDuration)
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

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
