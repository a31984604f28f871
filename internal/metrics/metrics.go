// Package metrics — Prometheus-метрики ядра агента.
//
// Покрывает основные операции: чат-запросы, обращения к LLM-провайдерам
// (с учётом fallback-попыток), семантический поиск, вызовы инструментов
// и построение индексов документов.
package metrics

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edith_core_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edith_core_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	chatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edith_core_chat_requests_total",
			Help: "Total number of chat requests",
		},
		[]string{"intent"},
	)

	providerAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edith_core_provider_attempts_total",
			Help: "Total number of LLM provider attempts",
		},
		[]string{"provider", "model", "status"},
	)

	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edith_core_provider_request_duration_seconds",
			Help:    "LLM provider request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	degradedResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edith_core_degraded_responses_total",
			Help: "Total number of degraded responses (all providers failed)",
		},
	)

	ragSearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edith_core_rag_searches_total",
			Help: "Total number of vector index searches",
		},
		[]string{"status"},
	)

	ragSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edith_core_rag_search_duration_seconds",
			Help:    "Vector index search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	indexBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edith_core_index_builds_total",
			Help: "Total number of document index builds",
		},
		[]string{"status", "source"},
	)

	indexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edith_core_index_build_duration_seconds",
			Help:    "Document index build duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edith_core_tool_calls_total",
			Help: "Total number of tool calls",
		},
		[]string{"tool_name", "status"},
	)

	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edith_core_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool_name"},
	)
)

var metricsRegistry *prometheus.Registry

// InitPrometheusHandler — создаёт HTTP-хэндлер /metrics с выделенным реестром.
// Повторные вызовы возвращают хэндлер того же реестра.
func InitPrometheusHandler() http.Handler {
	if metricsRegistry == nil {
		metricsRegistry = prometheus.NewRegistry()
		metricsRegistry.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			chatRequestsTotal,
			providerAttemptsTotal,
			providerRequestDuration,
			degradedResponsesTotal,
			ragSearchesTotal,
			ragSearchDuration,
			indexBuildsTotal,
			indexBuildDuration,
			toolCallsTotal,
			toolCallDuration,
		)
		log.Printf("[METRICS] Prometheus endpoint инициализирован")
	}
	return promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})
}

func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, fmt.Sprintf("%d", status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func RecordChatRequest(intent string) {
	chatRequestsTotal.WithLabelValues(intent).Inc()
}

// RecordProviderAttempt — одна попытка обращения к провайдеру.
// status: success | error | timeout.
func RecordProviderAttempt(provider, model, status string, duration time.Duration) {
	providerAttemptsTotal.WithLabelValues(provider, model, status).Inc()
	providerRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordDegradedResponse — все провайдеры исчерпаны, возвращён canned-ответ.
func RecordDegradedResponse() {
	degradedResponsesTotal.Inc()
}

func RecordRAGSearch(status string, duration time.Duration) {
	ragSearchesTotal.WithLabelValues(status).Inc()
	ragSearchDuration.Observe(duration.Seconds())
}

// RecordIndexBuild — построение индекса документа.
// status: built | restored | error; source: loader | store | memory.
func RecordIndexBuild(status, source string, duration time.Duration) {
	indexBuildsTotal.WithLabelValues(status, source).Inc()
	indexBuildDuration.Observe(duration.Seconds())
}

func RecordToolCall(toolName, status string, duration time.Duration) {
	toolCallsTotal.WithLabelValues(toolName, status).Inc()
	toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}
