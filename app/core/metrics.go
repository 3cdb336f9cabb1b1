package core

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mentraflow/mentraflow/pkg/metrics"
)

type Metrics struct {
	apiResponseTime  *prometheus.HistogramVec
	apiErrorCounter  *prometheus.CounterVec
	aiRequestTime    *prometheus.HistogramVec
	aiError          *prometheus.CounterVec
	ingestedChunks   *prometheus.CounterVec
	agentRunCounter  *prometheus.CounterVec
	retrievalResults *prometheus.HistogramVec
}

func NewMetrics(ns, system string) *Metrics {
	// setup metric
	metrics.SetupMetricsManager(ns, system, prometheus.DefaultRegisterer.(*prometheus.Registry))

	m := &Metrics{
		apiResponseTime:  metrics.NewHistogramVec("api_response_time", []string{"api"}),
		apiErrorCounter:  metrics.NewCounterVec("api_error", []string{"method", "api", "status"}),
		aiRequestTime:    metrics.NewHistogramVec("ai_request_time", []string{"target"}),
		aiError:          metrics.NewCounterVec("ai_error", []string{"type"}),
		ingestedChunks:   metrics.NewCounterVec("ingested_chunks", []string{"workspace"}),
		agentRunCounter:  metrics.NewCounterVec("agent_run", []string{"agent", "status"}),
		retrievalResults: metrics.NewHistogramVec("retrieval_results", []string{"agent"}),
	}

	return m
}

func (m *Metrics) ApiResponseTimer(api string) *prometheus.Timer {
	return prometheus.NewTimer(m.apiResponseTime.WithLabelValues(api))
}

func (m *Metrics) ApiErrorInc(method, api string, status int) {
	m.apiErrorCounter.WithLabelValues(method, api, strconv.Itoa(status)).Inc()
}

func (m *Metrics) AIRequestTimer(target string) *prometheus.Timer {
	return prometheus.NewTimer(m.aiRequestTime.WithLabelValues(target))
}

func (m *Metrics) AIErrorInc(types string) {
	m.aiError.WithLabelValues(types).Inc()
}

func (m *Metrics) IngestedChunksAdd(workspace string, n int) {
	m.ingestedChunks.WithLabelValues(workspace).Add(float64(n))
}

func (m *Metrics) AgentRunInc(agent, status string) {
	m.agentRunCounter.WithLabelValues(agent, status).Inc()
}

func (m *Metrics) RetrievalResultsObserve(agent string, n int) {
	m.retrievalResults.WithLabelValues(agent).Observe(float64(n))
}
