package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

const namespace = "rg"

// AnalysisMetrics observes batch runs and the knowledge base size.
type AnalysisMetrics struct {
	service string

	itemsTotal         *prometheus.CounterVec
	runsTotal          *prometheus.CounterVec
	runItems           *prometheus.HistogramVec
	runDuration        *prometheus.HistogramVec
	resolutionDuration *prometheus.HistogramVec
	knowledgeChunks    prometheus.Gauge
}

func NewAnalysisMetrics(service string, registerer prometheus.Registerer) *AnalysisMetrics {
	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "items_total",
			Help:      "Total analysed sentences by status.",
		},
		[]string{"service", "status"},
	)
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total finished batch runs by final state.",
		},
		[]string{"service", "state"},
	)
	runItems := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "run_items",
			Help:      "Sentences processed per finished run.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of finished runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service"},
	)
	resolutionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "resolution_duration_seconds",
			Help:      "Time spent resolving one ambiguous sentence.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)
	knowledgeChunks := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "knowledge",
			Name:      "chunks",
			Help:      "Chunks in the in-memory knowledge mirror.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registerer.MustRegister(itemsTotal, runsTotal, runItems, runDuration, resolutionDuration, knowledgeChunks)

	return &AnalysisMetrics{
		service:            service,
		itemsTotal:         itemsTotal,
		runsTotal:          runsTotal,
		runItems:           runItems,
		runDuration:        runDuration,
		resolutionDuration: resolutionDuration,
		knowledgeChunks:    knowledgeChunks,
	}
}

func (m *AnalysisMetrics) ObserveItem(status domain.ResultStatus) {
	m.itemsTotal.WithLabelValues(m.service, string(status)).Inc()
}

func (m *AnalysisMetrics) ObserveResolution(d time.Duration) {
	m.resolutionDuration.WithLabelValues(m.service).Observe(d.Seconds())
}

func (m *AnalysisMetrics) ObserveRun(state domain.RunState, items int, elapsed time.Duration) {
	m.runsTotal.WithLabelValues(m.service, string(state)).Inc()
	m.runItems.WithLabelValues(m.service).Observe(float64(items))
	m.runDuration.WithLabelValues(m.service).Observe(elapsed.Seconds())
}

func (m *AnalysisMetrics) SetKnowledgeChunks(n int) {
	m.knowledgeChunks.Set(float64(n))
}
