package utils

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricBreachRequests      = "vaultlynx_breach_requests_total"
	MetricBreachDuration      = "vaultlynx_breach_request_duration_seconds"
	MetricItemsAnalyzed       = "vaultlynx_items_analyzed_total"
	MetricItemsInvalid        = "vaultlynx_items_invalid_total"
	MetricItemsSkipped        = "vaultlynx_items_skipped_total"
	MetricSessionStage        = "vaultlynx_session_stage"
	MetricSessionLoads        = "vaultlynx_session_loads_total"
	MetricAnalysisDurationSec = "vaultlynx_analysis_duration_seconds"
)

type MetricsCollector struct {
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	mu         sync.RWMutex
}

func NewMetricsCollector(enableRuntimeMetrics bool) *MetricsCollector {
	reg := prometheus.NewRegistry()
	if enableRuntimeMetrics {
		_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		_ = reg.Register(collectors.NewGoCollector())
	}
	return &MetricsCollector{
		registry:   reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// RegisterDefaults registers every series the analysis pipeline reports.
func (m *MetricsCollector) RegisterDefaults() error {
	steps := []func() error{
		func() error {
			return m.RegisterCounter(MetricBreachRequests, "Breach range lookups by outcome.", "result")
		},
		func() error {
			return m.RegisterHistogram(MetricBreachDuration, "Breach range lookup latency.", []float64{.05, .1, .25, .5, 1, 2.5, 5, 10})
		},
		func() error {
			return m.RegisterCounter(MetricItemsAnalyzed, "Vault items analyzed by risk level.", "risk")
		},
		func() error {
			return m.RegisterCounter(MetricItemsInvalid, "Vault records rejected before analysis.")
		},
		func() error {
			return m.RegisterCounter(MetricItemsSkipped, "Vault records skipped after a processing failure.")
		},
		func() error {
			return m.RegisterGauge(MetricSessionStage, "Current session stage (1 for the active stage).", "stage")
		},
		func() error {
			return m.RegisterCounter(MetricSessionLoads, "Vault loads by outcome.", "result")
		},
		func() error {
			return m.RegisterHistogram(MetricAnalysisDurationSec, "Duration of analysis passes.", nil, "pass")
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (m *MetricsCollector) RegisterCounter(name, help string, labelNames ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counters[name]; ok {
		return nil
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames)
	if err := m.registry.Register(cv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			m.counters[name] = are.ExistingCollector.(*prometheus.CounterVec)
			return nil
		}
		return err
	}
	m.counters[name] = cv
	return nil
}

func (m *MetricsCollector) RegisterGauge(name, help string, labelNames ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gauges[name]; ok {
		return nil
	}
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labelNames)
	if err := m.registry.Register(gv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			m.gauges[name] = are.ExistingCollector.(*prometheus.GaugeVec)
			return nil
		}
		return err
	}
	m.gauges[name] = gv
	return nil
}

func (m *MetricsCollector) RegisterHistogram(name, help string, buckets []float64, labelNames ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.histograms[name]; ok {
		return nil
	}
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labelNames)
	if err := m.registry.Register(hv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			m.histograms[name] = are.ExistingCollector.(*prometheus.HistogramVec)
			return nil
		}
		return err
	}
	m.histograms[name] = hv
	return nil
}

// The recording helpers are nil-safe so components can run without a collector.

func (m *MetricsCollector) IncCounter(name string, delta float64, labels prometheus.Labels) {
	if m == nil {
		return
	}
	m.mu.RLock()
	cv := m.counters[name]
	m.mu.RUnlock()
	if cv != nil {
		cv.With(labels).Add(delta)
	}
}

func (m *MetricsCollector) SetGauge(name string, value float64, labels prometheus.Labels) {
	if m == nil {
		return
	}
	m.mu.RLock()
	gv := m.gauges[name]
	m.mu.RUnlock()
	if gv != nil {
		gv.With(labels).Set(value)
	}
}

func (m *MetricsCollector) ObserveHistogram(name string, value float64, labels prometheus.Labels) {
	if m == nil {
		return
	}
	m.mu.RLock()
	hv := m.histograms[name]
	m.mu.RUnlock()
	if hv != nil {
		hv.With(labels).Observe(value)
	}
}

func (m *MetricsCollector) ObserveSince(name string, start time.Time, labels prometheus.Labels) {
	m.ObserveHistogram(name, time.Since(start).Seconds(), labels)
}

func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
