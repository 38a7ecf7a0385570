// Package metrics collects Prometheus counters for engine runs and provider
// calls.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ShayCichocki/quarry/pkg/models"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "quarry"

// Collector holds the run metrics in its own registry.
type Collector struct {
	registry *prometheus.Registry

	Rounds            prometheus.Counter
	QuestionsAdmitted prometheus.Counter
	QuestionsDropped  prometheus.Counter
	QuestionsResolved *prometheus.CounterVec
	ProviderFailures  *prometheus.CounterVec
	Runs              prometheus.Counter
	RunDuration       prometheus.Histogram
	LastGenerated     prometheus.Gauge
	LastSeen          prometheus.Gauge
	SearchCache       *prometheus.CounterVec
}

// NewCollector creates a Collector with a fresh registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Total number of expansion rounds executed",
		}),
		QuestionsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_admitted_total",
			Help:      "Total number of distinct questions admitted for resolution",
		}),
		QuestionsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_dropped_total",
			Help:      "Total number of duplicate proposals dropped",
		}),
		QuestionsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_resolved_total",
			Help:      "Total number of questions resolved, by answer source",
		}, []string{"source"}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Total number of recovered provider failures",
		}, []string{"provider"}),
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of completed runs",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		LastGenerated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_generated_questions",
			Help:      "Questions generated by the most recent run, duplicates included",
		}),
		LastSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_seen_questions",
			Help:      "Distinct questions seen by the most recent run",
		}),
		SearchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_lookups_total",
			Help:      "Search cache lookups, by result",
		}, []string{"result"}),
	}

	c.registry.MustRegister(
		c.Rounds,
		c.QuestionsAdmitted,
		c.QuestionsDropped,
		c.QuestionsResolved,
		c.ProviderFailures,
		c.Runs,
		c.RunDuration,
		c.LastGenerated,
		c.LastSeen,
		c.SearchCache,
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RoundFinished records one round.
func (c *Collector) RoundFinished(admitted, dropped int) {
	c.Rounds.Inc()
	c.QuestionsAdmitted.Add(float64(admitted))
	c.QuestionsDropped.Add(float64(dropped))
}

// QuestionResolved records an answered question.
func (c *Collector) QuestionResolved(source models.Source) {
	c.QuestionsResolved.WithLabelValues(string(source)).Inc()
}

// ProviderFailure records a provider failure that was recovered.
func (c *Collector) ProviderFailure(provider string) {
	c.ProviderFailures.WithLabelValues(provider).Inc()
}

// RunFinished records a completed run.
func (c *Collector) RunFinished(stats models.Stats, elapsed time.Duration) {
	c.Runs.Inc()
	c.RunDuration.Observe(elapsed.Seconds())
	c.LastGenerated.Set(float64(stats.TotalGenerated))
	c.LastSeen.Set(float64(stats.TotalSeen))
}

// CacheLookup records a search cache hit or miss.
func (c *Collector) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.SearchCache.WithLabelValues(result).Inc()
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
