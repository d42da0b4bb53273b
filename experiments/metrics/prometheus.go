package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type promCollector struct {
	Collector // Per-plan figures are still returned by Complete

	plans        prometheus.Counter
	episodes     prometheus.Counter
	expansions   prometheus.Counter
	propagations prometheus.Counter
	graphResets  prometheus.Counter
	duration     prometheus.Histogram
	nodes        prometheus.Gauge
	horizon      prometheus.Gauge
}

// NewPrometheusCollector exports search metrics on registerer. Registering
// twice on the same registry panics, so share one collector per registry.
func NewPrometheusCollector(registerer prometheus.Registerer) Collector {
	factory := promauto.With(registerer)
	return &promCollector{
		Collector: NewCollector(),
		plans: factory.NewCounter(prometheus.CounterOpts{
			Name: "gbop_plans_total",
			Help: "Completed plan calls",
		}),
		episodes: factory.NewCounter(prometheus.CounterOpts{
			Name: "gbop_episodes_total",
			Help: "Simulated episodes",
		}),
		expansions: factory.NewCounter(prometheus.CounterOpts{
			Name: "gbop_expansions_total",
			Help: "Decision nodes added to the graph",
		}),
		propagations: factory.NewCounter(prometheus.CounterOpts{
			Name: "gbop_propagations_total",
			Help: "Node updates performed by partial value iteration",
		}),
		graphResets: factory.NewCounter(prometheus.CounterOpts{
			Name: "gbop_graph_resets_total",
			Help: "Plan calls that started from an empty graph",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gbop_plan_duration_seconds",
			Help:    "Time to compute a plan",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
		}),
		nodes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gbop_graph_nodes",
			Help: "Decision nodes in the graph after the last plan",
		}),
		horizon: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gbop_plan_horizon",
			Help: "Rollout horizon of the last plan",
		}),
	}
}

func (m *promCollector) Start(planID string, episodes, horizon int) {
	m.Collector.Start(planID, episodes, horizon)
	m.horizon.Set(float64(horizon))
}

func (m *promCollector) AddEpisode() {
	m.Collector.AddEpisode()
	m.episodes.Inc()
}

func (m *promCollector) AddExpansion() {
	m.Collector.AddExpansion()
	m.expansions.Inc()
}

func (m *promCollector) AddPropagations(count int) {
	m.Collector.AddPropagations(count)
	m.propagations.Add(float64(count))
}

func (m *promCollector) Complete(nodes int) SearchMetric {
	metric := m.Collector.Complete(nodes)
	m.plans.Inc()
	if metric.IsGraphReset {
		m.graphResets.Inc()
	}
	m.duration.Observe(metric.Duration.Seconds())
	m.nodes.Set(float64(nodes))
	return metric
}
