package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the search metric families exported to Prometheus. Create
// it once per registerer and share it between the agents' collectors.
type Registry struct {
	searches       *prometheus.CounterVec
	iterations     *prometheus.CounterVec
	fullPlayouts   *prometheus.CounterVec
	playoutActions *prometheus.CounterVec
	treeResets     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	counter := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treesearch",
			Subsystem: "mcts",
			Name:      name,
			Help:      help,
		}, []string{"agent"})
	}

	return &Registry{
		searches:       counter("searches_total", "Total completed searches"),
		iterations:     counter("iterations_total", "Total search iterations backed up"),
		fullPlayouts:   counter("full_playouts_total", "Total playouts that reached a terminal state"),
		playoutActions: counter("playout_actions_total", "Total actions executed during playouts"),
		treeResets:     counter("tree_resets_total", "Total searches that started from a fresh root"),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "treesearch",
			Subsystem: "mcts",
			Name:      "search_duration_seconds",
			Help:      "Wall-clock duration of a search",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"agent"}),
	}
}

type prometheusCollector struct {
	Collector
	registry *Registry
	agent    string
}

// NewPrometheusCollector counts in memory like NewCollector and publishes
// each completed search to the registry under the given agent label.
func NewPrometheusCollector(registry *Registry, agent string) Collector {
	return &prometheusCollector{
		Collector: NewCollector(),
		registry:  registry,
		agent:     agent,
	}
}

func (m *prometheusCollector) Complete() SearchMetric {
	metric := m.Collector.Complete()

	r := m.registry
	r.searches.WithLabelValues(m.agent).Inc()
	r.iterations.WithLabelValues(m.agent).Add(float64(metric.Iterations))
	r.fullPlayouts.WithLabelValues(m.agent).Add(float64(metric.FullPlayouts))
	r.playoutActions.WithLabelValues(m.agent).Add(float64(metric.PlayoutActions))
	if metric.IsTreeReset {
		r.treeResets.WithLabelValues(m.agent).Inc()
	}
	r.duration.WithLabelValues(m.agent).Observe(metric.Duration.Seconds())
	return metric
}
