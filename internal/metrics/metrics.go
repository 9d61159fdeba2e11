// Package metrics holds the prometheus collectors describing the agent's own
// pipeline. Sensor values themselves are not exported here.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gadgetini"

var Registry = prometheus.NewRegistry()

var (
	SensorReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sensor",
		Name:      "reads_total",
		Help:      "Source reads per sensor and outcome.",
	}, []string{"sensor", "outcome"})

	PendingOverwrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sensor",
		Name:      "pending_overwrites_total",
		Help:      "Samples replaced in the pending cell before processing consumed them.",
	}, []string{"sensor"})

	ReadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "read_duration_seconds",
		Help:      "Wall time of one sensor read, timeouts included.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	RegistrySize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "registry_sensors",
		Help:      "Sensors in the active registry.",
	})

	RegistrySwaps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "registry_swaps_total",
		Help:      "Registry recompositions, by whether the built-in profile was used.",
	}, []string{"fallback"})

	HistoryFlushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "history",
		Name:      "flushes_total",
		Help:      "History flushes by persistence outcome.",
	}, []string{"outcome"})

	LeakActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "display",
		Name:      "leak_alert_active",
		Help:      "1 while the coolant leak alert is active.",
	})

	EnabledViewers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "display",
		Name:      "enabled_viewers",
		Help:      "Viewers currently in rotation.",
	})

	FeedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "clients",
		Help:      "Connected display state subscribers.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		SensorReads,
		PendingOverwrites,
		ReadDuration,
		RegistrySize,
		RegistrySwaps,
		HistoryFlushes,
		LeakActive,
		EnabledViewers,
		FeedClients,
	)
}

// Handler serves Registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// BoolGauge sets g to 1 or 0.
func BoolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}
