// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "bus_published_total",
		Help:      "Total events published per topic",
	}, []string{"topic"})

	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "bus_dropped_total",
		Help:      "Total events dropped per topic and reason (backpressure)",
	}, []string{"topic", "reason"})

	BusSubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airwave",
		Name:      "bus_subscribers",
		Help:      "Current subscriber count per topic",
	}, []string{"topic"})
)

// IncBusDrop records a dropped bus event with a concrete reason.
func IncBusDrop(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}
