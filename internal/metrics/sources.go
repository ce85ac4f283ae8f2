// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SourcePollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "source_polls_total",
		Help:      "Upstream poll attempts per source and result",
	}, []string{"source", "result"})

	SourceMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "source_messages_total",
		Help:      "Normalized messages emitted per source",
	}, []string{"source"})

	SourceRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "source_rate_limited_total",
		Help:      "HTTP 429 responses received per source",
	}, []string{"source"})

	SourceDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "source_drops_total",
		Help:      "Records dropped because the processor ingress queue was full",
	}, []string{"source"})

	SourceConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airwave",
		Name:      "source_connected",
		Help:      "1 when the source is connected to its upstream",
	}, []string{"source"})
)
