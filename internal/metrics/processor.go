// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProcessorMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "processor_messages_total",
		Help:      "Messages processed per source type and category",
	}, []string{"source_type", "category"})

	ProcessorErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "processor_errors_total",
		Help:      "Per-stage processor errors",
	}, []string{"stage"})

	StoreWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "store_writes_total",
		Help:      "Store write operations per table and result",
	}, []string{"table", "result"})
)
