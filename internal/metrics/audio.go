// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VOXSegmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "vox_segments_total",
		Help:      "Recording segments closed per feed and reason (silence, max_duration)",
	}, []string{"feed", "reason"})

	WhisperRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "whisper_requests_total",
		Help:      "Transcription requests per result",
	}, []string{"result"})

	WhisperDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "airwave",
		Name:      "whisper_duration_seconds",
		Help:      "Transcription round-trip latency",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	EAMDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Name:      "eam_detected_total",
		Help:      "Emergency Action Messages detected per type",
	}, []string{"type"})
)
