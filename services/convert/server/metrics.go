// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// conversionsTotal counts conversion requests by outcome.
	// Labels: status (ok, error)
	conversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foxlate",
		Subsystem: "server",
		Name:      "conversions_total",
		Help:      "Total conversion requests by outcome",
	}, []string{"status"})

	// analysesTotal counts analyze requests by outcome.
	// Labels: status (ok, error)
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foxlate",
		Subsystem: "server",
		Name:      "analyses_total",
		Help:      "Total analyze requests by outcome",
	}, []string{"status"})

	// findingsEmitted counts findings returned across all conversions.
	findingsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "foxlate",
		Subsystem: "server",
		Name:      "findings_total",
		Help:      "Findings returned across all conversions",
	})

	// conversionDuration measures end-to-end conversion time.
	conversionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "foxlate",
		Subsystem: "server",
		Name:      "conversion_duration_seconds",
		Help:      "End-to-end conversion time",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)
