// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cdcevent

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the record builder metrics.
type Metrics struct {
	RowsBuilt      *prometheus.CounterVec
	ToastedColumns *prometheus.CounterVec
}

// NewMetrics returns unregistered builder metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RowsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pgcdc",
			Name:      "rows_built_total",
			Help:      "Change records built, by operation.",
		}, []string{"op"}),
		ToastedColumns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pgcdc",
			Name:      "toasted_columns_total",
			Help:      "Unchanged TOAST columns, by shape and how the record represented them.",
		}, []string{"shape", "handling"}),
	}
}

// Register registers the metrics with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	if err := r.Register(m.RowsBuilt); err != nil {
		return err
	}
	return r.Register(m.ToastedColumns)
}
