// Copyright 2024 The Docker Tidy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tidy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for a run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	planned *prometheus.CounterVec
	removed *prometheus.CounterVec
	failed  *prometheus.CounterVec
	lastRun prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		planned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docker_tidy_planned_total",
				Help: "Total number of resources planned for removal or stop",
			},
			[]string{"kind"},
		),

		removed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docker_tidy_removed_total",
				Help: "Total number of successful removal or stop calls",
			},
			[]string{"kind"},
		),

		failed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docker_tidy_failed_total",
				Help: "Total number of failed removal or stop calls",
			},
			[]string{"kind", "class"},
		),

		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "docker_tidy_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
	}
}

func (m *Metrics) recordPlanned(kind string, n int) {
	if m == nil {
		return
	}
	m.planned.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) recordRemoved(kind string) {
	if m == nil {
		return
	}
	m.removed.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordFailed(kind, class string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(kind, class).Inc()
}

func (m *Metrics) recordFinished(t time.Time) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(t.Unix()))
}
