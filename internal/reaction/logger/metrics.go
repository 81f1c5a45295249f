// BSD 2-Clause License
//
// Copyright (c) 2020, Andrea Giacomo Baldan
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// * Redistributions of source code must retain the above copyright notice, this
//   list of conditions and the following disclaimer.
//
// * Redistributions in binary form must reproduce the above copyright notice,
//   this list of conditions and the following disclaimer in the documentation
//   and/or other materials provided with the distribution.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package logger

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/reaction"
)

// Metrics aggregates record counts and first/last timestamps, exposes them
// as Prometheus collectors, and on EndTestRun writes a summary file
// (spec §4.7). registry may be nil, in which case the collectors are
// created but never registered (useful for tests that don't stand up a
// /metrics endpoint).
type Metrics struct {
	summaryPath string

	mu      sync.Mutex
	startNs uint64
	lastNs  uint64
	count   int64
	ended   bool
	summary reaction.Summary

	recordCounter prometheus.Counter
	lastSeqGauge  prometheus.Gauge
}

// NewMetrics builds a Metrics logger for testRunID, registering its
// collectors against registry (pass prometheus.NewRegistry() per run, the
// way the host registers one registry per test run). summaryPath, if
// non-empty, receives the JSON-encoded Summary on EndTestRun.
func NewMetrics(testRunID, summaryPath string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		summaryPath: summaryPath,
		recordCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "drasi_test",
			Subsystem:   "reaction",
			Name:        "invocations_total",
			Help:        "Total reaction invocations observed for a test run.",
			ConstLabels: prometheus.Labels{"test_run": testRunID},
		}),
		lastSeqGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "drasi_test",
			Subsystem:   "reaction",
			Name:        "last_sequence",
			Help:        "Last-seen reaction sequence number for a test run.",
			ConstLabels: prometheus.Labels{"test_run": testRunID},
		}),
	}
	if registry != nil {
		registry.MustRegister(m.recordCounter, m.lastSeqGauge)
	}
	return m
}

func (m *Metrics) Log(rec model.ReactionHandlerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startNs == 0 {
		m.startNs = rec.CreatedTimeNs
	}
	m.lastNs = rec.CreatedTimeNs
	m.count++
	m.recordCounter.Inc()
	m.lastSeqGauge.Set(float64(rec.Sequence))
	return nil
}

// EndTestRun computes the run summary once; repeated calls return the same
// Summary without recomputing or rewriting the file (spec §4.7's
// idempotence requirement).
func (m *Metrics) EndTestRun() (reaction.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return m.summary, nil
	}
	m.ended = true

	duration := m.lastNs - m.startNs
	var rps float64
	if duration > 0 {
		rps = float64(m.count) / (float64(duration) / 1e9)
	}
	m.summary = reaction.Summary{
		StartNs:          m.startNs,
		EndNs:            m.lastNs,
		DurationNs:       duration,
		Count:            m.count,
		RecordsPerSecond: rps,
	}

	if m.summaryPath == "" {
		return m.summary, nil
	}
	f, err := os.Create(m.summaryPath)
	if err != nil {
		return m.summary, errors.Wrapf(err, "metrics logger: create %s", m.summaryPath)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(m.summary); err != nil {
		return m.summary, errors.Wrap(err, "metrics logger: encode summary")
	}
	return m.summary, nil
}
