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

package model

import (
	"encoding/json"
	"time"
)

// ReactionInvocation is the payload of a reaction handler record that
// carries an upstream query invocation (request body + metadata).
type ReactionInvocation struct {
	QueryId      string            `json:"query_id"`
	ReactionType string            `json:"reaction_type"`
	RequestBody  json.RawMessage   `json:"request_body"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// ReactionOutput is the payload of a reaction handler record that carries
// a raw value (used by gRPC/channel backends that don't speak HTTP bodies).
type ReactionOutput struct {
	Value json.RawMessage `json:"value"`
}

// ReactionHandlerRecord is the uniform envelope for one SUT callback.
// Exactly one of Invocation or Output is non-nil.
type ReactionHandlerRecord struct {
	Id              string    `json:"id"`
	Sequence        int64     `json:"sequence"`
	CreatedTimeNs   uint64    `json:"created_time_ns"`
	ProcessedTimeNs uint64    `json:"processed_time_ns"`
	Traceparent     string    `json:"traceparent,omitempty"`
	Tracestate      string    `json:"tracestate,omitempty"`

	Invocation *ReactionInvocation `json:"invocation,omitempty"`
	Output     *ReactionOutput     `json:"output,omitempty"`
}

// ObserverMetrics are the aggregate counters and wall-clock extents a
// Reaction Observer maintains.
type ObserverMetrics struct {
	InvocationCount  int64
	FirstInvocation  time.Time
	LastInvocation   time.Time
	ObserverStart    time.Time
	ObserverStop     time.Time
	LastSequence     int64
}

// Duration is the run's observed wall-clock extent.
func (m ObserverMetrics) Duration() time.Duration {
	end := m.ObserverStop
	if end.IsZero() {
		end = time.Now()
	}
	if m.ObserverStart.IsZero() {
		return 0
	}
	return end.Sub(m.ObserverStart)
}

// InvocationsPerSecond is the derived throughput of the run so far.
func (m ObserverMetrics) InvocationsPerSecond() float64 {
	d := m.Duration()
	if d <= 0 {
		return 0
	}
	return float64(m.InvocationCount) / d.Seconds()
}
