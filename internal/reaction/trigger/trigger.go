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

// Package trigger holds the Stop Trigger predicates a Reaction Observer
// evaluates after every invocation (spec §4.6).
package trigger

import "github.com/drasi-project/e2e-test-framework/internal/model"

// Trigger mirrors internal/reaction.StopTrigger; kept as its own type here
// so this package doesn't need to import internal/reaction.
type Trigger interface {
	Evaluate(metrics model.ObserverMetrics) bool
}

// RecordCount fires once metrics.InvocationCount reaches N.
type RecordCount struct {
	N int64
}

func (r RecordCount) Evaluate(metrics model.ObserverMetrics) bool {
	return metrics.InvocationCount >= r.N
}

// RecordSequenceNumber fires once the last-seen sequence reaches S.
type RecordSequenceNumber struct {
	S int64
}

func (r RecordSequenceNumber) Evaluate(metrics model.ObserverMetrics) bool {
	return metrics.LastSequence >= r.S
}

// Latch wraps t so that once it has fired, every later Evaluate call
// reports true without re-running t's predicate. Firing is permanent and
// idempotent per spec §4.6; the Reaction Observer stops evaluating further
// triggers the moment one fires, but a latch also protects a trigger that
// outlives a single observation round (e.g. if triggers are re-used across
// an Observer.Reset).
type Latch struct {
	inner Trigger
	fired bool
}

func NewLatch(t Trigger) *Latch {
	return &Latch{inner: t}
}

func (l *Latch) Evaluate(metrics model.ObserverMetrics) bool {
	if l.fired {
		return true
	}
	if l.inner.Evaluate(metrics) {
		l.fired = true
		return true
	}
	return false
}
