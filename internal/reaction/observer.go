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

package reaction

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/clock"
	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// ObserverState is the Reaction Observer's own lifecycle (spec §4.5): the
// same shape as a Handler's but without Stepping/Skipping.
type ObserverState string

const (
	ObserverRunning ObserverState = "Running"
	ObserverPaused  ObserverState = "Paused"
	ObserverStopped ObserverState = "Stopped"
	ObserverError   ObserverState = "Error"
)

// StopTrigger is a pure predicate over observed metrics (spec §4.6).
// internal/reaction/trigger's concrete triggers satisfy this structurally.
type StopTrigger interface {
	Evaluate(metrics model.ObserverMetrics) bool
}

// Summary is the Performance Metrics logger's end-of-run projection
// (spec §4.7).
type Summary struct {
	StartNs          uint64  `json:"start_ns"`
	EndNs            uint64  `json:"end_ns"`
	DurationNs       uint64  `json:"duration_ns"`
	Count            int64   `json:"count"`
	RecordsPerSecond float64 `json:"records_per_second"`
}

// Logger is a sink for Reaction Handler Records (spec §4.7).
// internal/reaction/logger's concrete loggers satisfy this structurally.
// EndTestRun must be idempotent: the Summary of the first call is returned
// on every subsequent call.
type Logger interface {
	Log(rec model.ReactionHandlerRecord) error
	EndTestRun() (Summary, error)
}

// Observer consumes a Handler's message stream, projects every Invocation
// into a Reaction Handler Record, fans it out to Loggers, and evaluates
// Stop Triggers after each one (spec §4.5).
type Observer struct {
	mu       sync.Mutex
	state    ObserverState
	metrics  model.ObserverMetrics
	handler  Handler
	loggers  []Logger
	triggers []StopTrigger
	clock    clock.Clock
	nextID   int64
	log      *zap.SugaredLogger
}

// NewObserver builds an Observer over handler's message stream. clk is
// injectable so tests can drive timestamps deterministically, matching
// internal/source's Clock discipline.
func NewObserver(handler Handler, loggers []Logger, triggers []StopTrigger, clk clock.Clock, log *zap.SugaredLogger) *Observer {
	return &Observer{
		state:    ObserverRunning,
		handler:  handler,
		loggers:  loggers,
		triggers: triggers,
		clock:    clk,
		log:      log,
	}
}

func (o *Observer) State() ObserverState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Observer) Metrics() model.ObserverMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.metrics
}

// Run drains handler's Messages channel until it closes, the handler
// reports Stop, a Stop Trigger fires, or ctx is cancelled. It returns when
// the observer reaches Stopped or Error.
func (o *Observer) Run(ctx context.Context) error {
	o.mu.Lock()
	o.metrics.ObserverStart = o.clock.Now()
	o.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-o.handler.Messages():
			if !ok {
				return nil
			}
			if msg.Err != nil {
				o.fail(msg.Err)
				return msg.Err
			}
			if msg.Control == ControlStop {
				return nil
			}
			if err := o.observe(msg); err != nil {
				return err
			}
			if o.State() == ObserverStopped {
				return nil
			}
		}
	}
}

func (o *Observer) observe(msg Message) error {
	now := o.clock.Now()

	o.mu.Lock()
	o.metrics.InvocationCount++
	if o.metrics.FirstInvocation.IsZero() {
		o.metrics.FirstInvocation = now
	}
	o.metrics.LastInvocation = now
	o.metrics.LastSequence = msg.Sequence
	metricsSnapshot := o.metrics
	id := atomic.AddInt64(&o.nextID, 1)
	o.mu.Unlock()

	rec := model.ReactionHandlerRecord{
		Id:              fmt.Sprintf("%d", id),
		Sequence:        msg.Sequence,
		CreatedTimeNs:   uint64(now.UnixNano()),
		ProcessedTimeNs: uint64(o.clock.Now().UnixNano()),
		Invocation:      msg.Invocation,
		Output:          msg.Output,
	}

	for _, l := range o.loggers {
		if err := l.Log(rec); err != nil && o.log != nil {
			o.log.Errorw("reaction logger failed", "error", err)
		}
	}

	for _, t := range o.triggers {
		if t.Evaluate(metricsSnapshot) {
			return o.stop()
		}
	}
	return nil
}

// stop finalises loggers and asks the handler to stop. The first trigger
// to fire drives this; later triggers on the same record are never
// evaluated since observe returns as soon as one fires (spec §4.6).
func (o *Observer) stop() error {
	o.mu.Lock()
	if o.state == ObserverStopped {
		o.mu.Unlock()
		return nil
	}
	o.state = ObserverStopped
	o.metrics.ObserverStop = o.clock.Now()
	o.mu.Unlock()

	for _, l := range o.loggers {
		if _, err := l.EndTestRun(); err != nil && o.log != nil {
			o.log.Errorw("reaction logger end_test_run failed", "error", err)
		}
	}
	return o.handler.Stop()
}

func (o *Observer) fail(cause error) {
	o.mu.Lock()
	o.state = ObserverError
	o.mu.Unlock()
	if o.log != nil {
		o.log.Errorw("reaction handler failed", "error", cause)
	}
}

// Pause moves Running -> Paused. The handler feeding this observer is
// expected to be paused by the same orchestration step; Observer.Pause
// only stops Stop Trigger evaluation from progressing the state further.
func (o *Observer) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != ObserverRunning {
		return model.Errorf(model.ClassState, string(o.state), "pause is only valid from Running")
	}
	o.state = ObserverPaused
	return nil
}

// Reset rebuilds loggers and triggers from the given config and returns to
// Running. Valid only from Paused (spec §4.5).
func (o *Observer) Reset(loggers []Logger, triggers []StopTrigger) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != ObserverPaused {
		return model.Errorf(model.ClassState, string(o.state), "reset is only valid from Paused")
	}
	o.loggers = loggers
	o.triggers = triggers
	o.metrics = model.ObserverMetrics{}
	o.state = ObserverRunning
	return nil
}
