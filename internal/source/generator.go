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

// Package source implements the Source Change Generator: a timed playback
// engine that produces Source Change Events on a schedule and fans them
// out to every configured Dispatcher.
package source

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/clock"
	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// State is a generator's lifecycle state (spec §4.1).
type State int

const (
	Paused State = iota
	Running
	Stepping
	Skipping
	Stopped
	Finished
	Error
)

func (s State) String() string {
	switch s {
	case Paused:
		return "Paused"
	case Running:
		return "Running"
	case Stepping:
		return "Stepping"
	case Skipping:
		return "Skipping"
	case Stopped:
		return "Stopped"
	case Finished:
		return "Finished"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// TimeMode mirrors clock.TimeMode at the generator's configuration surface.
type TimeMode = clock.TimeMode

// SpacingMode selects how the scheduler paces event release (spec §4.1).
type SpacingMode int

const (
	SpacingNone SpacingMode = iota
	SpacingRecorded
	SpacingRate
)

// Backend produces the next scheduled event, or reports end of stream.
// Scripted and model-driven generators each implement this.
type Backend interface {
	// Next returns the next event to schedule and its virtual-time
	// timestamp in nanoseconds, or ok=false at end of stream.
	Next(ctx context.Context) (ev model.SourceChangeEvent, tsNs uint64, ok bool, err error)

	// Reset rewinds the backend to its initial position, for Paused'.
	Reset() error

	// Close releases backend resources (open files, RNG state, etc).
	Close() error
}

// Dispatcher is the fan-out target contract shared with internal/dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []model.SourceChangeEvent) error
	Close(ctx context.Context) error
}

// Config parameterises one generator instance (spec §4.1).
type Config struct {
	Id           model.TestRunSourceId
	TimeMode     TimeMode
	SpacingMode  SpacingMode
	RateEventsPerSec float64
	RebaseEpochNs    uint64
	SendInitialInserts bool
}

// Generator drives one Source Change Generator's command loop. Exactly
// one long-lived task runs Generator.Run (spec §5).
type Generator struct {
	cfg     Config
	backend Backend
	clk     clock.Clock
	spacer  *clock.RateSpacer
	vt      *clock.VirtualTime
	dispatchers []Dispatcher
	log     *zap.SugaredLogger

	mu        sync.Mutex
	state     State
	remaining int // Stepping/Skipping counter
	lsn       uint64
	lastErr   error

	commands chan command
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdPause
	cmdStep
	cmdSkip
	cmdStop
	cmdReset
	cmdGetState
)

type command struct {
	kind  commandKind
	n     int
	reply chan error
}

// New constructs a Generator in the Paused state.
func New(cfg Config, backend Backend, clk clock.Clock, dispatchers []Dispatcher, log *zap.SugaredLogger) *Generator {
	g := &Generator{
		cfg:         cfg,
		backend:     backend,
		clk:         clk,
		dispatchers: dispatchers,
		log:         log,
		state:       Paused,
		commands:    make(chan command, 8),
		vt:          clock.NewVirtualTime(cfg.TimeMode, cfg.RebaseEpochNs),
	}
	if cfg.SpacingMode == SpacingRate && cfg.RateEventsPerSec > 0 {
		g.spacer = clock.NewRateSpacer(cfg.RateEventsPerSec, 1)
	}
	return g
}

// State returns the current state without blocking on the command loop;
// GetState is accepted in every state and never transitions (spec §4.1).
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// send submits a command and waits for the loop to acknowledge it.
func (g *Generator) send(kind commandKind, n int) error {
	reply := make(chan error, 1)
	g.commands <- command{kind: kind, n: n, reply: reply}
	return <-reply
}

func (g *Generator) Start() error { return g.send(cmdStart, 0) }
func (g *Generator) Pause() error { return g.send(cmdPause, 0) }
func (g *Generator) Step(n int) error { return g.send(cmdStep, n) }
func (g *Generator) Skip(n int) error { return g.send(cmdSkip, n) }
func (g *Generator) Stop() error  { return g.send(cmdStop, 0) }
func (g *Generator) Reset() error { return g.send(cmdReset, 0) }

// Run is the generator's single long-lived task: it owns both the
// command channel and the scheduling/dispatch loop, per spec §5's "each
// generator owns exactly one long-lived task" rule. It returns only when
// the context is cancelled; in Paused, Stopped, Finished or Error it waits
// on the command channel.
func (g *Generator) Run(ctx context.Context) {
	for {
		g.mu.Lock()
		running := g.state == Running || g.state == Stepping || g.state == Skipping
		g.mu.Unlock()

		if !running {
			// Paused/Stopped/Finished/Error: nothing to schedule, park on
			// the command channel until something changes the state.
			select {
			case <-ctx.Done():
				return
			case cmd := <-g.commands:
				g.handleCommand(ctx, cmd)
			}
			continue
		}

		// Running/Stepping/Skipping: drain any pending command without
		// blocking, then schedule exactly one more event.
		select {
		case <-ctx.Done():
			return
		case cmd := <-g.commands:
			g.handleCommand(ctx, cmd)
			continue
		default:
		}

		g.runLoopStep(ctx)
	}
}

// handleCommand applies one external command to the state machine,
// per the transition table in spec §4.1.
func (g *Generator) handleCommand(ctx context.Context, cmd command) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch cmd.kind {
	case cmdGetState:
		cmd.reply <- nil
		return
	case cmdStart:
		switch g.state {
		case Paused, Running:
			g.state = Running
			cmd.reply <- nil
		default:
			cmd.reply <- model.Errorf(model.ClassState, g.state.String(), "start invalid from %s", g.state)
		}
	case cmdPause:
		switch g.state {
		case Paused, Running, Stepping, Skipping:
			g.state = Paused
			cmd.reply <- nil
		default:
			cmd.reply <- model.Errorf(model.ClassState, g.state.String(), "pause invalid from %s", g.state)
		}
	case cmdStep:
		if g.state != Paused {
			cmd.reply <- model.Errorf(model.ClassState, g.state.String(), "currently stepping or not paused")
			return
		}
		g.state = Stepping
		g.remaining = cmd.n
		cmd.reply <- nil
	case cmdSkip:
		if g.state != Paused {
			cmd.reply <- model.Errorf(model.ClassState, g.state.String(), "currently skipping or not paused")
			return
		}
		g.state = Skipping
		g.remaining = cmd.n
		cmd.reply <- nil
	case cmdStop:
		switch g.state {
		case Paused, Running, Stepping, Skipping, Stopped:
			g.state = Stopped
			cmd.reply <- nil
		default:
			cmd.reply <- model.Errorf(model.ClassState, g.state.String(), "stop invalid from %s", g.state)
		}
	case cmdReset:
		switch g.state {
		case Paused, Stopped, Finished, Error:
			g.resetLocked()
			cmd.reply <- nil
		default:
			cmd.reply <- model.Errorf(model.ClassState, g.state.String(), "reset invalid while %s", g.state)
		}
	}
}

// resetLocked implements Paused': full reinitialisation from config.
func (g *Generator) resetLocked() {
	if err := g.backend.Reset(); err != nil {
		g.state = Error
		g.lastErr = err
		return
	}
	g.vt.Reset()
	g.lsn = 0
	g.lastErr = nil
	g.state = Paused
}

// runLoopStep schedules and dispatches exactly one event, returning false
// if the loop should go back to waiting on a command (end of stream,
// pause boundary reached, or a dispatch-fatal error).
func (g *Generator) runLoopStep(ctx context.Context) bool {
	ev, tsNs, ok, err := g.backend.Next(ctx)
	if err != nil {
		g.mu.Lock()
		g.state = Error
		g.lastErr = err
		g.mu.Unlock()
		g.log.Errorw("source backend error", "source", g.cfg.Id.String(), "error", err)
		return false
	}
	if !ok {
		g.mu.Lock()
		g.state = Finished
		g.mu.Unlock()
		return false
	}

	scheduleTsNs := tsNs
	if g.cfg.TimeMode == clock.TimeLive {
		// Live mode tracks wall time directly rather than whatever the
		// backend happened to stamp the record with.
		scheduleTsNs = uint64(g.clk.Now().UnixNano())
	}

	if !g.vt.Started() {
		g.vt.Seed(scheduleTsNs, uint64(g.clk.Now().UnixNano()))
	} else {
		delta := g.vt.Advance(scheduleTsNs)
		if g.cfg.SpacingMode == SpacingRecorded && delta > 0 {
			deadline := g.clk.Now().Add(delta)
			if preempted, cmd, err := g.sleepOrCommand(ctx, deadline); err != nil {
				return false
			} else if preempted {
				g.handleCommand(ctx, cmd)
				return false
			}
		}
	}

	if g.spacer != nil {
		if err := g.spacer.Wait(ctx); err != nil {
			return false
		}
	}

	ev.Payload.Source.TsNs = g.vt.NextNs()
	ev.Payload.Source.Lsn = g.lsn
	g.lsn++
	g.vt.Commit()

	if err := g.dispatchAll(ctx, ev); err != nil {
		g.mu.Lock()
		g.state = Error
		g.lastErr = err
		g.mu.Unlock()
		return false
	}

	return g.afterStep()
}

// sleepOrCommand races the scheduler's Δ-sleep against the command
// channel, so a Stop or Reset issued mid-sleep returns promptly instead
// of waiting out an arbitrarily long Δ (spec §5 cancellation model,
// §8 property 8).
func (g *Generator) sleepOrCommand(ctx context.Context, deadline time.Time) (preempted bool, cmd command, err error) {
	done := make(chan error, 1)
	go func() { done <- g.clk.SleepUntil(ctx, deadline) }()

	select {
	case err = <-done:
		return false, command{}, err
	case cmd = <-g.commands:
		return true, cmd, nil
	}
}

// dispatchAll hands the event to every configured dispatcher concurrently,
// returning only once all have acknowledged (spec §4.1 dispatch fan-out).
// Dispatcher errors are logged but never abort the generator.
func (g *Generator) dispatchAll(ctx context.Context, ev model.SourceChangeEvent) error {
	if len(g.dispatchers) == 0 {
		return nil
	}
	var wg sync.WaitGroup
	errs := make([]error, len(g.dispatchers))
	for i, d := range g.dispatchers {
		wg.Add(1)
		go func(i int, d Dispatcher) {
			defer wg.Done()
			errs[i] = d.Dispatch(ctx, []model.SourceChangeEvent{ev})
		}(i, d)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			g.log.Warnw("dispatcher error", "source", g.cfg.Id.String(), "dispatcher", i, "error", err)
		}
	}
	return nil
}

// afterStep advances Stepping/Skipping counters and returns whether the
// loop should keep scheduling without waiting for a new command.
func (g *Generator) afterStep() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case Stepping, Skipping:
		g.remaining--
		if g.remaining <= 0 {
			g.state = Paused
			return false
		}
		return true
	case Running:
		return true
	default:
		return false
	}
}

// LastError returns the error that drove the generator into Error state,
// if any.
func (g *Generator) LastError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}
