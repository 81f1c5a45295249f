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

// Package reaction holds the Reaction Output Handler contract, the shared
// Uninitialized/Paused/Running/Stopped/Error state machine every concrete
// back-end embeds, and the Reaction Observer that consumes a handler's
// message stream. Concrete back-ends (HTTP, gRPC, in-process channel) live
// under internal/reaction/handler; output sinks live under
// internal/reaction/logger; stop predicates under internal/reaction/trigger.
package reaction

import (
	"sync"
	"time"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// CloseTimeout bounds how long a handler's Stop waits for a graceful
// transport shutdown before giving up, mirroring internal/dispatch's
// CloseTimeout.
const CloseTimeout = 5 * time.Second

// HandlerStatus is a Reaction Output Handler's lifecycle state (spec §4.4).
type HandlerStatus string

const (
	StatusUninitialized HandlerStatus = "Uninitialized"
	StatusPaused        HandlerStatus = "Paused"
	StatusRunning       HandlerStatus = "Running"
	StatusStopped       HandlerStatus = "Stopped"
	StatusError         HandlerStatus = "Error"
)

// ControlSignal is a lifecycle event surfaced on a handler's message stream
// alongside ordinary invocations.
type ControlSignal string

const (
	ControlStart ControlSignal = "start"
	ControlStop  ControlSignal = "stop"
)

// Message is one item on a Reaction Output Handler's internal stream:
// exactly one of Invocation, Output or Err is set, unless Control is set,
// in which case the others are nil.
type Message struct {
	// Sequence is the per-invocation ordering key the handler derived from
	// its transport (correlation header, body field, or batch position).
	Sequence int64

	Invocation *model.ReactionInvocation
	Output     *model.ReactionOutput
	Control    ControlSignal
	Err        error
}

// Handler is the uniform interface every Reaction Output Handler back-end
// implements, regardless of transport.
type Handler interface {
	Init() error
	Start() error
	Pause() error
	Stop() error
	Status() HandlerStatus
	Messages() <-chan Message
}

// StateMachine is the Uninitialized -> Paused -> Running -> Stopped
// transition table spec §4.4 describes (with an Error short-circuit on
// bind/stream faults), embedded by every concrete handler. Concrete
// handlers call the Transition* methods from their own Init/Start/Pause/Stop
// so the state checks are centralised while the transport-specific work
// (binding a listener, starting a server loop) stays in the handler.
type StateMachine struct {
	mu     sync.Mutex
	status HandlerStatus
	out    chan Message
}

// NewStateMachine returns a StateMachine in Uninitialized with an output
// channel buffered to bufSize messages.
func NewStateMachine(bufSize int) *StateMachine {
	return &StateMachine{status: StatusUninitialized, out: make(chan Message, bufSize)}
}

func (s *StateMachine) Status() HandlerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *StateMachine) Messages() <-chan Message { return s.out }

// TransitionInit moves Uninitialized -> Paused.
func (s *StateMachine) TransitionInit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusUninitialized {
		return model.Errorf(model.ClassState, string(s.status), "init is only valid from Uninitialized")
	}
	s.status = StatusPaused
	return nil
}

// TransitionStart moves Paused -> Running.
func (s *StateMachine) TransitionStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPaused {
		return model.Errorf(model.ClassState, string(s.status), "start is only valid from Paused")
	}
	s.status = StatusRunning
	return nil
}

// TransitionPause moves Running -> Paused.
func (s *StateMachine) TransitionPause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return model.Errorf(model.ClassState, string(s.status), "pause is only valid from Running")
	}
	s.status = StatusPaused
	return nil
}

// TransitionStop moves Running or Paused -> Stopped, emits a final
// Control(Stop) message and closes the output channel. Callers must not
// call Emit after TransitionStop returns.
func (s *StateMachine) TransitionStop() error {
	s.mu.Lock()
	if s.status != StatusRunning && s.status != StatusPaused {
		s.mu.Unlock()
		return model.Errorf(model.ClassState, string(s.status), "stop is only valid from Running or Paused")
	}
	s.status = StatusStopped
	s.mu.Unlock()
	s.out <- Message{Control: ControlStop}
	close(s.out)
	return nil
}

// Fail moves the handler to Error and surfaces cause on the message
// stream. A full output channel drops the failure message rather than
// blocking, since a stuck consumer shouldn't wedge the failing transport.
func (s *StateMachine) Fail(cause error) {
	s.mu.Lock()
	s.status = StatusError
	s.mu.Unlock()
	select {
	case s.out <- Message{Err: cause}:
	default:
	}
}

func (s *StateMachine) deliverable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusRunning
}

// Emit delivers msg if the handler is currently Running; a Paused handler
// silently drops it, which is how pause/start toggles deliverability
// without the transport itself needing to know about lifecycle state.
func (s *StateMachine) Emit(msg Message) {
	if !s.deliverable() {
		return
	}
	s.out <- msg
}
