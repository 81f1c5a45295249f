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
	"testing"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

func TestStateMachineFollowsLifecycleOrder(t *testing.T) {
	sm := NewStateMachine(4)
	if sm.Status() != StatusUninitialized {
		t.Fatalf("expected Uninitialized, got %s", sm.Status())
	}
	if err := sm.TransitionInit(); err != nil {
		t.Fatalf("TransitionInit: %v", err)
	}
	if sm.Status() != StatusPaused {
		t.Fatalf("expected Paused after init, got %s", sm.Status())
	}
	if err := sm.TransitionStart(); err != nil {
		t.Fatalf("TransitionStart: %v", err)
	}
	if sm.Status() != StatusRunning {
		t.Fatalf("expected Running after start, got %s", sm.Status())
	}
	if err := sm.TransitionPause(); err != nil {
		t.Fatalf("TransitionPause: %v", err)
	}
	if sm.Status() != StatusPaused {
		t.Fatalf("expected Paused after pause, got %s", sm.Status())
	}
}

func TestStateMachineRejectsInvalidTransitions(t *testing.T) {
	sm := NewStateMachine(4)
	err := sm.TransitionStart()
	if err == nil {
		t.Fatal("expected an error starting from Uninitialized")
	}
	if !model.IsClass(err, model.ClassState) {
		t.Fatal("expected a State-class error")
	}
}

func TestStateMachineEmitDropsWhenNotRunning(t *testing.T) {
	sm := NewStateMachine(4)
	sm.Emit(Message{Sequence: 1})
	select {
	case <-sm.Messages():
		t.Fatal("expected no message delivered while Uninitialized")
	default:
	}

	sm.TransitionInit()
	sm.TransitionStart()
	sm.Emit(Message{Sequence: 2})
	select {
	case msg := <-sm.Messages():
		if msg.Sequence != 2 {
			t.Fatalf("expected sequence 2, got %d", msg.Sequence)
		}
	default:
		t.Fatal("expected a message delivered while Running")
	}
}

func TestStateMachineStopEmitsControlAndClosesChannel(t *testing.T) {
	sm := NewStateMachine(4)
	sm.TransitionInit()
	sm.TransitionStart()
	if err := sm.TransitionStop(); err != nil {
		t.Fatalf("TransitionStop: %v", err)
	}
	msg, ok := <-sm.Messages()
	if !ok {
		t.Fatal("expected a final Control(Stop) message before the channel closes")
	}
	if msg.Control != ControlStop {
		t.Fatalf("expected ControlStop, got %v", msg.Control)
	}
	if _, ok := <-sm.Messages(); ok {
		t.Fatal("expected the channel to be closed after Control(Stop)")
	}
}
