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

// Package drasiserver implements the embedded Drasi Server lifecycle (spec
// §4.8) and its programmatic API: a narrow surface the host's late-binding
// step resolves source/reaction handles against.
package drasiserver

import (
	"context"

	"github.com/drasi-project/e2e-test-framework/internal/dispatch"
	"github.com/drasi-project/e2e-test-framework/internal/reaction/handler"
)

// State is a Drasi Server's lifecycle state (spec §4.8's "start | stop |
// get_state" control surface, restricted to those three operations).
type State string

const (
	StateNotStarted State = "NotStarted"
	StateRunning    State = "Running"
	StateStopped    State = "Stopped"
	StateError      State = "Error"
)

// API is the programmatic surface described in SUPPLEMENTED FEATURES
// (original_source's drasi_servers/programmatic_api.rs): start/stop the
// embedded instance and resolve in-process handles by id. Out-of-process
// back-ends (container, rpc) always return ok=false from the Get*Handle
// calls, since they have no in-process object to hand back; only the
// Embedded back-end serves the in-process Channel dispatcher/handler.
type API interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	State() State
	Endpoint() string
	GetSourceHandle(sourceId string) (dispatch.SUTInput, bool)
	GetReactionHandle(reactionId string) (handler.ResultHandle, bool)
}
