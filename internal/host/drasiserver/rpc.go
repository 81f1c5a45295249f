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

package drasiserver

import (
	"context"
	"net/rpc"
	"sync"

	"github.com/pkg/errors"

	"github.com/drasi-project/e2e-test-framework/internal/dispatch"
	"github.com/drasi-project/e2e-test-framework/internal/reaction/handler"
)

// RPCStartArgs/RPCReply mirror Runner.ExecuteCommitJob's call/reply
// pair shape: a plain request struct and an Ok-carrying reply struct
// exchanged over net/rpc.
type RPCStartArgs struct{}

type RPCReply struct {
	Ok bool
}

// RPC runs a Drasi Server reached over net/rpc, the same dial-once,
// call-by-name transport as runner.RunnerRegistry. Out-of-process by
// construction: GetSourceHandle and GetReactionHandle always return
// false, matching Container.
type RPC struct {
	addr     string
	endpoint string

	mu     sync.Mutex
	client *rpc.Client
	state  State
}

func NewRPC(addr, endpoint string) *RPC {
	return &RPC{addr: addr, endpoint: endpoint, state: StateNotStarted}
}

func (r *RPC) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, err := rpc.Dial("tcp", r.addr)
	if err != nil {
		r.state = StateError
		return errors.Wrap(err, "drasi server: rpc dial")
	}
	var reply RPCReply
	if err := client.Call("DrasiServer.Start", RPCStartArgs{}, &reply); err != nil {
		r.state = StateError
		return errors.Wrap(err, "drasi server: rpc start")
	}
	r.client = client
	r.state = StateRunning
	return nil
}

func (r *RPC) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		r.state = StateStopped
		return nil
	}
	var reply RPCReply
	err := r.client.Call("DrasiServer.Stop", RPCStartArgs{}, &reply)
	r.client.Close()
	r.client = nil
	if err != nil {
		r.state = StateError
		return errors.Wrap(err, "drasi server: rpc stop")
	}
	r.state = StateStopped
	return nil
}

func (r *RPC) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *RPC) Endpoint() string { return r.endpoint }

func (r *RPC) GetSourceHandle(sourceId string) (dispatch.SUTInput, bool) {
	return nil, false
}

func (r *RPC) GetReactionHandle(reactionId string) (handler.ResultHandle, bool) {
	return nil, false
}
