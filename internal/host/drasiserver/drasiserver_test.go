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
	"testing"

	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/reaction/handler"
)

func TestEmbeddedLifecycle(t *testing.T) {
	e := NewEmbedded()
	if e.State() != StateNotStarted {
		t.Fatalf("expected NotStarted, got %s", e.State())
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if e.State() != StateRunning {
		t.Fatalf("expected Running, got %s", e.State())
	}
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if e.State() != StateStopped {
		t.Fatalf("expected Stopped, got %s", e.State())
	}
}

func TestEmbeddedGetSourceHandleInsertsNode(t *testing.T) {
	e := NewEmbedded()
	handle, ok := e.GetSourceHandle("any-source")
	if !ok {
		t.Fatal("expected a resolvable source handle")
	}
	if err := handle.InsertNode([]string{"Person"}, "p1", map[string]model.Scalar{"name": "alice"}); err != nil {
		t.Fatalf("InsertNode: %v", err)
	}
	if e.NodeCount() != 1 {
		t.Fatalf("expected 1 node, got %d", e.NodeCount())
	}
	if err := handle.DeleteNode([]string{"Person"}, "p1"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if e.NodeCount() != 0 {
		t.Fatalf("expected 0 nodes after delete, got %d", e.NodeCount())
	}
}

func TestEmbeddedPublishFansOutToSubscribers(t *testing.T) {
	e := NewEmbedded()
	resultHandle, ok := e.GetReactionHandle("any-reaction")
	if !ok {
		t.Fatal("expected a resolvable reaction handle")
	}

	var got []handler.QueryResult
	unsubscribe := resultHandle.Subscribe(func(qr handler.QueryResult) {
		got = append(got, qr)
	})

	e.Publish(handler.QueryResult{QueryId: "q1"})
	if len(got) != 1 || got[0].QueryId != "q1" {
		t.Fatalf("expected one delivered result, got %+v", got)
	}

	unsubscribe()
	e.Publish(handler.QueryResult{QueryId: "q2"})
	if len(got) != 1 {
		t.Fatalf("expected no further delivery after unsubscribe, got %+v", got)
	}
}

func TestContainerAndRPCNeverResolveInProcessHandles(t *testing.T) {
	c := NewContainer(ContainerConfig{Image: "drasi/server", Endpoint: "http://sut:8080"}, nil)
	if _, ok := c.GetSourceHandle("s1"); ok {
		t.Fatal("container-backed server must not resolve an in-process source handle")
	}
	if _, ok := c.GetReactionHandle("r1"); ok {
		t.Fatal("container-backed server must not resolve an in-process reaction handle")
	}

	r := NewRPC("127.0.0.1:9999", "127.0.0.1:9999")
	if _, ok := r.GetSourceHandle("s1"); ok {
		t.Fatal("rpc-backed server must not resolve an in-process source handle")
	}
	if _, ok := r.GetReactionHandle("r1"); ok {
		t.Fatal("rpc-backed server must not resolve an in-process reaction handle")
	}
}
