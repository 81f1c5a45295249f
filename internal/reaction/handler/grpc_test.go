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

package handler

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/drasi-project/e2e-test-framework/internal/proto"
)

func startGRPCHandler(t *testing.T) (*GRPCHandler, *grpc.ClientConn) {
	t.Helper()
	h := NewGRPCHandler(GRPCConfig{Addr: "127.0.0.1:0"}, testLogger())
	if err := h.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { h.Stop() })

	conn, err := grpc.DialContext(context.Background(), h.listener.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return h, conn
}

func TestGRPCHandlerProcessResultsEmitsOneInvocationPerItem(t *testing.T) {
	h, conn := startGRPCHandler(t)

	req := proto.ResultBatch{Items: []proto.ResultItem{
		{QueryId: "q1", Sequence: 1, ReactionType: "added", Body: map[string]interface{}{"n": 1}},
		{QueryId: "q1", Sequence: 2, ReactionType: "added", Body: map[string]interface{}{"n": 2}},
	}}
	var ack proto.ReactionAck
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := conn.Invoke(ctx, proto.ReactionProcessUnary, &req, &ack, grpc.CallContentSubtype(proto.CodecName)); err != nil {
		t.Fatalf("Invoke ProcessResults: %v", err)
	}
	if ack.ItemsProcessed != 2 {
		t.Fatalf("expected 2 items processed, got %d", ack.ItemsProcessed)
	}
	if ack.BatchesProcessed != 1 {
		t.Fatalf("expected 1 batch processed, got %d", ack.BatchesProcessed)
	}

	for i := 0; i < 2; i++ {
		select {
		case msg := <-h.Messages():
			if msg.Invocation == nil || msg.Invocation.QueryId != "q1" {
				t.Fatalf("expected invocation for q1, got %+v", msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for invocation %d", i)
		}
	}
}

func TestGRPCHandlerHealthCheckReflectsStatus(t *testing.T) {
	_, conn := startGRPCHandler(t)

	var req proto.HealthCheckRequest
	var resp proto.HealthCheckResponse
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := conn.Invoke(ctx, proto.ReactionHealthCheckUnary, &req, &resp, grpc.CallContentSubtype(proto.CodecName)); err != nil {
		t.Fatalf("Invoke HealthCheck: %v", err)
	}
	if resp.Status != "SERVING" {
		t.Fatalf("expected SERVING while Running, got %q", resp.Status)
	}
}
