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
	"encoding/json"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/proto"
	"github.com/drasi-project/e2e-test-framework/internal/reaction"
)

// GRPCConfig configures the gRPC Reaction Output Handler.
type GRPCConfig struct {
	Addr string
}

// GRPCHandler serves ReactionService (spec §4.4): unary ProcessResults,
// client-streaming StreamResults, server-streaming Subscribe, and
// HealthCheck. Registered by hand against grpc.Server the same way
// protoc-gen-go-grpc would, carrying plain JSON-tagged structs
// (internal/proto) over the hand-registered "json" codec instead of
// generated proto.Message types, since the retrieval pack ships no
// .proto/.pb.go files to generate from.
type GRPCHandler struct {
	*reaction.StateMachine
	cfg      GRPCConfig
	log      *zap.SugaredLogger
	server   *grpc.Server
	listener net.Listener

	batchesProcessed uint64
	itemsProcessed   uint64
}

func NewGRPCHandler(cfg GRPCConfig, log *zap.SugaredLogger) *GRPCHandler {
	h := &GRPCHandler{StateMachine: reaction.NewStateMachine(256), cfg: cfg, log: log}
	h.server = grpc.NewServer()
	h.server.RegisterService(&grpc.ServiceDesc{
		ServiceName: proto.ReactionServiceName,
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "ProcessResults", Handler: h.processResultsUnary},
			{MethodName: "HealthCheck", Handler: h.healthCheckUnary},
		},
		Streams: []grpc.StreamDesc{
			{StreamName: "StreamResults", Handler: h.streamResultsHandler, ClientStreams: true},
			{StreamName: "Subscribe", Handler: h.subscribeHandler, ServerStreams: true},
		},
	}, h)
	return h
}

func (h *GRPCHandler) Init() error {
	if err := h.TransitionInit(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		wrapped := model.Errorf(model.ClassTransport, "", "reaction grpc handler: bind %s: %v", h.cfg.Addr, err)
		h.Fail(wrapped)
		return wrapped
	}
	h.listener = ln
	return nil
}

func (h *GRPCHandler) Start() error {
	if err := h.TransitionStart(); err != nil {
		return err
	}
	go func() {
		if err := h.server.Serve(h.listener); err != nil && err != grpc.ErrServerStopped {
			h.Fail(model.Errorf(model.ClassTransport, "", "reaction grpc handler: serve: %v", err))
		}
	}()
	return nil
}

func (h *GRPCHandler) Pause() error { return h.TransitionPause() }

// Stop asks for a graceful shutdown and falls back to a hard stop if the
// in-flight RPCs haven't drained within reaction.CloseTimeout, which has
// the same 5s value as internal/dispatch.CloseTimeout.
func (h *GRPCHandler) Stop() error {
	if err := h.TransitionStop(); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(reaction.CloseTimeout):
		h.server.Stop()
	}
	return nil
}

func (h *GRPCHandler) emitItem(item proto.ResultItem) {
	body, _ := json.Marshal(item.Body)
	h.Emit(reaction.Message{
		Sequence: int64(item.Sequence),
		Invocation: &model.ReactionInvocation{
			QueryId:      item.QueryId,
			ReactionType: item.ReactionType,
			RequestBody:  body,
		},
	})
}

func (h *GRPCHandler) emitBatch(batch proto.ResultBatch) {
	atomic.AddUint64(&h.batchesProcessed, 1)
	atomic.AddUint64(&h.itemsProcessed, uint64(len(batch.Items)))
	for _, item := range batch.Items {
		h.emitItem(item)
	}
}

func (h *GRPCHandler) ack() *proto.ReactionAck {
	return &proto.ReactionAck{
		BatchesProcessed: atomic.LoadUint64(&h.batchesProcessed),
		ItemsProcessed:   atomic.LoadUint64(&h.itemsProcessed),
	}
}

func (h *GRPCHandler) processResultsUnary(_ interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	var batch proto.ResultBatch
	if err := dec(&batch); err != nil {
		return nil, err
	}
	h.emitBatch(batch)
	return h.ack(), nil
}

func (h *GRPCHandler) healthCheckUnary(_ interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	var req proto.HealthCheckRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	status := "NOT_SERVING"
	if h.Status() == reaction.StatusRunning {
		status = "SERVING"
	}
	return &proto.HealthCheckResponse{Status: status}, nil
}

// streamResultsHandler implements client-streaming StreamResults: the SUT
// sends a ResultBatch per message and the handler replies once, with the
// running counters, once the client half-closes.
func (h *GRPCHandler) streamResultsHandler(_ interface{}, stream grpc.ServerStream) error {
	for {
		var batch proto.ResultBatch
		err := stream.RecvMsg(&batch)
		if err == io.EOF {
			return stream.SendMsg(h.ack())
		}
		if err != nil {
			return err
		}
		h.emitBatch(batch)
	}
}

// subscribeHandler implements server-streaming Subscribe: the SUT sends
// one ResultBatch and the handler streams back one ReactionAck per item as
// it is emitted, so a subscriber sees per-item progress rather than a
// single end-of-batch acknowledgement.
func (h *GRPCHandler) subscribeHandler(_ interface{}, stream grpc.ServerStream) error {
	var batch proto.ResultBatch
	if err := stream.RecvMsg(&batch); err != nil {
		return err
	}
	atomic.AddUint64(&h.batchesProcessed, 1)
	for _, item := range batch.Items {
		atomic.AddUint64(&h.itemsProcessed, 1)
		h.emitItem(item)
		if err := stream.SendMsg(h.ack()); err != nil {
			return err
		}
	}
	return nil
}
