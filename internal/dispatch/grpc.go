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

package dispatch

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/proto"
)

// GRPCConfig parameterises the gRPC Dispatcher (spec §4.2).
type GRPCConfig struct {
	Target   string
	SourceId string
	Timeout  time.Duration
	Stream   bool // client-streaming StreamResults instead of unary ProcessResults
	TLS      credentials.TransportCredentials
}

func (c GRPCConfig) withDefaults() GRPCConfig {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// GRPCDispatcher pushes events to a SUT-hosted DispatchService over
// gRPC, either unary (ProcessResults) or client-streaming (StreamResults).
// The wire codec is internal/proto's "json" codec (see proto/codec.go):
// a real gRPC transport (HTTP/2 framing, flow control, deadlines) without
// a protoc step.
type GRPCDispatcher struct {
	cfg  GRPCConfig
	conn *grpc.ClientConn
}

func NewGRPCDispatcher(cfg GRPCConfig) (*GRPCDispatcher, error) {
	cfg = cfg.withDefaults()

	creds := cfg.TLS
	if creds == nil {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.Dial(cfg.Target, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, model.Errorf(model.ClassTransport, "", "grpc dispatcher: dial %s: %v", cfg.Target, err)
	}
	return &GRPCDispatcher{cfg: cfg, conn: conn}, nil
}

func (d *GRPCDispatcher) Dispatch(ctx context.Context, events []model.SourceChangeEvent) error {
	batch := proto.BatchToWire(d.cfg.SourceId, events)

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	if d.cfg.Stream {
		return d.dispatchStream(ctx, batch)
	}
	return d.dispatchUnary(ctx, batch)
}

func (d *GRPCDispatcher) dispatchUnary(ctx context.Context, batch proto.ChangeEventBatch) error {
	var ack proto.DispatchAck
	err := d.conn.Invoke(ctx, proto.DispatchProcessUnary, &batch, &ack, grpc.CallContentSubtype(proto.CodecName))
	if err != nil {
		return model.Errorf(model.ClassTransport, "", "grpc dispatcher: ProcessResults: %v", err)
	}
	if ack.Error != "" {
		return model.Errorf(model.ClassTransport, "", "grpc dispatcher: remote reported error: %s", ack.Error)
	}
	return nil
}

func (d *GRPCDispatcher) dispatchStream(ctx context.Context, batch proto.ChangeEventBatch) error {
	stream, err := d.conn.NewStream(ctx, &proto.DispatchStreamClientDesc, proto.DispatchStreamClient, grpc.CallContentSubtype(proto.CodecName))
	if err != nil {
		return model.Errorf(model.ClassTransport, "", "grpc dispatcher: open StreamResults: %v", err)
	}
	if err := stream.SendMsg(&batch); err != nil {
		return model.Errorf(model.ClassTransport, "", "grpc dispatcher: send: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		return model.Errorf(model.ClassTransport, "", "grpc dispatcher: close send: %v", err)
	}
	var ack proto.DispatchAck
	if err := stream.RecvMsg(&ack); err != nil {
		return model.Errorf(model.ClassTransport, "", "grpc dispatcher: recv ack: %v", err)
	}
	if ack.Error != "" {
		return model.Errorf(model.ClassTransport, "", "grpc dispatcher: remote reported error: %s", ack.Error)
	}
	return nil
}

func (d *GRPCDispatcher) Close(ctx context.Context) error {
	return d.conn.Close()
}
