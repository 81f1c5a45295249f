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

package proto

import (
	"google.golang.org/grpc"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// Full gRPC method names for the Dispatcher-side service (spec §4.2): the
// SUT under test hosts this service, the gRPC Dispatcher is its client.
const (
	DispatchServiceName  = "drasi.dispatch.v1.DispatchService"
	DispatchProcessUnary = "/" + DispatchServiceName + "/ProcessResults"
	DispatchStreamClient = "/" + DispatchServiceName + "/StreamResults"
)

// Full gRPC method names for the Reaction Handler-side service (spec
// §4.4): the test run host hosts this service, the SUT is its client.
const (
	ReactionServiceName      = "drasi.reaction.v1.ReactionService"
	ReactionProcessUnary     = "/" + ReactionServiceName + "/ProcessResults"
	ReactionStreamClient     = "/" + ReactionServiceName + "/StreamResults"
	ReactionStreamServer     = "/" + ReactionServiceName + "/Subscribe"
	ReactionHealthCheckUnary = "/" + ReactionServiceName + "/HealthCheck"
)

// DispatchStreamClientDesc describes the client-streaming StreamResults
// RPC, for use with grpc.ClientConn.NewStream / grpc.Server.RegisterService.
var DispatchStreamClientDesc = grpc.StreamDesc{
	StreamName:    "StreamResults",
	ClientStreams: true,
}

// ReactionStreamClientDesc mirrors DispatchStreamClientDesc for the
// reaction handler's client-streaming RPC.
var ReactionStreamClientDesc = grpc.StreamDesc{
	StreamName:    "StreamResults",
	ClientStreams: true,
}

// ReactionStreamServerDesc describes the server-streaming Subscribe RPC.
var ReactionStreamServerDesc = grpc.StreamDesc{
	StreamName:    "Subscribe",
	ServerStreams: true,
}

// EventToWire converts a model.SourceChangeEvent into its wire form.
func EventToWire(ev model.SourceChangeEvent) ChangeEvent {
	w := ChangeEvent{
		Op:               string(ev.Op),
		ReactivatorStart: ev.ReactivatorStart,
		ReactivatorEnd:   ev.ReactivatorEnd,
		Source: ChangeSource{
			Db:    ev.Payload.Source.Db,
			Table: ev.Payload.Source.Table,
			TsNs:  ev.Payload.Source.TsNs,
			Lsn:   ev.Payload.Source.Lsn,
		},
	}
	if ev.Payload.Before != nil {
		w.Before = payloadToWire(ev.Payload.Before)
	}
	if ev.Payload.After != nil {
		w.After = payloadToWire(ev.Payload.After)
	}
	return w
}

func payloadToWire(p *model.Payload) map[string]interface{} {
	m := map[string]interface{}{
		"id":     p.Id,
		"labels": p.Labels,
	}
	if p.StartId != "" {
		m["start_id"] = p.StartId
		m["end_id"] = p.EndId
		m["start_label"] = p.StartLabel
		m["end_label"] = p.EndLabel
	}
	props := make(map[string]interface{}, len(p.Properties))
	for k, v := range p.Properties {
		props[k] = v
	}
	m["properties"] = props
	return m
}

// BatchToWire converts a slice of events into one ChangeEventBatch.
func BatchToWire(sourceID string, events []model.SourceChangeEvent) ChangeEventBatch {
	wire := make([]ChangeEvent, len(events))
	for i, ev := range events {
		wire[i] = EventToWire(ev)
	}
	return ChangeEventBatch{SourceId: sourceID, Events: wire}
}
