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
	"sync"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// SUTInput is the embedded system-under-test's ingestion surface, as
// translated from a Source Change Event (spec §4.2: "the translation ...
// uses operation+payload to select between node-insert/update/delete and
// relation-insert"). A concrete Drasi Server implements this; the channel
// dispatcher only depends on the narrow surface below, never on
// internal/host, to keep the dependency graph one-directional.
type SUTInput interface {
	InsertNode(labels []string, id string, properties map[string]model.Scalar) error
	UpdateNode(labels []string, id string, properties map[string]model.Scalar) error
	DeleteNode(labels []string, id string) error
	InsertRelation(labels []string, id, startId, endId, startLabel, endLabel string, properties map[string]model.Scalar) error
}

// HandleRegistry resolves a (serverId, sourceId) pair to a SUTInput. The
// host registers handles as embedded SUTs come up; Resolve returns
// ok=false until then.
type HandleRegistry interface {
	ResolveSourceHandle(serverId, sourceId string) (SUTInput, bool)
}

// ChannelDispatcher looks up an embedded SUT's ingestion handle in the
// host registry. The lookup is weak (spec §4.2): until the handle
// resolves, dispatched events are buffered in a bounded queue; the first
// successful resolution flushes the queue in order before anything new.
type ChannelDispatcher struct {
	registry HandleRegistry
	serverId string
	sourceId string

	mu      sync.Mutex
	pending []model.SourceChangeEvent
	maxPend int
}

func NewChannelDispatcher(registry HandleRegistry, serverId, sourceId string, maxPending int) *ChannelDispatcher {
	if maxPending <= 0 {
		maxPending = 1000
	}
	return &ChannelDispatcher{registry: registry, serverId: serverId, sourceId: sourceId, maxPend: maxPending}
}

func (d *ChannelDispatcher) Dispatch(ctx context.Context, events []model.SourceChangeEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	handle, ok := d.registry.ResolveSourceHandle(d.serverId, d.sourceId)
	if !ok {
		d.pending = append(d.pending, events...)
		if over := len(d.pending) - d.maxPend; over > 0 {
			d.pending = d.pending[over:]
		}
		return nil
	}

	if len(d.pending) > 0 {
		queued := d.pending
		d.pending = nil
		if err := applyAll(handle, queued); err != nil {
			return err
		}
	}
	return applyAll(handle, events)
}

func applyAll(handle SUTInput, events []model.SourceChangeEvent) error {
	for _, ev := range events {
		if err := apply(handle, ev); err != nil {
			return err
		}
	}
	return nil
}

// apply translates one Source Change Event into the matching SUTInput
// call, per spec §4.2's op+payload selection rule.
func apply(handle SUTInput, ev model.SourceChangeEvent) error {
	p := ev.Payload
	switch ev.Op {
	case model.OpInsert:
		after := p.After
		if after.IsRelation() {
			return handle.InsertRelation(after.Labels, after.Id, after.StartId, after.EndId, after.StartLabel, after.EndLabel, after.Properties)
		}
		return handle.InsertNode(after.Labels, after.Id, after.Properties)
	case model.OpUpdate:
		after := p.After
		if after.IsRelation() {
			// relations have no update path in spec §4.2; treat as a
			// delete+insert pair to preserve the edge's endpoints.
			if err := handle.DeleteNode(after.Labels, after.Id); err != nil {
				return err
			}
			return handle.InsertRelation(after.Labels, after.Id, after.StartId, after.EndId, after.StartLabel, after.EndLabel, after.Properties)
		}
		return handle.UpdateNode(after.Labels, after.Id, after.Properties)
	case model.OpDelete:
		before := p.Before
		return handle.DeleteNode(before.Labels, before.Id)
	default:
		return model.Errorf(model.ClassInternal, "", "channel dispatcher: unknown op %q", ev.Op)
	}
}

func (d *ChannelDispatcher) Close(ctx context.Context) error { return nil }
