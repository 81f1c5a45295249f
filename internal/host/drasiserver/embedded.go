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
	"sync"

	"github.com/drasi-project/e2e-test-framework/internal/dispatch"
	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/reaction/handler"
)

// node is the Embedded server's in-memory record of one graph node.
type node struct {
	labels     []string
	properties map[string]model.Scalar
}

// relation is the Embedded server's in-memory record of one graph edge.
type relation struct {
	labels     []string
	startId    string
	endId      string
	startLabel string
	endLabel   string
	properties map[string]model.Scalar
}

// Embedded is an in-process Drasi Server: a minimal in-memory graph store
// that satisfies dispatch.SUTInput directly, plus a reaction-result
// publish/subscribe surface satisfying handler.ResultHandle. The core does
// not evaluate query semantics (spec §1 Non-goals), so nothing here
// derives reaction output from the graph automatically; Publish is the
// seam a query-evaluation collaborator (out of scope) would call.
type Embedded struct {
	mu        sync.RWMutex
	state     State
	nodes     map[string]*node
	relations map[string]*relation

	subMu sync.Mutex
	subs  []func(handler.QueryResult)
}

func NewEmbedded() *Embedded {
	return &Embedded{
		state:     StateNotStarted,
		nodes:     make(map[string]*node),
		relations: make(map[string]*relation),
	}
}

func (e *Embedded) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateRunning
	return nil
}

func (e *Embedded) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateStopped
	return nil
}

func (e *Embedded) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Endpoint is empty for an in-process server: there is no network address
// to report.
func (e *Embedded) Endpoint() string { return "" }

// GetSourceHandle returns the embedded server itself as the SUTInput for
// any sourceId: one Embedded instance backs every source routed to it,
// since the core does not model per-source partitions of the in-memory
// graph (spec §1 Non-goals).
func (e *Embedded) GetSourceHandle(sourceId string) (dispatch.SUTInput, bool) {
	return e, true
}

// GetReactionHandle returns the embedded server itself as the
// ResultHandle for any reactionId.
func (e *Embedded) GetReactionHandle(reactionId string) (handler.ResultHandle, bool) {
	return e, true
}

func (e *Embedded) InsertNode(labels []string, id string, properties map[string]model.Scalar) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodes[id] = &node{labels: labels, properties: properties}
	return nil
}

func (e *Embedded) UpdateNode(labels []string, id string, properties map[string]model.Scalar) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	if !ok {
		n = &node{}
		e.nodes[id] = n
	}
	n.labels = labels
	n.properties = properties
	return nil
}

func (e *Embedded) DeleteNode(labels []string, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.nodes, id)
	return nil
}

func (e *Embedded) InsertRelation(labels []string, id, startId, endId, startLabel, endLabel string, properties map[string]model.Scalar) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.relations[id] = &relation{
		labels:     labels,
		startId:    startId,
		endId:      endId,
		startLabel: startLabel,
		endLabel:   endLabel,
		properties: properties,
	}
	return nil
}

// Subscribe registers fn to receive every QueryResult published by this
// server, satisfying handler.ResultHandle.
func (e *Embedded) Subscribe(fn func(handler.QueryResult)) func() {
	e.subMu.Lock()
	e.subs = append(e.subs, fn)
	idx := len(e.subs) - 1
	e.subMu.Unlock()
	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		e.subs[idx] = nil
	}
}

// Publish forwards a query result to every subscribed reaction handler.
func (e *Embedded) Publish(qr handler.QueryResult) {
	e.subMu.Lock()
	subs := make([]func(handler.QueryResult), len(e.subs))
	copy(subs, e.subs)
	e.subMu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(qr)
		}
	}
}

func (e *Embedded) NodeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.nodes)
}
