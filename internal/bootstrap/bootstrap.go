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

// Package bootstrap implements the Bootstrap Data Provider contract (spec
// §6): given a set of requested node/relation labels, yield the Node and
// Relation records a source holds for SUT warm-up.
package bootstrap

import "github.com/drasi-project/e2e-test-framework/internal/model"

// Data is the result of one bootstrap request: every Node/Relation record
// whose labels intersect the caller's requested sets. Iteration order is
// unspecified but stable within a process (spec §6).
type Data struct {
	Nodes     []model.ScriptedRecord
	Relations []model.ScriptedRecord
}

// Provider enumerates the initial graph state a source holds.
type Provider interface {
	Bootstrap(nodeLabels, relLabels map[string]struct{}) (Data, error)
}

// InMemory serves bootstrap records from a fixed in-memory set, populated
// once at source construction from the scripted/model backend's own
// initial state.
type InMemory struct {
	records []model.ScriptedRecord
}

func NewInMemory(records []model.ScriptedRecord) *InMemory {
	return &InMemory{records: records}
}

func (p *InMemory) Bootstrap(nodeLabels, relLabels map[string]struct{}) (Data, error) {
	var data Data
	for _, rec := range p.records {
		if rec.Payload == nil {
			continue
		}
		switch rec.Kind {
		case model.RecordNode:
			if intersects(rec.Payload.Labels, nodeLabels) {
				data.Nodes = append(data.Nodes, rec)
			}
		case model.RecordRelation:
			if intersects(rec.Payload.Labels, relLabels) {
				data.Relations = append(data.Relations, rec)
			}
		}
	}
	return data, nil
}

func intersects(labels []string, requested map[string]struct{}) bool {
	if len(requested) == 0 {
		return true
	}
	for _, l := range labels {
		if _, ok := requested[l]; ok {
			return true
		}
	}
	return false
}
