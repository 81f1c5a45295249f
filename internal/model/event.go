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

package model

// Op is the operation code carried by a SourceChangeEvent.
type Op string

const (
	OpInsert Op = "i"
	OpUpdate Op = "u"
	OpDelete Op = "d"
)

// SourceDescriptor names the origin of a change: the database/table it came
// from, the virtual timestamp it carries and its per-source sequence.
type SourceDescriptor struct {
	Db    string `json:"db"`
	Table string `json:"table"`
	TsNs  uint64 `json:"ts_ns"`
	Lsn   uint64 `json:"lsn"`
}

// Scalar is any JSON scalar value (string, number, bool) or nil.
type Scalar interface{}

// Payload is the before/after node or relation snapshot carried by a
// change event. StartId/EndId/StartLabel/EndLabel are only populated for
// relation payloads.
type Payload struct {
	Id         string            `json:"id"`
	Labels     []string          `json:"labels"`
	Properties map[string]Scalar `json:"properties"`

	StartId    string `json:"start_id,omitempty"`
	EndId      string `json:"end_id,omitempty"`
	StartLabel string `json:"start_label,omitempty"`
	EndLabel   string `json:"end_label,omitempty"`
}

// IsRelation reports whether the payload describes a relation rather than
// a node (a relation always carries a StartId).
func (p *Payload) IsRelation() bool {
	return p != nil && p.StartId != ""
}

// ChangePayload is the before/after pair of a SourceChangeEvent.
type ChangePayload struct {
	Source SourceDescriptor `json:"source"`
	Before *Payload         `json:"before"`
	After  *Payload         `json:"after"`
}

// SourceChangeEvent is the canonical currency of the system: an immutable
// record of one database change, carrying the window during which the
// generator prepared and released it.
type SourceChangeEvent struct {
	Op                Op            `json:"op"`
	ReactivatorStart  uint64        `json:"reactivatorStart_ns"`
	ReactivatorEnd    uint64        `json:"reactivatorEnd_ns"`
	Payload           ChangePayload `json:"payload"`
}

// Validate checks the invariants of spec §3: lsn belongs to the caller to
// enforce monotonicity (a single event can't see its predecessor), but the
// op/before/after and reactivator-window invariants are self-contained.
func (e *SourceChangeEvent) Validate() error {
	switch e.Op {
	case OpInsert:
		if e.Payload.Before != nil {
			return Errorf(ClassInternal, "", "insert event must have a nil before payload")
		}
		if e.Payload.After == nil {
			return Errorf(ClassInternal, "", "insert event must have a non-nil after payload")
		}
	case OpDelete:
		if e.Payload.After != nil {
			return Errorf(ClassInternal, "", "delete event must have a nil after payload")
		}
		if e.Payload.Before == nil {
			return Errorf(ClassInternal, "", "delete event must have a non-nil before payload")
		}
	case OpUpdate:
		if e.Payload.Before == nil || e.Payload.After == nil {
			return Errorf(ClassInternal, "", "update event must have both before and after payloads")
		}
	default:
		return Errorf(ClassInternal, "", "unknown operation code %q", e.Op)
	}
	if e.ReactivatorEnd < e.ReactivatorStart {
		return Errorf(ClassInternal, "", "reactivator window end (%d) precedes start (%d)", e.ReactivatorEnd, e.ReactivatorStart)
	}
	return nil
}
