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

import "encoding/json"

// RecordKind tags the variant of a ScriptedRecord line.
type RecordKind string

const (
	RecordHeader       RecordKind = "Header"
	RecordComment      RecordKind = "Comment"
	RecordLabel        RecordKind = "Label"
	RecordNode         RecordKind = "Node"
	RecordRelation     RecordKind = "Relation"
	RecordSourceChange RecordKind = "SourceChange"
	RecordPauseCommand RecordKind = "PauseCommand"
	RecordFinish       RecordKind = "Finish"
)

// ScriptedRecord is one JSON-line of a script file: a tagged union over
// the eight record kinds. Only the fields relevant to Kind are populated;
// the rest stay at their zero value.
type ScriptedRecord struct {
	Kind RecordKind `json:"kind"`

	// Header fields.
	StartTimeNs uint64 `json:"start_time,omitempty"`
	Description string `json:"description,omitempty"`

	// Comment fields.
	Text string `json:"text,omitempty"`

	// Label fields.
	Label string `json:"label,omitempty"`

	// Node / Relation fields (also used for bootstrap enumeration).
	Payload *Payload `json:"payload,omitempty"`

	// SourceChange fields.
	OffsetNs uint64             `json:"offset_ns,omitempty"`
	Change   *SourceChangeEvent `json:"change,omitempty"`

	// PauseCommand fields.
	PauseOffsetNs uint64 `json:"pause_offset_ns,omitempty"`
	PauseLabel    string `json:"pause_label,omitempty"`
}

// DecodeScriptedRecord decodes one JSON-lines record.
func DecodeScriptedRecord(line []byte) (ScriptedRecord, error) {
	var rec ScriptedRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return ScriptedRecord{}, Errorf(ClassConfig, "", "malformed scripted record: %v", err)
	}
	if rec.Kind == "" {
		return ScriptedRecord{}, Errorf(ClassConfig, "", "scripted record missing required %q field", "kind")
	}
	return rec, nil
}
