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

// ChangeEvent is the wire form of a model.SourceChangeEvent.
type ChangeEvent struct {
	Op               string                 `json:"op"`
	ReactivatorStart uint64                 `json:"reactivator_start_ns"`
	ReactivatorEnd   uint64                 `json:"reactivator_end_ns"`
	Source           ChangeSource           `json:"source"`
	Before           map[string]interface{} `json:"before,omitempty"`
	After            map[string]interface{} `json:"after,omitempty"`
}


// ChangeSource is the wire form of a model.SourceDescriptor.
type ChangeSource struct {
	Db    string `json:"db"`
	Table string `json:"table"`
	TsNs  uint64 `json:"ts_ns"`
	Lsn   uint64 `json:"lsn"`
}

// ChangeEventBatch is the request body of DispatchService/ProcessResults
// and of each message sent over DispatchService/StreamResults.
type ChangeEventBatch struct {
	SourceId string        `json:"source_id"`
	Events   []ChangeEvent `json:"events"`
}

// DispatchAck is the response to ProcessResults and the final message of
// StreamResults.
type DispatchAck struct {
	Accepted int    `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// ResultItem is one reaction-handler invocation as carried over the wire
// by ReactionService.
type ResultItem struct {
	QueryId      string                 `json:"query_id"`
	Sequence     uint64                 `json:"sequence"`
	ReactionType string                 `json:"reaction_type"`
	Body         map[string]interface{} `json:"body"`
}

// ResultBatch is the request body of ReactionService/ProcessResults and of
// each message sent over ReactionService/StreamResults or received from
// ReactionService/Subscribe.
type ResultBatch struct {
	Items []ResultItem `json:"items"`
}

// ReactionAck is the response to ProcessResults and the final message of
// StreamResults; it reports the handler's running stream-level counters.
type ReactionAck struct {
	BatchesProcessed uint64 `json:"batches_processed"`
	ItemsProcessed   uint64 `json:"items_processed"`
	Error            string `json:"error,omitempty"`
}

// HealthCheckRequest is the (empty) request of ReactionService/HealthCheck.
type HealthCheckRequest struct{}

// HealthCheckResponse reports handler liveness.
type HealthCheckResponse struct {
	Status string `json:"status"`
}
