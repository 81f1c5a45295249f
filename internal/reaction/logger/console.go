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

// Package logger holds the Output Logger sinks a Reaction Observer fans
// Reaction Handler Records out to (spec §4.7): console, rotating JSONL
// file, and a Prometheus-backed performance metrics logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/reaction"
)

// Console pretty-prints one record per line to a writer (stdout by
// default), the same "log, never fail the caller" shape as
// internal/dispatch's ConsoleDispatcher.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	count int64
}

func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) Log(rec model.ReactionHandlerRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	fmt.Fprintf(c.out, "[%s] seq=%d created_ns=%d processed_ns=%d", rec.Id, rec.Sequence, rec.CreatedTimeNs, rec.ProcessedTimeNs)
	switch {
	case rec.Invocation != nil:
		fmt.Fprintf(c.out, " query=%s type=%s body=%s\n", rec.Invocation.QueryId, rec.Invocation.ReactionType, rec.Invocation.RequestBody)
	case rec.Output != nil:
		fmt.Fprintf(c.out, " output=%s\n", rec.Output.Value)
	default:
		fmt.Fprintln(c.out)
	}
	return nil
}

// EndTestRun is idempotent and reports no summary of its own; the
// Performance Metrics logger owns the run summary (spec §4.7).
func (c *Console) EndTestRun() (reaction.Summary, error) {
	return reaction.Summary{}, nil
}
