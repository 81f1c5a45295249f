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

package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/reaction"
)

func testRecord(seq int64) model.ReactionHandlerRecord {
	return model.ReactionHandlerRecord{
		Id:       "rec",
		Sequence: seq,
		Invocation: &model.ReactionInvocation{
			QueryId:      "q1",
			ReactionType: "added",
			RequestBody:  json.RawMessage(`{"n":1}`),
		},
	}
}

func TestConsoleLogsOneBlockPerRecord(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	if err := c.Log(testRecord(1)); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := c.Log(testRecord(2)); err != nil {
		t.Fatalf("Log: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "seq=") != 2 {
		t.Fatalf("expected 2 logged lines, got: %s", out)
	}
	summary, err := c.EndTestRun()
	if err != nil || summary != (reaction.Summary{}) {
		t.Fatalf("expected a zero-value idempotent summary, got %+v, %v", summary, err)
	}
}

func TestJsonlFileRotatesOnMaxLines(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "records")
	l, err := NewJsonlFile(prefix, 2)
	if err != nil {
		t.Fatalf("NewJsonlFile: %v", err)
	}
	for i := int64(0); i < 5; i++ {
		if err := l.Log(testRecord(i)); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	if _, err := l.EndTestRun(); err != nil {
		t.Fatalf("EndTestRun: %v", err)
	}
	// idempotent: a second call must not error on an already-closed file.
	if _, err := l.EndTestRun(); err != nil {
		t.Fatalf("second EndTestRun: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 3 {
		t.Fatalf("expected at least 3 rotated files for 5 records at maxLines=2, got %d", len(entries))
	}
}

func TestMetricsEndTestRunIsIdempotentAndComputesSummary(t *testing.T) {
	registry := prometheus.NewRegistry()
	dir := t.TempDir()
	summaryPath := filepath.Join(dir, "summary.json")
	m := NewMetrics("run1", summaryPath, registry)

	rec1 := testRecord(1)
	rec1.CreatedTimeNs = 1_000_000_000
	rec2 := testRecord(2)
	rec2.CreatedTimeNs = 2_000_000_000

	if err := m.Log(rec1); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := m.Log(rec2); err != nil {
		t.Fatalf("Log: %v", err)
	}

	summary, err := m.EndTestRun()
	if err != nil {
		t.Fatalf("EndTestRun: %v", err)
	}
	if summary.Count != 2 {
		t.Fatalf("expected count 2, got %d", summary.Count)
	}
	if summary.DurationNs != 1_000_000_000 {
		t.Fatalf("expected duration 1s, got %d", summary.DurationNs)
	}
	if summary.RecordsPerSecond != 2.0 {
		t.Fatalf("expected 2 records/sec, got %f", summary.RecordsPerSecond)
	}

	again, err := m.EndTestRun()
	if err != nil {
		t.Fatalf("second EndTestRun: %v", err)
	}
	if again != summary {
		t.Fatalf("expected the same summary on a repeated EndTestRun call, got %+v vs %+v", again, summary)
	}

	data, err := os.ReadFile(summaryPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded reaction.Summary
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal summary file: %v", err)
	}
	if decoded.Count != 2 {
		t.Fatalf("expected summary file count 2, got %d", decoded.Count)
	}
}
