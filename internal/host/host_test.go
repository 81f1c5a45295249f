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

package host

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/clock"
	"github.com/drasi-project/e2e-test-framework/internal/host/drasiserver"
	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/reaction"
	"github.com/drasi-project/e2e-test-framework/internal/reaction/handler"
	"github.com/drasi-project/e2e-test-framework/internal/source"
)

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

type sliceBackend struct {
	events []model.SourceChangeEvent
	ts     []uint64
	idx    int
}

func (b *sliceBackend) Next(ctx context.Context) (model.SourceChangeEvent, uint64, bool, error) {
	if b.idx >= len(b.events) {
		return model.SourceChangeEvent{}, 0, false, nil
	}
	ev := b.events[b.idx]
	ts := b.ts[b.idx]
	b.idx++
	return ev, ts, true, nil
}

func (b *sliceBackend) Reset() error { b.idx = 0; return nil }
func (b *sliceBackend) Close() error { return nil }

// recordingLogger hands every record the observer logs to ch, so a test can
// wait for one without competing with the observer for the handler's
// message channel.
type recordingLogger struct{ ch chan model.ReactionHandlerRecord }

func (l *recordingLogger) Log(rec model.ReactionHandlerRecord) error { l.ch <- rec; return nil }
func (l *recordingLogger) EndTestRun() (reaction.Summary, error)    { return reaction.Summary{}, nil }

func testRunID(t *testing.T) model.TestRunId {
	return model.TestRunId{Repo: "repo", Test: "test", Run: "run"}
}

func TestHostTestRunLifecycle(t *testing.T) {
	h := New(testLogger())
	id := testRunID(t)

	if err := h.AddTestRun(id); err != nil {
		t.Fatalf("AddTestRun: %v", err)
	}
	if err := h.AddTestRun(id); err == nil {
		t.Fatal("expected error re-adding the same test run")
	}
	state, err := h.GetTestRunState(id)
	if err != nil || state != RunInitialized {
		t.Fatalf("expected Initialized, got %v, %v", state, err)
	}

	if err := h.StartTestRun(id); err != nil {
		t.Fatalf("StartTestRun: %v", err)
	}
	state, _ = h.GetTestRunState(id)
	if state != RunRunning {
		t.Fatalf("expected Running, got %v", state)
	}

	if err := h.DeleteTestRun(id); err != nil {
		t.Fatalf("DeleteTestRun: %v", err)
	}
	if _, err := h.GetTestRunState(id); err == nil {
		t.Fatal("expected an error looking up a deleted test run")
	}
}

func TestHostSourceCommandsFanOutToGenerator(t *testing.T) {
	h := New(testLogger())
	runID := testRunID(t)
	if err := h.AddTestRun(runID); err != nil {
		t.Fatalf("AddTestRun: %v", err)
	}

	events, ts := makeTestEvents(2)
	ts[1] = ts[0] + 1_000_000_000_000
	backend := &sliceBackend{events: events, ts: ts}
	gen := source.New(
		source.Config{Id: model.TestRunSourceId{TestRunId: runID, Source: "s1"}, TimeMode: clock.TimeRecorded, SpacingMode: source.SpacingRecorded},
		backend,
		clock.NewFake(time.Unix(0, 0)),
		nil,
		testLogger(),
	)

	sourceID := model.TestRunSourceId{TestRunId: runID, Source: "s1"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.AddSource(ctx, sourceID, gen, false); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	state, err := h.GetSourceState(sourceID)
	if err != nil || state != source.Paused {
		t.Fatalf("expected Paused, got %v, %v", state, err)
	}
	if err := h.SourceStart(sourceID); err != nil {
		t.Fatalf("SourceStart: %v", err)
	}
	if err := h.SourceStop(sourceID); err != nil {
		t.Fatalf("SourceStop: %v", err)
	}
	state, _ = h.GetSourceState(sourceID)
	if state != source.Stopped {
		t.Fatalf("expected Stopped, got %v", state)
	}
}

func TestHostResolvesChannelHandlesThroughEmbeddedServer(t *testing.T) {
	h := New(testLogger())
	runID := testRunID(t)
	if err := h.AddTestRun(runID); err != nil {
		t.Fatalf("AddTestRun: %v", err)
	}

	embedded := drasiserver.NewEmbedded()
	serverID := model.TestRunDrasiServerId{TestRunId: runID, Server: "embedded-1"}
	if err := h.AddDrasiServer(serverID, embedded, true); err != nil {
		t.Fatalf("AddDrasiServer: %v", err)
	}

	chHandler := handler.NewChannelHandler(h, handler.ChannelConfig{
		ServerId:   "embedded-1",
		ReactionId: "r1",
		PollEvery:  5 * time.Millisecond,
	}, testLogger())

	reactionID := model.TestRunReactionId{TestRunId: runID, Reaction: "r1"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	records := &recordingLogger{ch: make(chan model.ReactionHandlerRecord, 1)}
	if err := h.AddReaction(ctx, reactionID, chHandler, []reaction.Logger{records}, nil, clock.NewFake(time.Unix(0, 0)), testLogger(), false); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	if err := h.ReactionStart(reactionID); err != nil {
		t.Fatalf("ReactionStart: %v", err)
	}

	// The channel handler polls for the registry resolution in the
	// background; give it a moment before publishing.
	time.Sleep(20 * time.Millisecond)
	embedded.Publish(handler.QueryResult{QueryId: "q1", ReactionType: "added"})

	select {
	case rec := <-records.ch:
		if rec.Invocation == nil || rec.Invocation.QueryId != "q1" {
			t.Fatalf("expected an invocation for q1, got %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the published query result to arrive")
	}
}

func makeTestEvents(n int) ([]model.SourceChangeEvent, []uint64) {
	events := make([]model.SourceChangeEvent, n)
	ts := make([]uint64, n)
	for i := 0; i < n; i++ {
		events[i] = model.SourceChangeEvent{
			Op: model.OpInsert,
			Payload: model.ChangePayload{
				After: &model.Payload{Id: "n"},
			},
		}
		ts[i] = uint64(i) * 1000
	}
	return events, ts
}
