package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/clock"
	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// sliceBackend replays a fixed slice of events for deterministic tests.
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

// newParkedRunningGenerator starts a generator against a fake clock that
// never advances, under Recorded spacing with a second event scheduled
// far in virtual-future. After Start, the generator dispatches the first
// event and then parks inside its Δ-sleep waiting on the fake clock — a
// deterministic way to observe the generator reliably "stuck" in Running
// for state-machine tests, without racing a fast-exhausting backend.
func newParkedRunningGenerator(t *testing.T) *Generator {
	t.Helper()
	events, ts := makeEvents(2)
	ts[1] = ts[0] + 1_000_000_000_000 // far in virtual-future
	backend := &sliceBackend{events: events, ts: ts}
	g := New(
		Config{TimeMode: clock.TimeRecorded, SpacingMode: SpacingRecorded},
		backend,
		clock.NewFake(time.Unix(0, 0)),
		nil,
		newTestLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go g.Run(ctx)

	if err := g.Start(); err != nil {
		t.Fatalf("unexpected error starting: %v", err)
	}
	return g
}

type collectingDispatcher struct {
	mu     sync.Mutex
	events []model.SourceChangeEvent
}

func (d *collectingDispatcher) Dispatch(ctx context.Context, events []model.SourceChangeEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
	return nil
}

func (d *collectingDispatcher) Close(ctx context.Context) error { return nil }

func makeEvents(n int) ([]model.SourceChangeEvent, []uint64) {
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

func newTestLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestGeneratorFinishesAfterBackendExhausted(t *testing.T) {
	events, ts := makeEvents(3)
	backend := &sliceBackend{events: events, ts: ts}
	disp := &collectingDispatcher{}
	g := New(Config{TimeMode: clock.TimeLive}, backend, clock.NewFake(time.Unix(0, 0)), []Dispatcher{disp}, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	if err := g.Start(); err != nil {
		t.Fatalf("unexpected error starting: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if g.State() == Finished {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if g.State() != Finished {
		t.Fatalf("expected Finished, got %s", g.State())
	}

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.events) != 3 {
		t.Fatalf("expected 3 dispatched events, got %d", len(disp.events))
	}
	for i, ev := range disp.events {
		if ev.Payload.Source.Lsn != uint64(i) {
			t.Errorf("event %d: expected lsn %d, got %d", i, i, ev.Payload.Source.Lsn)
		}
	}
}

func TestGeneratorStartFromRunningIsIdempotent(t *testing.T) {
	g := newParkedRunningGenerator(t)
	if err := g.Start(); err != nil {
		t.Fatalf("starting an already-running generator should be idempotent, got %v", err)
	}
}

func TestGeneratorStepInvalidFromRunning(t *testing.T) {
	g := newParkedRunningGenerator(t)
	if err := g.Step(1); err == nil {
		t.Fatal("expected error stepping a running generator")
	} else if !model.IsClass(err, model.ClassState) {
		t.Fatalf("expected a State-class error, got %v", err)
	}
}

func TestGeneratorStopFromStoppedIsIdempotent(t *testing.T) {
	events, ts := makeEvents(0)
	backend := &sliceBackend{events: events, ts: ts}
	g := New(Config{TimeMode: clock.TimeLive}, backend, clock.NewFake(time.Unix(0, 0)), nil, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	if err := g.Stop(); err != nil {
		t.Fatalf("unexpected error stopping from Paused: %v", err)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("stopping an already-stopped generator should be idempotent, got %v", err)
	}
}

func TestGeneratorStepAdvancesExactlyN(t *testing.T) {
	events, ts := makeEvents(10)
	backend := &sliceBackend{events: events, ts: ts}
	disp := &collectingDispatcher{}
	g := New(Config{TimeMode: clock.TimeLive}, backend, clock.NewFake(time.Unix(0, 0)), []Dispatcher{disp}, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	if err := g.Step(3); err != nil {
		t.Fatalf("unexpected error stepping: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if g.State() == Paused {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	disp.mu.Lock()
	n := len(disp.events)
	disp.mu.Unlock()
	if n != 3 {
		t.Fatalf("expected exactly 3 events after Step(3), got %d", n)
	}
	if g.State() != Paused {
		t.Fatalf("expected Paused after step exhausted, got %s", g.State())
	}
}

func TestGeneratorResetReinitialisesFromStopped(t *testing.T) {
	events, ts := makeEvents(2)
	backend := &sliceBackend{events: events, ts: ts}
	g := New(Config{TimeMode: clock.TimeLive}, backend, clock.NewFake(time.Unix(0, 0)), nil, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	if err := g.Stop(); err != nil {
		t.Fatalf("unexpected error stopping: %v", err)
	}
	if err := g.Reset(); err != nil {
		t.Fatalf("unexpected error resetting: %v", err)
	}
	if g.State() != Paused {
		t.Fatalf("expected Paused after reset, got %s", g.State())
	}
}

func TestGeneratorResetInvalidFromRunning(t *testing.T) {
	g := newParkedRunningGenerator(t)
	if err := g.Reset(); err == nil {
		t.Fatal("expected error resetting a running generator")
	}
}
