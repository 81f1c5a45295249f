package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

type fakeSUT struct {
	mu      sync.Mutex
	inserts []string
	updates []string
	deletes []string
}

func (f *fakeSUT) InsertNode(labels []string, id string, properties map[string]model.Scalar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, id)
	return nil
}

func (f *fakeSUT) UpdateNode(labels []string, id string, properties map[string]model.Scalar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, id)
	return nil
}

func (f *fakeSUT) DeleteNode(labels []string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeSUT) InsertRelation(labels []string, id, startId, endId, startLabel, endLabel string, properties map[string]model.Scalar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, id)
	return nil
}

type fakeRegistry struct {
	mu     sync.Mutex
	handle SUTInput
	ok     bool
}

func (r *fakeRegistry) ResolveSourceHandle(serverId, sourceId string) (SUTInput, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle, r.ok
}

func (r *fakeRegistry) install(h SUTInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handle, r.ok = h, true
}

func insertEvent(id string) model.SourceChangeEvent {
	return model.SourceChangeEvent{
		Op:      model.OpInsert,
		Payload: model.ChangePayload{After: &model.Payload{Id: id, Labels: []string{"Thing"}}},
	}
}

func TestChannelDispatcherBuffersUntilHandleResolves(t *testing.T) {
	reg := &fakeRegistry{}
	d := NewChannelDispatcher(reg, "server1", "source1", 100)

	if err := d.Dispatch(context.Background(), []model.SourceChangeEvent{insertEvent("a"), insertEvent("b")}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	sut := &fakeSUT{}
	reg.install(sut)

	if err := d.Dispatch(context.Background(), []model.SourceChangeEvent{insertEvent("c")}); err != nil {
		t.Fatalf("Dispatch after resolution: %v", err)
	}

	sut.mu.Lock()
	defer sut.mu.Unlock()
	if len(sut.inserts) != 3 {
		t.Fatalf("expected 3 inserts (2 queued + 1 new), got %d: %v", len(sut.inserts), sut.inserts)
	}
	if sut.inserts[0] != "a" || sut.inserts[1] != "b" || sut.inserts[2] != "c" {
		t.Fatalf("expected queued events flushed before the new one, in order: got %v", sut.inserts)
	}
}

func TestChannelDispatcherDeliversImmediatelyWhenResolved(t *testing.T) {
	sut := &fakeSUT{}
	reg := &fakeRegistry{}
	reg.install(sut)
	d := NewChannelDispatcher(reg, "server1", "source1", 100)

	if err := d.Dispatch(context.Background(), []model.SourceChangeEvent{insertEvent("a")}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	sut.mu.Lock()
	defer sut.mu.Unlock()
	if len(sut.inserts) != 1 || sut.inserts[0] != "a" {
		t.Fatalf("expected immediate delivery, got %v", sut.inserts)
	}
}

func TestChannelDispatcherDeleteUsesBeforePayload(t *testing.T) {
	sut := &fakeSUT{}
	reg := &fakeRegistry{}
	reg.install(sut)
	d := NewChannelDispatcher(reg, "server1", "source1", 100)

	ev := model.SourceChangeEvent{
		Op:      model.OpDelete,
		Payload: model.ChangePayload{Before: &model.Payload{Id: "a", Labels: []string{"Thing"}}},
	}
	if err := d.Dispatch(context.Background(), []model.SourceChangeEvent{ev}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	sut.mu.Lock()
	defer sut.mu.Unlock()
	if len(sut.deletes) != 1 || sut.deletes[0] != "a" {
		t.Fatalf("expected a delete for id a, got %v", sut.deletes)
	}
}
