package model

import "testing"

func TestSourceChangeEventValidateInsert(t *testing.T) {
	e := SourceChangeEvent{
		Op:               OpInsert,
		ReactivatorStart: 10,
		ReactivatorEnd:   20,
		Payload: ChangePayload{
			After: &Payload{Id: "n1", Labels: []string{"Stock"}},
		},
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.Payload.Before = &Payload{Id: "n1"}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error: insert with non-nil before")
	}
}

func TestSourceChangeEventValidateDelete(t *testing.T) {
	e := SourceChangeEvent{
		Op:               OpDelete,
		ReactivatorStart: 10,
		ReactivatorEnd:   20,
		Payload: ChangePayload{
			Before: &Payload{Id: "n1"},
		},
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSourceChangeEventValidateUpdate(t *testing.T) {
	e := SourceChangeEvent{
		Op:               OpUpdate,
		ReactivatorStart: 10,
		ReactivatorEnd:   20,
	}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error: update missing both payloads")
	}
	e.Payload.Before = &Payload{Id: "n1"}
	e.Payload.After = &Payload{Id: "n1"}
	if err := e.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSourceChangeEventValidateReactivatorWindow(t *testing.T) {
	e := SourceChangeEvent{
		Op:               OpInsert,
		ReactivatorStart: 20,
		ReactivatorEnd:   10,
		Payload:          ChangePayload{After: &Payload{Id: "n1"}},
	}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error: reactivator end before start")
	}
}

func TestPayloadIsRelation(t *testing.T) {
	node := &Payload{Id: "n1"}
	if node.IsRelation() {
		t.Fatal("node payload should not be a relation")
	}
	rel := &Payload{Id: "r1", StartId: "n1", EndId: "n2"}
	if !rel.IsRelation() {
		t.Fatal("relation payload should be reported as a relation")
	}
}
