package scripted

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

func writeScript(t *testing.T, dir, name string, lines []string) {
	t.Helper()
	var content string
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func sourceChangeLine(t *testing.T, offsetNs uint64) string {
	t.Helper()
	rec := model.ScriptedRecord{
		Kind:     model.RecordSourceChange,
		OffsetNs: offsetNs,
		Change: &model.SourceChangeEvent{
			Op: model.OpInsert,
			Payload: model.ChangePayload{
				After: &model.Payload{Id: "n1", Labels: []string{"Thing"}},
			},
		},
	}
	return encodeRecord(t, rec)
}

func encodeRecord(t *testing.T, rec model.ScriptedRecord) string {
	t.Helper()
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return string(b)
}

func TestListFilesOrdersLexicographically(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "b.jsonl", nil)
	writeScript(t, dir, "a.jsonl", nil)
	writeScript(t, dir, "c.jsonl", nil)

	files, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	for i, want := range []string{"a.jsonl", "b.jsonl", "c.jsonl"} {
		if filepath.Base(files[i]) != want {
			t.Errorf("file %d: expected %s, got %s", i, want, filepath.Base(files[i]))
		}
	}
}

func TestBackendComputesAbsoluteTimestampFromHeader(t *testing.T) {
	dir := t.TempDir()
	header := encodeRecord(t, model.ScriptedRecord{Kind: model.RecordHeader, StartTimeNs: 5_000_000_000})
	change := sourceChangeLine(t, 250_000_000)
	writeScript(t, dir, "0.jsonl", []string{header, change})

	b, err := NewBackend(dir, false)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	_, ts, ok, err := b.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatal("expected an event, got none")
	}
	if want := uint64(5_250_000_000); ts != want {
		t.Fatalf("expected ts %d, got %d", want, ts)
	}
}

func TestBackendPauseSuspendsWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	pause := encodeRecord(t, model.ScriptedRecord{Kind: model.RecordPauseCommand})
	change := sourceChangeLine(t, 0)
	writeScript(t, dir, "0.jsonl", []string{pause, change})

	b, err := NewBackend(dir, true)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	_, _, ok, err := b.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatal("expected pause to suspend playback before the source-change record")
	}
}

func TestBackendPauseIgnoredWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	pause := encodeRecord(t, model.ScriptedRecord{Kind: model.RecordPauseCommand})
	change := sourceChangeLine(t, 0)
	writeScript(t, dir, "0.jsonl", []string{pause, change})

	b, err := NewBackend(dir, false)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	_, _, ok, err := b.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatal("expected the pause record to be skipped and the change record to be returned")
	}
}

func TestBackendFinishTerminatesPlayback(t *testing.T) {
	dir := t.TempDir()
	change := sourceChangeLine(t, 0)
	finish := encodeRecord(t, model.ScriptedRecord{Kind: model.RecordFinish})
	trailing := sourceChangeLine(t, 100)
	writeScript(t, dir, "0.jsonl", []string{change, finish, trailing})

	b, err := NewBackend(dir, false)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	_, _, ok, err := b.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected first change record, got ok=%v err=%v", ok, err)
	}
	_, _, ok, err = b.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatal("expected Finish record to terminate playback before the trailing record")
	}
}

func TestBackendResetRewindsToFirstFile(t *testing.T) {
	dir := t.TempDir()
	header := encodeRecord(t, model.ScriptedRecord{Kind: model.RecordHeader, StartTimeNs: 1000})
	change := sourceChangeLine(t, 1)
	writeScript(t, dir, "0.jsonl", []string{header, change})

	b, err := NewBackend(dir, false)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	if _, _, ok, err := b.Next(context.Background()); err != nil || !ok {
		t.Fatalf("first Next: ok=%v err=%v", ok, err)
	}
	if _, _, ok, err := b.Next(context.Background()); err != nil || ok {
		t.Fatalf("expected exhaustion, got ok=%v err=%v", ok, err)
	}

	if err := b.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	_, ts, ok, err := b.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next after reset: ok=%v err=%v", ok, err)
	}
	if ts != 1001 {
		t.Fatalf("expected ts 1001 after reset, got %d", ts)
	}
}

func TestBootstrapRecordsFiltersByLabel(t *testing.T) {
	dir := t.TempDir()
	node := encodeRecord(t, model.ScriptedRecord{
		Kind:    model.RecordNode,
		Payload: &model.Payload{Id: "n1", Labels: []string{"Person"}},
	})
	otherNode := encodeRecord(t, model.ScriptedRecord{
		Kind:    model.RecordNode,
		Payload: &model.Payload{Id: "n2", Labels: []string{"Place"}},
	})
	rel := encodeRecord(t, model.ScriptedRecord{
		Kind:    model.RecordRelation,
		Payload: &model.Payload{Id: "r1", Labels: []string{"Visited"}, StartId: "n1", EndId: "n2"},
	})
	writeScript(t, dir, "0.jsonl", []string{node, otherNode, rel})

	recs, err := BootstrapRecords(dir, map[string]bool{"Person": true}, map[string]bool{"Visited": true})
	if err != nil {
		t.Fatalf("BootstrapRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records (1 node + 1 relation), got %d", len(recs))
	}
	if recs[0].Payload.Id != "n1" {
		t.Errorf("expected first record to be n1, got %s", recs[0].Payload.Id)
	}
	if recs[1].Payload.Id != "r1" {
		t.Errorf("expected second record to be r1, got %s", recs[1].Payload.Id)
	}
}

func TestBootstrapRecordsEmptyLabelSetMatchesAll(t *testing.T) {
	dir := t.TempDir()
	node := encodeRecord(t, model.ScriptedRecord{
		Kind:    model.RecordNode,
		Payload: &model.Payload{Id: "n1", Labels: []string{"Anything"}},
	})
	writeScript(t, dir, "0.jsonl", []string{node})

	recs, err := BootstrapRecords(dir, nil, nil)
	if err != nil {
		t.Fatalf("BootstrapRecords: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected empty label set to match every node, got %d records", len(recs))
	}
}
