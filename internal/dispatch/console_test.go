package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func testEvents(n int) []model.SourceChangeEvent {
	events := make([]model.SourceChangeEvent, n)
	for i := range events {
		events[i] = model.SourceChangeEvent{
			Op: model.OpInsert,
			Payload: model.ChangePayload{
				After: &model.Payload{Id: "n", Labels: []string{"Thing"}},
			},
		}
	}
	return events
}

func TestConsoleDispatcherWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	d := NewConsoleDispatcher(&buf, testLogger())
	if err := d.Dispatch(context.Background(), testEvents(3)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	var decoded model.SourceChangeEvent
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if decoded.Op != model.OpInsert {
		t.Errorf("expected OpInsert, got %s", decoded.Op)
	}
}

func TestJsonlFileDispatcherRotatesOnMaxLines(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "events")
	d, err := NewJsonlFileDispatcher(prefix, 2, testLogger())
	if err != nil {
		t.Fatalf("NewJsonlFileDispatcher: %v", err)
	}
	defer d.Close(context.Background())

	if err := d.Dispatch(context.Background(), testEvents(5)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 3 {
		t.Fatalf("expected at least 3 rotated files for 5 events at 2/file, got %d", len(entries))
	}
}

func TestJsonlFileDispatcherCloseReleasesHandle(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "events")
	d, err := NewJsonlFileDispatcher(prefix, 0, testLogger())
	if err != nil {
		t.Fatalf("NewJsonlFileDispatcher: %v", err)
	}
	if err := d.Dispatch(context.Background(), testEvents(1)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}
