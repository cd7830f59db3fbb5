// Package testutil provides shared fixtures for wptrack tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/event"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
)

// BaseTime is the fixed anchor used for deterministic event timestamps.
var BaseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// SetupRepo creates a temporary repository root for testing. It is cleaned
// up when the test completes.
func SetupRepo(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// MakeEvent constructs a valid status event. The timestamp is BaseTime plus
// step seconds, and the event id is derived from it so ordering in tests is
// predictable.
func MakeEvent(stream, unit string, from, to lane.Lane, step int) *event.StatusEvent {
	at := BaseTime.Add(time.Duration(step) * time.Second)
	ev := &event.StatusEvent{
		EventID:       event.NewID(at),
		WorkStream:    stream,
		Unit:          unit,
		From:          from,
		To:            to,
		At:            at,
		Actor:         "tester",
		ExecutionMode: event.ModeInteractive,
	}
	if to == lane.Done {
		ev.Evidence = Evidence()
	}
	if to == lane.Canceled {
		ev.Reason = "descoped"
	}
	return ev
}

// Evidence returns minimal valid completion evidence.
func Evidence() *event.DoneEvidence {
	return &event.DoneEvidence{
		Approval: event.ReviewerApproval{Reviewer: "reviewer", Verdict: "approved"},
	}
}

// AppendEvents appends events to a stream's log through the store.
func AppendEvents(t *testing.T, root, stream string, events ...*event.StatusEvent) {
	t.Helper()
	st := store.New(root, stream)
	for _, ev := range events {
		if err := st.Append(ev); err != nil {
			t.Fatalf("append %s: %v", ev.EventID, err)
		}
	}
}

// WriteLog writes raw log content directly, bypassing store validation.
// Tests use this for corrupt or hand-ordered logs.
func WriteLog(t *testing.T, root, stream, content string) {
	t.Helper()
	dir := store.StreamDir(root, stream)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, store.LogFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteWorkPackage writes a legacy work-package document with the given
// front-matter block (fence lines added here) and body.
func WriteWorkPackage(t *testing.T, root, stream, unit, frontMatter, body string) string {
	t.Helper()
	path := filepath.Join(root, "specs", stream, "work-packages", unit+".md")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	content := "---\n" + frontMatter + "\n---\n" + body
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
