package store

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/errors"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/event"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func makeEvent(unit string, from, to lane.Lane, step int) *event.StatusEvent {
	at := baseTime.Add(time.Duration(step) * time.Second)
	return &event.StatusEvent{
		EventID:       event.NewID(at),
		WorkStream:    "billing",
		Unit:          unit,
		From:          from,
		To:            to,
		At:            at,
		Actor:         "tester",
		ExecutionMode: event.ModeInteractive,
	}
}

func TestAppendAndRead(t *testing.T) {
	root := t.TempDir()
	st := New(root, "billing")

	events := []*event.StatusEvent{
		makeEvent("WP1-a", "", lane.Claimed, 0),
		makeEvent("WP1-a", lane.Claimed, lane.InProgress, 1),
		makeEvent("WP1-b", "", lane.InProgress, 2),
	}
	for _, ev := range events {
		if err := st.Append(ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := st.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("Read returned %d events, want %d", len(got), len(events))
	}
	for i := range events {
		if got[i].EventID != events[i].EventID {
			t.Errorf("event %d: id %q, want %q (file order must be preserved)",
				i, got[i].EventID, events[i].EventID)
		}
	}
}

func TestAppendRejectsDuplicateID(t *testing.T) {
	root := t.TempDir()
	st := New(root, "billing")

	ev := makeEvent("WP1-a", "", lane.Claimed, 0)
	if err := st.Append(ev); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	err := st.Append(ev)
	if !errors.Is(err, errors.ErrDuplicateEvent) {
		t.Fatalf("second Append = %v, want ErrDuplicateEvent", err)
	}
}

func TestAppendDedupeSurvivesNewInstance(t *testing.T) {
	root := t.TempDir()
	ev := makeEvent("WP1-a", "", lane.Claimed, 0)

	if err := New(root, "billing").Append(ev); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// A fresh store instance must rebuild the seen set from disk.
	err := New(root, "billing").Append(ev)
	if !errors.Is(err, errors.ErrDuplicateEvent) {
		t.Fatalf("Append on new instance = %v, want ErrDuplicateEvent", err)
	}
}

func TestAppendRejectsInvalidEvent(t *testing.T) {
	st := New(t.TempDir(), "billing")
	ev := makeEvent("WP1-a", "", lane.Claimed, 0)
	ev.Actor = ""
	if err := st.Append(ev); err == nil {
		t.Fatal("invalid event must not be appended")
	}
	if _, err := os.Stat(st.LogPath()); !os.IsNotExist(err) {
		t.Error("rejected append must not create the log")
	}
}

func TestReadMissingLog(t *testing.T) {
	st := New(t.TempDir(), "billing")
	events, recErrs, err := st.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw on missing log: %v", err)
	}
	if len(events) != 0 || len(recErrs) != 0 {
		t.Errorf("missing log should be empty, got %d events, %d errors", len(events), len(recErrs))
	}
}

// TestCorruptionTolerance verifies that one malformed record among ten valid
// ones yields the nine valid events plus a positioned error.
func TestCorruptionTolerance(t *testing.T) {
	root := t.TempDir()
	st := New(root, "billing")

	var lines []string
	for i := 0; i < 10; i++ {
		ev := makeEvent(fmt.Sprintf("WP1-%d", i), "", lane.Claimed, i)
		line, err := event.Marshal(ev)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		lines = append(lines, string(line))
	}
	// Simulate an interrupted append truncating line 5.
	lines[4] = lines[4][:20]

	if err := os.MkdirAll(st.Dir(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(st.LogPath(), []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	events, recErrs, err := st.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if len(events) != 9 {
		t.Errorf("got %d valid events, want 9", len(events))
	}
	if len(recErrs) != 1 {
		t.Fatalf("got %d record errors, want 1", len(recErrs))
	}
	if recErrs[0].Line != 5 {
		t.Errorf("record error at line %d, want 5", recErrs[0].Line)
	}
	if !errors.Is(recErrs[0], errors.ErrCorruptRecord) {
		t.Errorf("record error should wrap ErrCorruptRecord, got %v", recErrs[0].Err)
	}
}

func TestDecodeLogReportsInvalidEvents(t *testing.T) {
	valid := makeEvent("WP1-a", "", lane.Claimed, 0)
	line, err := event.Marshal(valid)
	if err != nil {
		t.Fatal(err)
	}
	alias := `{"event_id":"evt-1","work_stream":"billing","unit":"WP1-b","to":"doing","at":"2025-03-01T12:00:01Z","actor":"a","execution_mode":"interactive"}`

	events, recErrs := DecodeLog([]byte(string(line) + "\n" + alias + "\n"))
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
	if len(recErrs) != 1 {
		t.Fatalf("got %d record errors, want 1", len(recErrs))
	}
	if !errors.Is(recErrs[0], errors.ErrPersistedAlias) {
		t.Errorf("alias record should wrap ErrPersistedAlias, got %v", recErrs[0].Err)
	}
}

func TestListStreams(t *testing.T) {
	root := t.TempDir()

	streams, err := ListStreams(root)
	if err != nil {
		t.Fatalf("ListStreams on empty root: %v", err)
	}
	if len(streams) != 0 {
		t.Errorf("expected no streams, got %v", streams)
	}

	for _, stream := range []string{"checkout", "auth", "billing"} {
		if err := New(root, stream).Append(makeEventFor(stream)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	streams, err = ListStreams(root)
	if err != nil {
		t.Fatalf("ListStreams: %v", err)
	}
	want := []string{"auth", "billing", "checkout"}
	if len(streams) != len(want) {
		t.Fatalf("got %v, want %v", streams, want)
	}
	for i := range want {
		if streams[i] != want[i] {
			t.Errorf("streams[%d] = %q, want %q (sorted)", i, streams[i], want[i])
		}
	}
}

func makeEventFor(stream string) *event.StatusEvent {
	ev := makeEvent("WP1-a", "", lane.Claimed, 0)
	ev.WorkStream = stream
	return ev
}

func TestWriteAtomic(t *testing.T) {
	root := t.TempDir()
	path := root + "/nested/dir/file.json"

	if err := WriteAtomic(path, []byte("first"), 0644); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if err := WriteAtomic(path, []byte("second"), 0644); err != nil {
		t.Fatalf("WriteAtomic overwrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content %q, want %q", data, "second")
	}

	entries, err := os.ReadDir(root + "/nested/dir")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}
