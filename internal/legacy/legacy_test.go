package legacy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/event"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/reduce"
)

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const sampleDoc = `---
title: Checkout rework
lane: in_progress
lane_updated: 2025-02-01T09:00:00Z
owner: alice
tags:
  - payments
---

# Checkout rework

Body text stays untouched.
`

func TestReadLane(t *testing.T) {
	got, err := ReadLane([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("ReadLane: %v", err)
	}
	if got != "in_progress" {
		t.Errorf("lane = %q, want in_progress", got)
	}
}

func TestReadLaneRawAlias(t *testing.T) {
	doc := strings.Replace(sampleDoc, "lane: in_progress", "lane: doing", 1)
	got, err := ReadLane([]byte(doc))
	if err != nil {
		t.Fatalf("ReadLane: %v", err)
	}
	if got != "doing" {
		t.Errorf("lane = %q, want the unresolved alias", got)
	}
}

func TestReadLaneMissingFrontMatter(t *testing.T) {
	if _, err := ReadLane([]byte("# No front matter\n")); err == nil {
		t.Error("document without front matter should fail")
	}
}

func TestUpdateFrontMatter(t *testing.T) {
	updated, err := UpdateFrontMatter([]byte(sampleDoc), lane.ForReview, testTime)
	if err != nil {
		t.Fatalf("UpdateFrontMatter: %v", err)
	}
	out := string(updated)

	if !strings.Contains(out, "lane: for_review") {
		t.Errorf("lane not rewritten:\n%s", out)
	}
	if !strings.Contains(out, "lane_updated: \"2025-03-01T12:00:00Z\"") &&
		!strings.Contains(out, "lane_updated: 2025-03-01T12:00:00Z") {
		t.Errorf("lane_updated not rewritten:\n%s", out)
	}
	// Unknown keys, their order, and the body must survive.
	for _, keep := range []string{"title: Checkout rework", "owner: alice", "- payments", "Body text stays untouched."} {
		if !strings.Contains(out, keep) {
			t.Errorf("rewrite lost %q:\n%s", keep, out)
		}
	}
	if strings.Index(out, "title:") > strings.Index(out, "lane:") {
		t.Error("key order not preserved")
	}
}

func TestUpdateFrontMatterAppendsMissingKeys(t *testing.T) {
	doc := "---\ntitle: Minimal\n---\nBody\n"
	updated, err := UpdateFrontMatter([]byte(doc), lane.Done, testTime)
	if err != nil {
		t.Fatalf("UpdateFrontMatter: %v", err)
	}
	if !strings.Contains(string(updated), "lane: done") {
		t.Errorf("lane key not appended:\n%s", updated)
	}
}

func TestUpdateFrontMatterStable(t *testing.T) {
	first, err := UpdateFrontMatter([]byte(sampleDoc), lane.ForReview, testTime)
	if err != nil {
		t.Fatal(err)
	}
	second, err := UpdateFrontMatter(first, lane.ForReview, testTime)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("rewrite is not idempotent:\n%s\nvs\n%s", first, second)
	}
}

func makeSnapshot(stream string) *reduce.Snapshot {
	events := []*event.StatusEvent{
		{
			EventID: event.NewID(testTime), WorkStream: stream, Unit: "WP1-checkout",
			To: lane.InProgress, At: testTime, Actor: "alice",
			ExecutionMode: event.ModeInteractive,
		},
		{
			EventID: event.NewID(testTime.Add(time.Second)), WorkStream: stream, Unit: "WP2-refunds",
			To: lane.Claimed, At: testTime.Add(time.Second), Actor: "bob",
			ExecutionMode: event.ModeInteractive,
		},
	}
	return reduce.Reduce(stream, events)
}

func TestBridgeRefresh(t *testing.T) {
	root := t.TempDir()
	snap := makeSnapshot("billing")

	docPath := DocPath(root, "billing", "WP1-checkout")
	if err := os.MkdirAll(filepath.Dir(docPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(docPath, []byte(sampleDoc), 0644); err != nil {
		t.Fatal(err)
	}

	warnings, err := NewBridge(root, "billing").Refresh(snap)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	// WP2-refunds has no document: warning, not failure.
	if len(warnings) != 1 || !strings.Contains(warnings[0], "WP2-refunds") {
		t.Errorf("warnings = %v, want one about WP2-refunds", warnings)
	}

	doc, err := os.ReadFile(docPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(doc), "lane: in_progress") {
		t.Errorf("front matter not refreshed:\n%s", doc)
	}

	tasks, err := os.ReadFile(TasksPath(root, "billing"))
	if err != nil {
		t.Fatalf("tasks.md not created: %v", err)
	}
	for _, want := range []string{BeginMarker, EndMarker, "WP1-checkout", "WP2-refunds", "in_progress"} {
		if !strings.Contains(string(tasks), want) {
			t.Errorf("tasks.md missing %q:\n%s", want, tasks)
		}
	}
}

func TestBridgeRefreshReplacesSection(t *testing.T) {
	root := t.TempDir()
	snap := makeSnapshot("billing")

	tasksPath := TasksPath(root, "billing")
	if err := os.MkdirAll(filepath.Dir(tasksPath), 0755); err != nil {
		t.Fatal(err)
	}
	original := "# Tasks: billing\n\nHand-written intro.\n\n" +
		BeginMarker + "\nstale table\n" + EndMarker + "\n\nHand-written outro.\n"
	if err := os.WriteFile(tasksPath, []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewBridge(root, "billing").Refresh(snap); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	updated, err := os.ReadFile(tasksPath)
	if err != nil {
		t.Fatal(err)
	}
	out := string(updated)
	if strings.Contains(out, "stale table") {
		t.Error("stale section content survived the refresh")
	}
	for _, keep := range []string{"Hand-written intro.", "Hand-written outro.", "WP1-checkout"} {
		if !strings.Contains(out, keep) {
			t.Errorf("refresh lost %q:\n%s", keep, out)
		}
	}
}

func TestSectionDrift(t *testing.T) {
	root := t.TempDir()
	snap := makeSnapshot("billing")

	// No document yet: not drift.
	if drifted, _ := SectionDrift(root, "billing", snap); drifted {
		t.Error("missing tasks.md must not count as drift")
	}

	if _, err := NewBridge(root, "billing").Refresh(snap); err != nil {
		t.Fatal(err)
	}
	if drifted, _ := SectionDrift(root, "billing", snap); drifted {
		t.Error("freshly refreshed section must not drift")
	}

	// Hand-edit the generated section.
	tasksPath := TasksPath(root, "billing")
	content, err := os.ReadFile(tasksPath)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(content), "in_progress", "done", 1)
	if err := os.WriteFile(tasksPath, []byte(edited), 0644); err != nil {
		t.Fatal(err)
	}
	if drifted, detail := SectionDrift(root, "billing", snap); !drifted || detail == "" {
		t.Error("hand-edited section must be reported as drift")
	}
}

func TestReadMigrationSource(t *testing.T) {
	doc := `---
lane: done
lane_history:
  - planned
  - doing
  - for_review
reviewed_by: carol
review_verdict: approved
---
Body
`
	src, err := ReadMigrationSource([]byte(doc))
	if err != nil {
		t.Fatalf("ReadMigrationSource: %v", err)
	}
	if src.Lane != "done" || len(src.History) != 3 || src.History[1] != "doing" {
		t.Errorf("unexpected source: %+v", src)
	}
	if src.Reviewer != "carol" || src.Verdict != "approved" {
		t.Errorf("approval not read: %+v", src)
	}
}
