package event

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
)

func sampleEvent() *StatusEvent {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &StatusEvent{
		EventID:       NewID(at),
		WorkStream:    "billing",
		Unit:          "WP1-checkout",
		From:          lane.InProgress,
		To:            lane.ForReview,
		At:            at,
		Actor:         "alice",
		ExecutionMode: ModeInteractive,
	}
}

// TestRoundTrip verifies that an event survives serialize -> parse ->
// serialize with every field intact and byte-identical wire output.
func TestRoundTrip(t *testing.T) {
	ev := sampleEvent()
	ev.Forced = true
	ev.Reason = "review requested early"
	ev.ReviewRef = "PR-42"
	ev.Evidence = &DoneEvidence{
		Approval: ReviewerApproval{Reviewer: "bob", Verdict: "approved", Reference: "PR-42"},
		Commits:  []string{"deadbeef"},
		Verification: &VerificationResult{
			Passed: true,
			Detail: "34 tests",
		},
	}

	first, err := Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if bytes.ContainsRune(first, '\n') {
		t.Error("marshaled event must be a single line")
	}

	decoded, err := Unmarshal(first)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(ev, decoded) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", decoded, ev)
	}

	second, err := Marshal(decoded)
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("wire bytes changed across round-trip:\n got %s\nwant %s", second, first)
	}
}

func TestMarshalOmitsEmptyOptionalFields(t *testing.T) {
	ev := sampleEvent()
	line, err := Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, field := range []string{"forced", "reason", "review_ref", "evidence"} {
		if bytes.Contains(line, []byte(`"`+field+`"`)) {
			t.Errorf("empty optional field %q should be omitted, got %s", field, line)
		}
	}
}

func TestUnmarshalRejectsUnknownFields(t *testing.T) {
	line := []byte(`{"event_id":"evt-x","work_stream":"s","unit":"u","to":"done","at":"2025-03-01T12:00:00Z","actor":"a","execution_mode":"interactive","surprise":1}`)
	if _, err := Unmarshal(line); err == nil {
		t.Error("unknown field should be rejected")
	}
}

func TestNewIDOrdering(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Nanosecond)
	id1, id2 := NewID(t1), NewID(t2)

	if !strings.HasPrefix(id1, "evt-") {
		t.Errorf("id %q missing prefix", id1)
	}
	if id1 >= id2 {
		t.Errorf("ids must sort with time: %q >= %q", id1, id2)
	}
	if NewID(t1) == NewID(t1) {
		t.Error("ids at the same instant must still be unique")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StatusEvent)
		ok     bool
	}{
		{"valid", func(ev *StatusEvent) {}, true},
		{"first event without from", func(ev *StatusEvent) { ev.From = "" }, true},
		{"missing event id", func(ev *StatusEvent) { ev.EventID = "" }, false},
		{"missing stream", func(ev *StatusEvent) { ev.WorkStream = "" }, false},
		{"missing unit", func(ev *StatusEvent) { ev.Unit = "" }, false},
		{"missing actor", func(ev *StatusEvent) { ev.Actor = "" }, false},
		{"zero time", func(ev *StatusEvent) { ev.At = time.Time{} }, false},
		{"persisted alias", func(ev *StatusEvent) { ev.To = "doing" }, false},
		{"unknown to lane", func(ev *StatusEvent) { ev.To = "shipped" }, false},
		{"unknown from lane", func(ev *StatusEvent) { ev.From = "shipped" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := sampleEvent()
			tt.mutate(ev)
			err := ev.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestIsRollback(t *testing.T) {
	ev := sampleEvent()
	ev.From = lane.ForReview
	ev.To = lane.InProgress

	if ev.IsRollback() {
		t.Error("rollback requires a review_ref")
	}
	ev.ReviewRef = "PR-42"
	if !ev.IsRollback() {
		t.Error("for_review -> in_progress with review_ref is a rollback")
	}

	ev.To = lane.Blocked
	if ev.IsRollback() {
		t.Error("only for_review -> in_progress counts as a rollback")
	}
}

func TestEffectiveFrom(t *testing.T) {
	ev := sampleEvent()
	ev.From = ""
	if got := ev.EffectiveFrom(); got != lane.Planned {
		t.Errorf("EffectiveFrom() = %q, want planned", got)
	}
}
