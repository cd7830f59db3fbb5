package emit

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/errors"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/event"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/legacy"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/reduce"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/telemetry"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/testutil"
)

func newTestEmitter(t *testing.T) (*Emitter, string) {
	t.Helper()
	root := testutil.SetupRepo(t)
	return New(root, config.Default(), nil, nil), root
}

func emitOK(t *testing.T, e *Emitter, req Request) *event.StatusEvent {
	t.Helper()
	result := e.Emit(req)
	if !result.OK {
		t.Fatalf("Emit(%+v) rejected: %v", req, result.Errs)
	}
	return result.Event
}

func TestEmitRecordsAndMaterializes(t *testing.T) {
	e, root := newTestEmitter(t)

	ev := emitOK(t, e, Request{
		WorkStream: "billing", Unit: "WP1-checkout", ToLane: "claimed", Actor: "alice",
	})
	if ev.From != "" {
		t.Errorf("first event must have an empty from lane, got %q", ev.From)
	}
	if ev.ExecutionMode != event.ModeInteractive {
		t.Errorf("default mode = %q, want interactive", ev.ExecutionMode)
	}

	st := store.New(root, "billing")
	events, err := st.Read()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("log has %d events, want 1", len(events))
	}

	snap, err := reduce.LoadSnapshot(st.SnapshotPath())
	if err != nil {
		t.Fatalf("snapshot not materialized: %v", err)
	}
	if got := snap.Unit("WP1-checkout").Lane; got != lane.Claimed {
		t.Errorf("snapshot lane = %s, want claimed", got)
	}
}

func TestEmitResolvesAlias(t *testing.T) {
	e, root := newTestEmitter(t)

	ev := emitOK(t, e, Request{
		WorkStream: "billing", Unit: "WP1-checkout", ToLane: "doing", Actor: "alice",
	})
	if ev.To != lane.InProgress {
		t.Errorf("alias not resolved: to = %q", ev.To)
	}

	// The persisted record must carry the canonical spelling.
	data, err := os.ReadFile(store.New(root, "billing").LogPath())
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(data, []byte("doing")) {
		t.Errorf("alias persisted to the log:\n%s", data)
	}
}

func TestEmitChainsFromLane(t *testing.T) {
	e, _ := newTestEmitter(t)

	emitOK(t, e, Request{WorkStream: "billing", Unit: "WP1", ToLane: "claimed", Actor: "alice"})
	ev := emitOK(t, e, Request{WorkStream: "billing", Unit: "WP1", ToLane: "in_progress", Actor: "alice"})
	if ev.From != lane.Claimed {
		t.Errorf("from = %q, want claimed (derived from prior events)", ev.From)
	}
}

func TestEmitRejectsIllegalTransition(t *testing.T) {
	e, root := newTestEmitter(t)

	result := e.Emit(Request{WorkStream: "billing", Unit: "WP1", ToLane: "done", Actor: "alice"})
	if result.OK {
		t.Fatal("planned -> done without force must be rejected")
	}
	if len(result.Errs) == 0 || !errors.IsInputError(result.Errs[0]) {
		t.Errorf("expected an input error, got %v", result.Errs)
	}
	if _, err := os.Stat(store.New(root, "billing").LogPath()); !os.IsNotExist(err) {
		t.Error("rejected emission must write nothing")
	}
}

func TestEmitEvidenceGate(t *testing.T) {
	e, _ := newTestEmitter(t)
	emitOK(t, e, Request{WorkStream: "billing", Unit: "WP1", ToLane: "in_progress", Actor: "alice"})
	emitOK(t, e, Request{WorkStream: "billing", Unit: "WP1", ToLane: "for_review", Actor: "alice"})

	noEvidence := e.Emit(Request{WorkStream: "billing", Unit: "WP1", ToLane: "done", Actor: "bob"})
	if noEvidence.OK {
		t.Fatal("for_review -> done without evidence must be rejected")
	}
	if !errors.Is(noEvidence.Errs[0], errors.ErrMissingEvidence) {
		t.Errorf("want ErrMissingEvidence, got %v", noEvidence.Errs[0])
	}

	ev := emitOK(t, e, Request{
		WorkStream: "billing", Unit: "WP1", ToLane: "done", Actor: "bob",
		Evidence: testutil.Evidence(),
	})
	if !ev.Evidence.Valid() {
		t.Error("evidence not recorded")
	}
}

func TestEmitForceAudit(t *testing.T) {
	e, _ := newTestEmitter(t)

	missingReason := e.Emit(Request{
		WorkStream: "billing", Unit: "WP1", ToLane: "done", Actor: "alice", Force: true,
	})
	if missingReason.OK {
		t.Fatal("forced emission without a reason must be rejected")
	}

	ev := emitOK(t, e, Request{
		WorkStream: "billing", Unit: "WP1", ToLane: "done", Actor: "alice",
		Force: true, Reason: "import from tracker",
	})
	if !ev.Forced || ev.Reason == "" {
		t.Errorf("force audit fields not recorded: %+v", ev)
	}
}

func TestEmitRefreshesLegacyInDualWrite(t *testing.T) {
	e, root := newTestEmitter(t)
	testutil.WriteWorkPackage(t, root, "billing", "WP1",
		"title: Checkout\nlane: planned", "Body\n")

	emitOK(t, e, Request{WorkStream: "billing", Unit: "WP1", ToLane: "claimed", Actor: "alice"})

	doc, err := os.ReadFile(legacy.DocPath(root, "billing", "WP1"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(doc), "lane: claimed") {
		t.Errorf("legacy front matter not refreshed:\n%s", doc)
	}
	if _, err := os.Stat(legacy.TasksPath(root, "billing")); err != nil {
		t.Errorf("tasks document not generated: %v", err)
	}
}

func TestEmitSkipsLegacyInHardening(t *testing.T) {
	root := testutil.SetupRepo(t)
	cfg := config.Default()
	cfg.Status.Phase = 0
	e := New(root, cfg, nil, nil)
	testutil.WriteWorkPackage(t, root, "billing", "WP1",
		"title: Checkout\nlane: planned", "Body\n")

	emitOK(t, e, Request{WorkStream: "billing", Unit: "WP1", ToLane: "claimed", Actor: "alice"})

	doc, err := os.ReadFile(legacy.DocPath(root, "billing", "WP1"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(doc), "lane: claimed") {
		t.Error("hardening phase must not rewrite legacy documents")
	}
}

func TestEmitPublishesTelemetry(t *testing.T) {
	e, _ := newTestEmitter(t)

	var types []string
	e.Bus().SubscribeAll(func(ev telemetry.Event) { types = append(types, ev.EventType()) })

	emitOK(t, e, Request{WorkStream: "billing", Unit: "WP1", ToLane: "claimed", Actor: "alice"})

	want := map[string]bool{"status.changed": false, "snapshot.materialized": false}
	for _, typ := range types {
		if _, ok := want[typ]; ok {
			want[typ] = true
		}
	}
	for typ, seen := range want {
		if !seen {
			t.Errorf("telemetry event %q not published (got %v)", typ, types)
		}
	}
}

// TestMaterializeIdempotent verifies that re-running materialization with no
// new events reproduces the snapshot byte for byte.
func TestMaterializeIdempotent(t *testing.T) {
	e, root := newTestEmitter(t)
	emitOK(t, e, Request{WorkStream: "billing", Unit: "WP1", ToLane: "claimed", Actor: "alice"})

	path := store.New(root, "billing").SnapshotPath()
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if result := e.Materialize("billing"); !result.OK {
		t.Fatalf("Materialize: %v", result.Errs)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("materialization is not byte-stable without new events")
	}
}

func TestEmitToleratesCorruptRecords(t *testing.T) {
	e, root := newTestEmitter(t)
	emitOK(t, e, Request{WorkStream: "billing", Unit: "WP1", ToLane: "claimed", Actor: "alice"})

	// Simulate a torn append.
	logPath := store.New(root, "billing").LogPath()
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"event_id":"evt-torn`); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	result := e.Emit(Request{WorkStream: "billing", Unit: "WP1", ToLane: "in_progress", Actor: "alice"})
	if !result.OK {
		t.Fatalf("emission should survive a corrupt record: %v", result.Errs)
	}
	if len(result.Warnings) == 0 {
		t.Error("corrupt record should surface as a warning")
	}
}
