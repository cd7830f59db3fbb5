// Package migrate reconstructs an event chain from legacy free-text lane
// history. The importer is run-once-per-unit and idempotent: reconstructed
// events carry a migration marker (execution mode plus fixed reason), a
// second run recognizes its own output and does nothing, and any unit with
// live (non-migration) events is never touched.
package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/errors"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/event"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/legacy"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/logging"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/phase"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/reduce"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/telemetry"
)

// migrationActor is recorded on every reconstructed event; historical
// transitions have no recoverable individual actor.
const migrationActor = "migration"

// State classifies a unit before import.
type State int

const (
	// StateNotStarted means the unit has no events in the canonical log.
	StateNotStarted State = iota
	// StateBootstrapped means the unit's events are all migration-marked:
	// a previous import wrote them and they may be regenerated.
	StateBootstrapped
	// StateLive means the unit has at least one non-migration event. The
	// importer never touches live data.
	StateLive
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateBootstrapped:
		return "bootstrapped"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// UnitSource is the legacy material for one unit.
type UnitSource struct {
	Stream string
	Unit   string
	// History is the informal lane history, oldest first, raw values.
	History []string
	// Current is the raw current lane value.
	Current string
	// Approval is a recoverable reviewer sign-off, if any.
	Approval *event.ReviewerApproval
	// UpdatedAt anchors reconstructed timestamps; zero means import time.
	UpdatedAt time.Time
}

// UnitResult reports the importer's decision for one unit.
type UnitResult struct {
	Unit    string
	State   State
	Planned []*event.StatusEvent
	// Applied is false for dry runs, no-op reruns, and live units.
	Applied  bool
	Warnings []string
}

// Report is the structured outcome of one import run.
type Report struct {
	WorkStream string
	DryRun     bool
	Units      []UnitResult
	Warnings   []string
}

// Applied returns the number of units whose chains were written.
func (r *Report) Applied() int {
	n := 0
	for _, u := range r.Units {
		if u.Applied {
			n++
		}
	}
	return n
}

// Importer reconstructs event chains for one repository root.
type Importer struct {
	root string
	cfg  *config.Config
	log  *logging.Logger
	bus  *telemetry.Bus
}

// New creates an Importer rooted at the repository root.
func New(root string, cfg *config.Config, log *logging.Logger, bus *telemetry.Bus) *Importer {
	if log == nil {
		log = logging.NopLogger()
	}
	if bus == nil {
		bus = telemetry.NewBus()
	}
	return &Importer{root: root, cfg: cfg, log: log, bus: bus}
}

// Run imports every work-package document of a stream. With dryRun the
// report carries the would-be chains and nothing is written. Otherwise all
// accepted chains are committed in one backup-then-atomic-replace of the
// stream's log, followed by rematerialization.
func (im *Importer) Run(stream string, dryRun bool) (*Report, error) {
	report := &Report{WorkStream: stream, DryRun: dryRun}
	log := im.log.WithWorkStream(stream)

	sources, warnings, err := im.loadSources(stream)
	if err != nil {
		return nil, err
	}
	report.Warnings = warnings

	st := store.New(im.root, stream)
	existing, recErrs, err := st.ReadRaw()
	if err != nil {
		return nil, err
	}
	for _, recErr := range recErrs {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("corrupt log record ignored: %v", recErr))
	}

	byUnit := make(map[string][]*event.StatusEvent)
	for _, ev := range existing {
		byUnit[ev.Unit] = append(byUnit[ev.Unit], ev)
	}

	var (
		kept    = make([]*event.StatusEvent, 0, len(existing))
		added   []*event.StatusEvent
		changed bool
	)
	replaced := make(map[string]bool)

	for _, src := range sources {
		result := im.planUnit(src, byUnit[src.Unit])
		report.Units = append(report.Units, result)
		if result.Applied {
			changed = true
			added = append(added, result.Planned...)
			if result.State == StateBootstrapped {
				replaced[src.Unit] = true
			}
		}
	}

	if dryRun || !changed {
		return report, nil
	}

	for _, ev := range existing {
		if replaced[ev.Unit] {
			continue
		}
		kept = append(kept, ev)
	}
	merged := reduce.Order(append(kept, added...))

	if err := im.replaceLog(st, merged); err != nil {
		return report, err
	}

	snap := reduce.Reduce(stream, merged)
	if err := reduce.WriteSnapshot(st.SnapshotPath(), snap); err != nil {
		return report, err
	}
	if res := phase.Resolve(im.cfg, ""); res.Phase >= phase.DualWrite {
		bridgeWarnings, err := legacy.NewBridge(im.root, stream).Refresh(snap)
		report.Warnings = append(report.Warnings, bridgeWarnings...)
		if err != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("log migrated but legacy views not refreshed: %v", err))
		}
	}

	for i := range report.Units {
		if report.Units[i].Applied {
			im.bus.Publish(telemetry.NewMigrationCompletedEvent(
				stream, report.Units[i].Unit, len(report.Units[i].Planned)))
		}
	}
	log.Info("migration finished", "units", len(report.Units), "applied", report.Applied())
	return report, nil
}

// planUnit classifies a unit and reconstructs its chain when the state
// permits acting.
func (im *Importer) planUnit(src UnitSource, existing []*event.StatusEvent) UnitResult {
	result := UnitResult{Unit: src.Unit, State: classify(existing)}
	if result.State == StateLive {
		return result
	}

	chain, warnings := Reconstruct(src)
	result.Warnings = warnings
	result.Planned = chain

	if result.State == StateBootstrapped && chainsEquivalent(existing, chain) {
		// A previous run already wrote this chain; rerun is a no-op.
		return result
	}
	result.Applied = len(chain) > 0 || result.State == StateBootstrapped
	return result
}

// classify determines a unit's migration state from its existing events.
func classify(events []*event.StatusEvent) State {
	if len(events) == 0 {
		return StateNotStarted
	}
	for _, ev := range events {
		if !ev.IsMigration() {
			return StateLive
		}
	}
	return StateBootstrapped
}

// Reconstruct builds the event chain for one unit from its legacy source:
// normalize aliases, collapse consecutive duplicates, pair adjacent entries
// into transitions, gap-fill to the current lane, and attach evidence to a
// final transition into done when an approval is recoverable. Unparseable
// history entries are dropped with a warning.
func Reconstruct(src UnitSource) ([]*event.StatusEvent, []string) {
	var warnings []string

	lanes := []lane.Lane{lane.Planned}
	for _, raw := range src.History {
		l, err := lane.Parse(strings.TrimSpace(raw))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("unit %s: history entry %q is not a known lane", src.Unit, raw))
			continue
		}
		if l != lanes[len(lanes)-1] {
			lanes = append(lanes, l)
		}
	}

	current, err := lane.Parse(strings.TrimSpace(src.Current))
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("unit %s: current lane %q is not a known lane", src.Unit, src.Current))
		return nil, warnings
	}
	if current != lanes[len(lanes)-1] {
		lanes = append(lanes, current)
	}

	steps := len(lanes) - 1
	if steps == 0 {
		return nil, warnings
	}

	// Anchor the last event on the document's update time and step earlier
	// events back one second each, preserving order under the (at, event_id)
	// sort.
	anchor := src.UpdatedAt
	if anchor.IsZero() {
		anchor = time.Now()
	}
	anchor = anchor.UTC()

	events := make([]*event.StatusEvent, 0, steps)
	for i := 0; i < steps; i++ {
		at := anchor.Add(time.Duration(i-steps+1) * time.Second)
		ev := &event.StatusEvent{
			EventID:       event.NewID(at),
			WorkStream:    src.Stream,
			Unit:          src.Unit,
			From:          lanes[i],
			To:            lanes[i+1],
			At:            at,
			Actor:         migrationActor,
			Forced:        true,
			ExecutionMode: event.ModeMigration,
			Reason:        event.MigrationReason,
		}
		if ev.To == lane.Done && src.Approval != nil && src.Approval.Reviewer != "" {
			ev.Evidence = &event.DoneEvidence{Approval: *src.Approval}
		}
		events = append(events, ev)
	}
	return events, warnings
}

// chainsEquivalent reports whether an existing migration chain and a freshly
// reconstructed one describe the same transitions. Event ids and timestamps
// differ across runs; equivalence is the (from, to, evidence) sequence.
func chainsEquivalent(existing, planned []*event.StatusEvent) bool {
	ordered := reduce.Order(existing)
	if len(ordered) != len(planned) {
		return false
	}
	for i := range ordered {
		a, b := ordered[i], planned[i]
		if a.EffectiveFrom() != b.EffectiveFrom() || a.To != b.To {
			return false
		}
		if a.Evidence.Valid() != b.Evidence.Valid() {
			return false
		}
	}
	return true
}

// ListLegacyStreams returns the ids of streams with a legacy work-package
// document tree under root, sorted. A missing specs directory is an empty
// result.
func ListLegacyStreams(root string) ([]string, error) {
	specsDir := filepath.Join(root, legacy.SpecsDirName)
	entries, err := os.ReadDir(specsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read specs directory %s", specsDir)
	}
	var streams []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		wpDir := filepath.Join(specsDir, entry.Name(), "work-packages")
		if info, err := os.Stat(wpDir); err == nil && info.IsDir() {
			streams = append(streams, entry.Name())
		}
	}
	sort.Strings(streams)
	return streams, nil
}

// loadSources scans the stream's work-package documents for migration
// sources. Documents without readable front matter are skipped with a
// warning.
func (im *Importer) loadSources(stream string) ([]UnitSource, []string, error) {
	dir := filepath.Join(im.root, legacy.SpecsDirName, stream, "work-packages")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, errors.Wrapf(err, "read work-package directory %s", dir)
	}

	var (
		sources  []UnitSource
		warnings []string
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		unit := strings.TrimSuffix(entry.Name(), ".md")
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("unit %s: %v", unit, err))
			continue
		}
		src, err := legacy.ReadMigrationSource(content)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("unit %s: %v", unit, err))
			continue
		}
		us := UnitSource{
			Stream:  stream,
			Unit:    unit,
			History: src.History,
			Current: src.Lane,
		}
		if src.Reviewer != "" {
			us.Approval = &event.ReviewerApproval{Reviewer: src.Reviewer, Verdict: src.Verdict}
		}
		sources = append(sources, us)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Unit < sources[j].Unit })
	return sources, warnings, nil
}

// replaceLog rewrites the stream's log with the merged event set, keeping a
// backup of the previous content beside it.
func (im *Importer) replaceLog(st *store.Store, events []*event.StatusEvent) error {
	logPath := st.LogPath()
	if prev, err := os.ReadFile(logPath); err == nil {
		if err := store.WriteAtomic(logPath+".bak", prev, 0644); err != nil {
			return errors.Wrap(err, "back up event log")
		}
	} else if !os.IsNotExist(err) {
		return errors.NewStoreError("read event log", err).WithPath(logPath)
	}

	var buf strings.Builder
	for _, ev := range events {
		line, err := event.Marshal(ev)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return store.WriteAtomic(logPath, []byte(buf.String()), 0644)
}
