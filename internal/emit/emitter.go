// Package emit is the sole entry point for recording new status events. It
// sequences validation, append, materialization, legacy refresh, and
// telemetry as one crash-consistent pipeline: each step runs only if the
// prior one succeeded, and no step after the append can invalidate the
// durably recorded event.
package emit

import (
	"fmt"
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

// Request describes one transition to record. Lane values are raw strings
// so alias resolution happens here, at the ingress boundary.
type Request struct {
	WorkStream string
	Unit       string
	ToLane     string
	Actor      string
	Mode       event.ExecutionMode
	Force      bool
	Reason     string
	ReviewRef  string
	Evidence   *event.DoneEvidence
	// At overrides the transition time; zero means now. Tests and the
	// importer use this, interactive emissions never do.
	At time.Time
}

// Result is the structured outcome of an operation. Expected business
// failures land in Errs with OK=false; post-append degradations (failed
// materialization or legacy refresh) are warnings on an OK result because
// the event is durably recorded and the derived state is re-runnable.
type Result struct {
	OK       bool
	Event    *event.StatusEvent
	Warnings []string
	Errs     []error
}

// fail returns a failed Result carrying errs.
func fail(errs ...error) Result {
	return Result{OK: false, Errs: errs}
}

// Emitter wires the store, reducer, phase resolver, legacy bridge, and
// telemetry bus for one repository root.
type Emitter struct {
	root string
	cfg  *config.Config
	log  *logging.Logger
	bus  *telemetry.Bus
}

// New creates an Emitter rooted at the repository root.
func New(root string, cfg *config.Config, log *logging.Logger, bus *telemetry.Bus) *Emitter {
	if log == nil {
		log = logging.NopLogger()
	}
	if bus == nil {
		bus = telemetry.NewBus()
	}
	return &Emitter{root: root, cfg: cfg, log: log, bus: bus}
}

// Bus returns the telemetry bus so callers can attach subscribers.
func (e *Emitter) Bus() *telemetry.Bus { return e.bus }

// Emit validates and records one transition, then brings every derived view
// up to date. Validation failures reject the request before anything is
// written; once the append succeeds the emission is considered recorded and
// later step failures degrade to warnings.
func (e *Emitter) Emit(req Request) Result {
	log := e.log.WithWorkStream(req.WorkStream).WithUnit(req.Unit)

	// Validate: resolve aliases, establish the from lane, run guards.
	to, err := lane.Parse(req.ToLane)
	if err != nil {
		return fail(errors.NewValidationError(err.Error()).WithField("to_lane").WithValue(req.ToLane))
	}
	if req.Actor == "" {
		return fail(errors.NewValidationError("actor is required").WithField("actor"))
	}
	if req.Force && req.Reason == "" {
		return fail(errors.NewValidationError("forced transition requires a reason").
			WithField("reason").WithCause(errors.ErrMalformedForce))
	}

	st := store.New(e.root, req.WorkStream)
	events, recErrs, err := st.ReadRaw()
	if err != nil {
		return fail(err)
	}
	var warnings []string
	for _, recErr := range recErrs {
		warnings = append(warnings, fmt.Sprintf("corrupt log record ignored: %v", recErr))
	}

	snap := reduce.Reduce(req.WorkStream, events)
	var from lane.Lane
	firstEvent := true
	if unit := snap.Unit(req.Unit); unit != nil {
		from = unit.Lane
		firstEvent = false
	} else {
		from = lane.Planned
	}

	if err := lane.Check(from, to, lane.GuardInput{
		Forced:      req.Force,
		HasEvidence: req.Evidence.Valid(),
		Reason:      req.Reason,
		Actor:       req.Actor,
	}); err != nil {
		return fail(err)
	}

	// Append: the one durable write of the pipeline.
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	mode := req.Mode
	if mode == "" {
		mode = event.ModeInteractive
	}

	ev := &event.StatusEvent{
		EventID:       event.NewID(at),
		WorkStream:    req.WorkStream,
		Unit:          req.Unit,
		To:            to,
		At:            at,
		Actor:         req.Actor,
		Forced:        req.Force,
		ExecutionMode: mode,
		Reason:        req.Reason,
		ReviewRef:     req.ReviewRef,
		Evidence:      req.Evidence,
	}
	if !firstEvent {
		ev.From = from
	}

	if err := st.Append(ev); err != nil {
		return fail(err)
	}
	log.Info("status event recorded",
		"event_id", ev.EventID, "from", ev.EffectiveFrom().String(), "to", ev.To.String(),
		"forced", ev.Forced)

	result := Result{OK: true, Event: ev, Warnings: warnings}

	// Materialize: a failure here leaves the event recorded and the
	// snapshot rebuildable by re-running materialization.
	events = append(events, ev)
	fresh := reduce.Reduce(req.WorkStream, events)
	if err := reduce.WriteSnapshot(st.SnapshotPath(), fresh); err != nil {
		log.Error("materialization failed after append", "error", err)
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("event recorded but snapshot not materialized (re-run materialize): %v", err))
		return result
	}

	// Legacy refresh: never affects the canonical log.
	res := phase.Resolve(e.cfg, phase.UnitGroup(req.Unit))
	if res.Phase >= phase.DualWrite {
		bridgeWarnings, err := legacy.NewBridge(e.root, req.WorkStream).Refresh(fresh)
		result.Warnings = append(result.Warnings, bridgeWarnings...)
		if err != nil {
			log.Error("legacy refresh failed", "error", err)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("event recorded but legacy views not refreshed: %v", err))
		}
	}

	// Telemetry: best-effort, swallowed by the bus and collector.
	e.bus.Publish(telemetry.NewStatusChangedEvent(
		req.WorkStream, req.Unit, string(ev.From), string(ev.To), ev.EventID, ev.Actor, ev.Forced))
	e.bus.Publish(telemetry.NewSnapshotMaterializedEvent(
		req.WorkStream, fresh.EventCount, len(fresh.Units)))

	return result
}

// Materialize rebuilds the snapshot (and, in dual-write or later, the legacy
// views) for a work stream from its full log. Always safe to re-run.
func (e *Emitter) Materialize(stream string) Result {
	st := store.New(e.root, stream)
	events, recErrs, err := st.ReadRaw()
	if err != nil {
		return fail(err)
	}

	var warnings []string
	for _, recErr := range recErrs {
		warnings = append(warnings, fmt.Sprintf("corrupt log record ignored: %v", recErr))
	}

	snap := reduce.Reduce(stream, events)
	if err := reduce.WriteSnapshot(st.SnapshotPath(), snap); err != nil {
		return fail(err)
	}

	result := Result{OK: true, Warnings: warnings}
	if res := phase.Resolve(e.cfg, ""); res.Phase >= phase.DualWrite {
		bridgeWarnings, err := legacy.NewBridge(e.root, stream).Refresh(snap)
		result.Warnings = append(result.Warnings, bridgeWarnings...)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("snapshot materialized but legacy views not refreshed: %v", err))
		}
	}

	e.bus.Publish(telemetry.NewSnapshotMaterializedEvent(stream, snap.EventCount, len(snap.Units)))
	return result
}
