// Package validate audits recorded status state without modifying it. It
// checks every log record against the schema, replays the log against the
// legal-transition table, and compares the derived views (snapshot, legacy
// documents) against a fresh reduction. Findings are reported with a rule
// name and a severity; nothing is ever auto-corrected.
package validate

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/errors"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/event"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/legacy"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/logging"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/phase"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/reduce"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
)

// Rule names for findings.
const (
	RuleSchema       = "schema"        // unparseable or structurally invalid record
	RuleAlias        = "alias"         // persisted lane alias in the log
	RuleTransition   = "transition"    // transition outside the legal table, not forced
	RuleForced       = "forced"        // forced transition, reported for audit
	RuleEvidence     = "evidence"      // done without completion evidence
	RuleCancelReason = "cancel-reason" // canceled without a reason
	RuleContinuity   = "continuity"    // event departs a lane the unit was not in
	RuleSnapshot     = "snapshot"      // persisted snapshot disagrees with a fresh reduction
	RuleLegacyLane   = "legacy-lane"   // front-matter lane disagrees with the snapshot
	RuleLegacyAlias  = "legacy-alias"  // front-matter carries an alias lane value
	RuleLegacyTable  = "legacy-table"  // tasks-document section disagrees with the snapshot
)

// Finding is one audit observation.
type Finding struct {
	Severity errors.Severity
	Rule     string
	Unit     string
	EventID  string
	// Line is the 1-based log line for record-level findings, 0 otherwise.
	Line    int
	Message string
}

// Report collects the findings for one work stream.
type Report struct {
	WorkStream string
	Phase      phase.Resolution
	Findings   []Finding
}

// Errors returns the number of error-or-worse findings.
func (r *Report) Errors() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity >= errors.SeverityError {
			n++
		}
	}
	return n
}

// Warnings returns the number of warning findings.
func (r *Report) Warnings() int {
	return len(r.Findings) - r.Errors()
}

// OK reports whether the stream passed validation (warnings allowed).
func (r *Report) OK() bool { return r.Errors() == 0 }

// Validator audits the status state of a repository.
type Validator struct {
	root string
	cfg  *config.Config
	log  *logging.Logger
}

// New creates a Validator rooted at the repository root.
func New(root string, cfg *config.Config, log *logging.Logger) *Validator {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Validator{root: root, cfg: cfg, log: log}
}

// All validates every work stream with recorded status state.
func (v *Validator) All() ([]*Report, error) {
	streams, err := store.ListStreams(v.root)
	if err != nil {
		return nil, err
	}
	reports := make([]*Report, 0, len(streams))
	for _, stream := range streams {
		report, err := v.Stream(stream)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Stream validates one work stream: record schema, transition replay, and
// derived-view consistency. Only an I/O failure on the log itself is an
// error; everything found in the data becomes a Finding.
func (v *Validator) Stream(stream string) (*Report, error) {
	report := &Report{WorkStream: stream}

	st := store.New(v.root, stream)
	events, recErrs, err := st.ReadRaw()
	if err != nil {
		return nil, err
	}

	for _, recErr := range recErrs {
		rule := RuleSchema
		if errors.Is(recErr.Err, errors.ErrPersistedAlias) {
			rule = RuleAlias
		}
		report.Findings = append(report.Findings, Finding{
			Severity: errors.SeverityError,
			Rule:     rule,
			Line:     recErr.Line,
			Message:  recErr.Err.Error(),
		})
	}

	v.replay(report, events)

	fresh := reduce.Reduce(stream, events)
	// Per-stream phase resolution uses the repository tier; group overrides
	// only affect individual emissions.
	report.Phase = phase.Resolve(v.cfg, "")
	driftSeverity := errors.SeverityWarning
	if report.Phase.Phase >= phase.ReadCutover {
		driftSeverity = errors.SeverityError
	}

	v.checkSnapshot(report, st, fresh, driftSeverity)
	if report.Phase.Phase >= phase.DualWrite {
		v.checkLegacy(report, stream, fresh, driftSeverity)
	}

	v.log.WithWorkStream(stream).Info("validation finished",
		"findings", len(report.Findings), "errors", report.Errors())
	return report, nil
}

// replay walks the ordered log per unit and applies the transition rules to
// each event. Fork resolution mirrors the reducer so that a merge-produced
// fork is a conflict decision, not a continuity finding.
func (v *Validator) replay(report *Report, events []*event.StatusEvent) {
	type unitState struct {
		current lane.Lane
		last    *event.StatusEvent
	}
	units := make(map[string]*unitState)

	for _, ev := range reduce.Order(events) {
		state, ok := units[ev.Unit]
		if !ok {
			state = &unitState{current: lane.Planned}
			units[ev.Unit] = state
		}
		from := ev.EffectiveFrom()

		if ev.Forced {
			report.Findings = append(report.Findings, Finding{
				Severity: errors.SeverityWarning,
				Rule:     RuleForced,
				Unit:     ev.Unit,
				EventID:  ev.EventID,
				Message: fmt.Sprintf("forced transition %s -> %s by %s: %s",
					from, ev.To, ev.Actor, ev.Reason),
			})
		} else if !lane.CanTransition(from, ev.To) {
			report.Findings = append(report.Findings, Finding{
				Severity: errors.SeverityError,
				Rule:     RuleTransition,
				Unit:     ev.Unit,
				EventID:  ev.EventID,
				Message:  fmt.Sprintf("transition %s -> %s is not in the legal-transition table", from, ev.To),
			})
		}

		if ev.To == lane.Done && !ev.Forced && !ev.Evidence.Valid() {
			report.Findings = append(report.Findings, Finding{
				Severity: errors.SeverityError,
				Rule:     RuleEvidence,
				Unit:     ev.Unit,
				EventID:  ev.EventID,
				Message:  "transition to done recorded without completion evidence",
			})
		}
		if ev.To == lane.Canceled && ev.Reason == "" {
			report.Findings = append(report.Findings, Finding{
				Severity: errors.SeverityError,
				Rule:     RuleCancelReason,
				Unit:     ev.Unit,
				EventID:  ev.EventID,
				Message:  "cancellation recorded without a reason",
			})
		}

		// Fold the event the way the reducer does.
		if state.last != nil && from != state.current && from == state.last.EffectiveFrom() {
			if state.last.IsRollback() && !ev.IsRollback() {
				// Superseded by an earlier rollback; not a continuity gap.
				continue
			}
		} else if state.last != nil && from != state.current {
			report.Findings = append(report.Findings, Finding{
				Severity: errors.SeverityWarning,
				Rule:     RuleContinuity,
				Unit:     ev.Unit,
				EventID:  ev.EventID,
				Message: fmt.Sprintf("event departs %s but the unit was in %s",
					from, state.current),
			})
		}
		state.current = ev.To
		state.last = ev
	}
}

// checkSnapshot compares the persisted snapshot bytes against a fresh
// reduction of the log.
func (v *Validator) checkSnapshot(report *Report, st *store.Store, fresh *reduce.Snapshot, severity errors.Severity) {
	persisted, err := os.ReadFile(st.SnapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			if fresh.EventCount > 0 {
				report.Findings = append(report.Findings, Finding{
					Severity: severity,
					Rule:     RuleSnapshot,
					Message:  "log has events but no snapshot is materialized",
				})
			}
			return
		}
		report.Findings = append(report.Findings, Finding{
			Severity: errors.SeverityError,
			Rule:     RuleSnapshot,
			Message:  fmt.Sprintf("read snapshot: %v", err),
		})
		return
	}

	expected, err := fresh.Encode()
	if err != nil {
		report.Findings = append(report.Findings, Finding{
			Severity: errors.SeverityError,
			Rule:     RuleSnapshot,
			Message:  fmt.Sprintf("encode reduction: %v", err),
		})
		return
	}
	if !bytes.Equal(persisted, expected) {
		report.Findings = append(report.Findings, Finding{
			Severity: severity,
			Rule:     RuleSnapshot,
			Message:  "persisted snapshot does not match a fresh reduction of the log",
		})
	}
}

// checkLegacy compares the legacy documents against the snapshot: per-unit
// front-matter lanes and the tasks-document status section.
func (v *Validator) checkLegacy(report *Report, stream string, fresh *reduce.Snapshot, severity errors.Severity) {
	for _, unit := range fresh.Units {
		content, err := os.ReadFile(legacy.DocPath(v.root, stream, unit.Unit))
		if err != nil {
			// Missing documents are a bridge warning, not a validation finding.
			continue
		}
		raw, err := legacy.ReadLane(content)
		if err != nil {
			report.Findings = append(report.Findings, Finding{
				Severity: errors.SeverityWarning,
				Rule:     RuleLegacyLane,
				Unit:     unit.Unit,
				Message:  fmt.Sprintf("unreadable front matter: %v", err),
			})
			continue
		}
		if lane.IsAlias(raw) {
			report.Findings = append(report.Findings, Finding{
				Severity: errors.SeverityWarning,
				Rule:     RuleLegacyAlias,
				Unit:     unit.Unit,
				Message:  fmt.Sprintf("front-matter lane %q is a legacy alias", raw),
			})
		}
		resolved, err := lane.Parse(raw)
		if err != nil {
			report.Findings = append(report.Findings, Finding{
				Severity: severity,
				Rule:     RuleLegacyLane,
				Unit:     unit.Unit,
				Message:  fmt.Sprintf("front-matter lane %q is not a known lane", raw),
			})
			continue
		}
		if resolved != unit.Lane {
			report.Findings = append(report.Findings, Finding{
				Severity: severity,
				Rule:     RuleLegacyLane,
				Unit:     unit.Unit,
				Message: fmt.Sprintf("front-matter lane %s disagrees with snapshot lane %s",
					resolved, unit.Lane),
			})
		}
	}

	if drifted, detail := legacy.SectionDrift(v.root, stream, fresh); drifted {
		report.Findings = append(report.Findings, Finding{
			Severity: severity,
			Rule:     RuleLegacyTable,
			Message:  detail,
		})
	}
}
