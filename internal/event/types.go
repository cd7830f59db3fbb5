// Package event defines the immutable status-event record, its completion
// evidence, and the stable wire codec used by the append-only log. Events are
// facts: they are never mutated or deleted, and corrections are recorded as
// new events.
package event

import (
	"time"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/errors"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
)

// ExecutionMode records how a transition was produced.
type ExecutionMode string

const (
	// ModeInteractive is a transition typed by a human at the CLI.
	ModeInteractive ExecutionMode = "interactive"
	// ModeAgent is a transition emitted by an automated agent.
	ModeAgent ExecutionMode = "agent"
	// ModeMigration marks events reconstructed by the historical importer.
	ModeMigration ExecutionMode = "migration"
)

// MigrationReason is the fixed reason string the historical importer stamps
// on reconstructed events. Its presence (with ModeMigration) is the
// migration marker the importer uses for idempotence detection.
const MigrationReason = "historical migration"

// ReviewerApproval is the reviewer sign-off required for a unit to reach done.
type ReviewerApproval struct {
	Reviewer  string `json:"reviewer"`
	Verdict   string `json:"verdict"`
	Reference string `json:"reference,omitempty"`
}

// VerificationResult captures the outcome of an automated verification run
// attached to completion evidence.
type VerificationResult struct {
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DoneEvidence is required (or explicitly waived via forced=true) for any
// transition into the done lane.
type DoneEvidence struct {
	Approval     ReviewerApproval    `json:"approval"`
	Commits      []string            `json:"commits,omitempty"`
	Verification *VerificationResult `json:"verification,omitempty"`
}

// Valid reports whether the evidence carries the minimum reviewer approval.
func (e *DoneEvidence) Valid() bool {
	return e != nil && e.Approval.Reviewer != "" && e.Approval.Verdict != ""
}

// StatusEvent is one immutable lifecycle fact for a work package. Field
// order is the wire order; names are stable across tool versions.
type StatusEvent struct {
	// EventID is unique across the log and lexically sortable.
	EventID    string `json:"event_id"`
	WorkStream string `json:"work_stream"`
	Unit       string `json:"unit"`
	// From is empty only for a unit's first event (implicit planned start).
	From lane.Lane `json:"from,omitempty"`
	To   lane.Lane `json:"to"`
	// At is the transition time in UTC. Ordering ties are broken by EventID.
	At            time.Time     `json:"at"`
	Actor         string        `json:"actor"`
	Forced        bool          `json:"forced,omitempty"`
	ExecutionMode ExecutionMode `json:"execution_mode"`
	Reason        string        `json:"reason,omitempty"`
	// ReviewRef links the event to the review that caused it. A set
	// ReviewRef on a for_review -> in_progress event marks a reviewer
	// rollback, which wins conflict resolution over concurrent forward
	// progress.
	ReviewRef string        `json:"review_ref,omitempty"`
	Evidence  *DoneEvidence `json:"evidence,omitempty"`
}

// IsRollback reports whether the event is a reviewer rollback: a
// for_review -> in_progress transition carrying a review reference.
func (e *StatusEvent) IsRollback() bool {
	return e.ReviewRef != "" && e.From == lane.ForReview && e.To == lane.InProgress
}

// IsMigration reports whether the event was reconstructed by the historical
// importer.
func (e *StatusEvent) IsMigration() bool {
	return e.ExecutionMode == ModeMigration && e.Reason == MigrationReason
}

// Validate checks structural conformance of a single event independent of
// any log context: required fields, canonical lanes, no persisted aliases.
func (e *StatusEvent) Validate() error {
	if e.EventID == "" {
		return errors.NewValidationError("event is missing an event_id").WithField("event_id")
	}
	if e.WorkStream == "" {
		return errors.NewValidationError("event is missing a work_stream").WithField("work_stream")
	}
	if e.Unit == "" {
		return errors.NewValidationError("event is missing a unit").WithField("unit")
	}
	if e.At.IsZero() {
		return errors.NewValidationError("event is missing a timestamp").WithField("at")
	}
	if e.Actor == "" {
		return errors.NewValidationError("event is missing an actor").WithField("actor")
	}
	if lane.IsAlias(string(e.To)) || (e.From != "" && lane.IsAlias(string(e.From))) {
		return errors.NewValidationError("persisted lane alias").
			WithField("lane").WithCause(errors.ErrPersistedAlias)
	}
	if !e.To.IsCanonical() {
		return errors.NewValidationError("unknown to lane").
			WithField("to").WithValue(string(e.To))
	}
	if e.From != "" && !e.From.IsCanonical() {
		return errors.NewValidationError("unknown from lane").
			WithField("from").WithValue(string(e.From))
	}
	return nil
}

// EffectiveFrom returns the lane the event transitions out of, treating a
// missing From as the implicit planned start.
func (e *StatusEvent) EffectiveFrom() lane.Lane {
	if e.From == "" {
		return lane.Planned
	}
	return e.From
}
