package lane

import (
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/errors"
)

// transition is a directed (from, to) lane pair.
type transition struct {
	from Lane
	to   Lane
}

// legalPairs is the fixed 16-pair table of legal lane transitions: forward
// progress, rejection/rollback, block/unblock, and cancellation. Anything
// not listed requires forced=true with a recorded actor and reason.
var legalPairs = []transition{
	// Forward progress
	{Planned, Claimed},
	{Planned, InProgress},
	{Claimed, InProgress},
	{InProgress, ForReview},
	{ForReview, Done},
	// Rejection / rollback
	{ForReview, InProgress},
	{Done, ForReview},
	{Claimed, Planned},
	// Block / unblock
	{InProgress, Blocked},
	{ForReview, Blocked},
	{Blocked, InProgress},
	// Cancellation and revival
	{Planned, Canceled},
	{Claimed, Canceled},
	{InProgress, Canceled},
	{Blocked, Canceled},
	{Canceled, Planned},
}

var legalSet = func() map[transition]bool {
	m := make(map[transition]bool, len(legalPairs))
	for _, t := range legalPairs {
		m[t] = true
	}
	return m
}()

// CanTransition reports whether (from, to) is in the legal-transition table.
// It does not run guards and does not consider force overrides.
func CanTransition(from, to Lane) bool {
	return legalSet[transition{from: from, to: to}]
}

// GuardInput carries the contextual facts the transition guards need.
// Lanes must already be canonical; Check does not resolve aliases.
type GuardInput struct {
	// Forced marks an explicit operator override. It bypasses table
	// membership but not the guard audit requirements below.
	Forced bool
	// HasEvidence is true when the event carries completion evidence
	// (reviewer approval at minimum).
	HasEvidence bool
	// Reason is the free-text justification attached to the event.
	Reason string
	// Actor identifies who is making the transition.
	Actor string
}

// Check validates a single transition against the table and its guards.
// Failures name the violated rule so callers can surface them verbatim.
//
// Rules, in order:
//   - table: (from, to) must be a legal pair unless in.Forced
//   - force-audit: forced transitions must record an actor and a reason
//   - evidence: for_review -> done requires evidence unless forced
//   - cancel-reason: any transition into canceled requires a reason
func Check(from, to Lane, in GuardInput) error {
	if in.Forced {
		if in.Actor == "" {
			return errors.NewTransitionError(from.String(), to.String(), "force-audit",
				"forced transition requires an actor")
		}
		if in.Reason == "" {
			return errors.NewTransitionError(from.String(), to.String(), "force-audit",
				"forced transition requires a reason")
		}
	} else if !CanTransition(from, to) {
		return errors.NewTransitionError(from.String(), to.String(), "table",
			"transition is not in the legal-transition table")
	}

	if to == Done && !in.Forced && !in.HasEvidence {
		return errors.NewTransitionError(from.String(), to.String(), "evidence",
			"transition to done requires completion evidence (or forced=true)")
	}
	if to == Canceled && in.Reason == "" {
		return errors.NewTransitionError(from.String(), to.String(), "cancel-reason",
			"cancellation requires a reason")
	}
	return nil
}
