// Package lane defines the canonical work-package lanes, the legal-transition
// table, and the guard checks that gate individual transitions. Lanes model
// the execution state of a work package as it moves from planning to
// completion across branches and worktrees.
package lane

import (
	"fmt"
	"strings"
)

// Lane is one of the seven canonical execution states of a work package.
type Lane string

const (
	Planned    Lane = "planned"
	Claimed    Lane = "claimed"
	InProgress Lane = "in_progress"
	ForReview  Lane = "for_review"
	Done       Lane = "done"
	Blocked    Lane = "blocked"
	Canceled   Lane = "canceled"
)

// aliasDoing is the legacy spelling for InProgress. It is accepted at every
// external boundary and resolved before persistence; a persisted "doing"
// value is a data-integrity bug reported by the validator.
const aliasDoing = "doing"

// All returns the canonical lanes in their fixed display order.
func All() []Lane {
	return []Lane{Planned, Claimed, InProgress, ForReview, Done, Blocked, Canceled}
}

// IsCanonical reports whether l is one of the seven canonical lanes.
// Aliases are not canonical; resolve them with Parse first.
func (l Lane) IsCanonical() bool {
	switch l {
	case Planned, Claimed, InProgress, ForReview, Done, Blocked, Canceled:
		return true
	}
	return false
}

// String returns the persisted spelling of the lane.
func (l Lane) String() string { return string(l) }

// Parse resolves a raw lane value from an external boundary (CLI flag, legacy
// document, imported history) into a canonical Lane. The "doing" alias maps
// to InProgress. Parsing is the only place alias resolution happens; the
// transition checks below operate on canonical lanes exclusively.
func Parse(raw string) (Lane, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == aliasDoing {
		return InProgress, nil
	}
	l := Lane(normalized)
	if !l.IsCanonical() {
		return "", fmt.Errorf("unknown lane %q (valid: %s)", raw, joinLanes(All()))
	}
	return l, nil
}

// IsAlias reports whether raw is a recognized legacy alias rather than a
// canonical lane. Used by the validator to flag persisted aliases.
func IsAlias(raw string) bool {
	return strings.ToLower(strings.TrimSpace(raw)) == aliasDoing
}

func joinLanes(lanes []Lane) string {
	parts := make([]string, len(lanes))
	for i, l := range lanes {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}
