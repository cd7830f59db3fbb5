// Package reduce materializes authoritative per-unit state from an unordered
// multiset of status events. Reduction is a pure function: identical log
// content produces byte-identical snapshot output on every machine, which is
// what lets independently computed snapshots merge without divergence.
package reduce

import (
	"sort"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/event"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
)

// Reduce folds events into a Snapshot for the given work stream.
//
// Steps, in order:
//  1. dedupe by event_id, first occurrence wins
//  2. sort by (at, event_id); both are comparable even under timestamp
//     collisions, giving a total order
//  3. fold sequentially per unit, tracking the current lane
//  4. on a fork (two events departing the same prior lane of one unit),
//     apply rollback precedence: a reviewer rollback always beats concurrent
//     forward progress from the same fork point, regardless of timestamps
func Reduce(stream string, events []*event.StatusEvent) *Snapshot {
	ordered := Order(events)

	units := make(map[string]*unitFold)
	var unitOrder []string
	for _, ev := range ordered {
		fold, ok := units[ev.Unit]
		if !ok {
			fold = &unitFold{current: lane.Planned}
			units[ev.Unit] = fold
			unitOrder = append(unitOrder, ev.Unit)
		}
		fold.apply(ev)
	}

	snap := &Snapshot{
		WorkStream: stream,
		EventCount: len(ordered),
	}
	sort.Strings(unitOrder)
	for _, unit := range unitOrder {
		fold := units[unit]
		state := UnitState{
			Unit:             unit,
			Lane:             fold.current,
			LastEventID:      fold.last.EventID,
			LastTransitionAt: fold.last.At.UTC(),
			LastActor:        fold.last.Actor,
			History:          fold.history,
		}
		snap.Units = append(snap.Units, state)
		if state.LastTransitionAt.After(snap.GeneratedAt) {
			snap.GeneratedAt = state.LastTransitionAt
		}
	}
	return snap
}

// Order dedupes events by id (first occurrence wins) and sorts them into the
// canonical (at, event_id) total order. The merge resolver reuses this when
// combining branch logs.
func Order(events []*event.StatusEvent) []*event.StatusEvent {
	seen := make(map[string]bool, len(events))
	deduped := make([]*event.StatusEvent, 0, len(events))
	for _, ev := range events {
		if seen[ev.EventID] {
			continue
		}
		seen[ev.EventID] = true
		deduped = append(deduped, ev)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		a, b := deduped[i], deduped[j]
		if !a.At.Equal(b.At) {
			return a.At.Before(b.At)
		}
		return a.EventID < b.EventID
	})
	return deduped
}

// unitFold tracks one unit's state through the sequential fold.
type unitFold struct {
	current lane.Lane
	last    *event.StatusEvent
	history []HistoryEntry
}

// apply folds one event. Events are already in total order, so conflict
// handling reduces to comparing the incoming event against the last applied
// one: when both depart the same prior lane, the pair is a fork from a
// branch merge and rollback precedence decides the winner.
func (f *unitFold) apply(ev *event.StatusEvent) {
	from := ev.EffectiveFrom()

	if f.last != nil && from != f.current && from == f.last.EffectiveFrom() {
		// Fork: ev and the last applied event both depart the same lane.
		switch {
		case f.last.IsRollback() && !ev.IsRollback():
			// A reviewer rollback already won this fork; concurrent
			// forward progress from the stale branch is superseded.
			f.history = append(f.history, newHistoryEntry(ev, true))
			return
		case ev.IsRollback() && !f.last.IsRollback():
			// The rollback wins even though it sorted later.
			f.history[len(f.history)-1].Superseded = true
		}
	}

	f.history = append(f.history, newHistoryEntry(ev, false))
	f.current = ev.To
	f.last = ev
}

func newHistoryEntry(ev *event.StatusEvent, superseded bool) HistoryEntry {
	return HistoryEntry{
		EventID:    ev.EventID,
		From:       ev.EffectiveFrom(),
		To:         ev.To,
		At:         ev.At.UTC(),
		Actor:      ev.Actor,
		Forced:     ev.Forced,
		ReviewRef:  ev.ReviewRef,
		Superseded: superseded,
	}
}
