// Package merge reconciles divergent copies of a work stream's event log.
// Because the log is append-only and events are immutable facts, merging is
// a set union: combine both sides, drop duplicate event ids, and re-emit in
// the canonical total order. No event is ever discarded or rewritten; forks
// introduced by concurrent branches are decided later, deterministically, by
// the reducer's rollback precedence.
package merge

import (
	"bytes"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/event"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/reduce"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
)

// Report summarizes one merge resolution.
type Report struct {
	// Total is the number of events in the merged log.
	Total int
	// Duplicates is the number of events present on both sides (or repeated
	// within one side) and emitted once.
	Duplicates int
	// Corrupt is the number of unparseable lines dropped from the inputs.
	Corrupt int
	// CorruptLines carries the per-line details for Corrupt.
	CorruptLines []*store.RecordError
	// Rollbacks is the number of fork decisions where a reviewer rollback
	// superseded concurrent forward progress.
	Rollbacks int
}

// Resolve merges two versions of a stream's event log and returns the merged
// log content. The result is deterministic: Resolve(a, b) and Resolve(b, a)
// produce byte-identical output. Corrupt lines on either side are dropped
// from the merged log and reported, keeping the output fully parseable.
func Resolve(stream string, ours, theirs []byte) ([]byte, *Report, error) {
	report := &Report{}

	ourEvents, ourErrs := store.DecodeLog(ours)
	theirEvents, theirErrs := store.DecodeLog(theirs)
	report.CorruptLines = append(report.CorruptLines, ourErrs...)
	report.CorruptLines = append(report.CorruptLines, theirErrs...)
	report.Corrupt = len(report.CorruptLines)

	combined := make([]*event.StatusEvent, 0, len(ourEvents)+len(theirEvents))
	combined = append(combined, ourEvents...)
	combined = append(combined, theirEvents...)

	ordered := reduce.Order(combined)
	report.Total = len(ordered)
	report.Duplicates = len(combined) - len(ordered)

	// Re-reduce the merged log to count fork decisions. The snapshot itself
	// is discarded; the caller rematerializes from the merged file.
	snap := reduce.Reduce(stream, ordered)
	for _, unit := range snap.Units {
		for _, entry := range unit.History {
			if entry.Superseded {
				report.Rollbacks++
			}
		}
	}

	var buf bytes.Buffer
	for _, ev := range ordered {
		line, err := event.Marshal(ev)
		if err != nil {
			return nil, report, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), report, nil
}
