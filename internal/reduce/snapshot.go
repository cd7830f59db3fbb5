package reduce

import (
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/errors"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
)

// HistoryEntry is one transition in a unit's ordered history.
type HistoryEntry struct {
	EventID   string    `json:"event_id"`
	From      lane.Lane `json:"from"`
	To        lane.Lane `json:"to"`
	At        time.Time `json:"at"`
	Actor     string    `json:"actor"`
	Forced    bool      `json:"forced,omitempty"`
	ReviewRef string    `json:"review_ref,omitempty"`
	// Superseded marks an event that lost rollback precedence at a fork.
	// The fact stays in the history; it just no longer determines the lane.
	Superseded bool `json:"superseded,omitempty"`
}

// UnitState is the materialized state of one work package.
type UnitState struct {
	Unit             string         `json:"unit"`
	Lane             lane.Lane      `json:"lane"`
	LastEventID      string         `json:"last_event_id"`
	LastTransitionAt time.Time      `json:"last_transition_at"`
	LastActor        string         `json:"last_actor"`
	History          []HistoryEntry `json:"history,omitempty"`
}

// Snapshot is the full materialized reduction of one work stream's log.
// It is always rebuilt in full, never patched incrementally.
type Snapshot struct {
	WorkStream string `json:"work_stream"`
	// GeneratedAt is the newest event timestamp in the reduction rather
	// than wall-clock time, keeping snapshot bytes a pure function of log
	// content.
	GeneratedAt time.Time   `json:"generated_at"`
	EventCount  int         `json:"event_count"`
	Units       []UnitState `json:"units"`
}

// Unit returns the state for the given unit id, or nil if the unit has no
// events (implicitly planned).
func (s *Snapshot) Unit(id string) *UnitState {
	for i := range s.Units {
		if s.Units[i].Unit == id {
			return &s.Units[i]
		}
	}
	return nil
}

// Encode serializes the snapshot with deterministic key order and
// formatting. Key order is struct declaration order, units are sorted by id
// during reduction, and HTML escaping is disabled; two independent
// reductions of the same log content encode to identical bytes.
func (s *Snapshot) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, errors.Wrap(err, "encode snapshot")
	}
	return buf.Bytes(), nil
}

// WriteSnapshot encodes the snapshot and writes it via temp-file-then-rename
// so readers never observe a partial file.
func WriteSnapshot(path string, s *Snapshot) error {
	data, err := s.Encode()
	if err != nil {
		return err
	}
	if err := store.WriteAtomic(path, data, 0644); err != nil {
		return errors.NewStoreError("write snapshot", err).
			WithWorkStream(s.WorkStream).WithPath(path)
	}
	return nil
}

// LoadSnapshot reads a previously materialized snapshot. A missing file
// returns ErrNotFound; the caller decides whether that is an error.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("snapshot", path)
		}
		return nil, errors.NewStoreError("read snapshot", err).WithPath(path)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.NewStoreError("parse snapshot", err).WithPath(path)
	}
	return &snap, nil
}
