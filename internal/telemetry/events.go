// Package telemetry provides the best-effort status fan-out: an in-process
// pub-sub bus of typed events plus a collector subscriber that forwards
// payloads to an external endpoint. Everything here is decoupled from the
// emission path; a failed or slow collector never surfaces to the caller of
// an otherwise-successful emission.
package telemetry

import "time"

// Event is the interface that all telemetry events implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g. "status.changed").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// StatusChangedEvent is published after every successfully appended status
// event.
type StatusChangedEvent struct {
	baseEvent
	WorkStream string // Owning work stream
	Unit       string // Work package that moved
	From       string // Lane departed (empty for a first event)
	To         string // Lane entered
	EventID    string // Canonical log event id
	Actor      string // Who made the transition
	Forced     bool   // Whether the transition bypassed the table
}

// NewStatusChangedEvent creates a StatusChangedEvent.
func NewStatusChangedEvent(stream, unit, from, to, eventID, actor string, forced bool) StatusChangedEvent {
	return StatusChangedEvent{
		baseEvent:  newBaseEvent("status.changed"),
		WorkStream: stream,
		Unit:       unit,
		From:       from,
		To:         to,
		EventID:    eventID,
		Actor:      actor,
		Forced:     forced,
	}
}

// SnapshotMaterializedEvent is published when a snapshot is rewritten.
type SnapshotMaterializedEvent struct {
	baseEvent
	WorkStream string // Owning work stream
	EventCount int    // Events folded into the snapshot
	UnitCount  int    // Units with at least one event
}

// NewSnapshotMaterializedEvent creates a SnapshotMaterializedEvent.
func NewSnapshotMaterializedEvent(stream string, eventCount, unitCount int) SnapshotMaterializedEvent {
	return SnapshotMaterializedEvent{
		baseEvent:  newBaseEvent("snapshot.materialized"),
		WorkStream: stream,
		EventCount: eventCount,
		UnitCount:  unitCount,
	}
}

// MergeResolvedEvent is published when two branch logs are reconciled.
type MergeResolvedEvent struct {
	baseEvent
	WorkStream string // Owning work stream
	Total      int    // Events in the merged log
	Duplicates int    // Events dropped as duplicates
	Rollbacks  int    // Forks decided by rollback precedence
}

// NewMergeResolvedEvent creates a MergeResolvedEvent.
func NewMergeResolvedEvent(stream string, total, duplicates, rollbacks int) MergeResolvedEvent {
	return MergeResolvedEvent{
		baseEvent:  newBaseEvent("merge.resolved"),
		WorkStream: stream,
		Total:      total,
		Duplicates: duplicates,
		Rollbacks:  rollbacks,
	}
}

// MigrationCompletedEvent is published when the historical importer finishes
// a unit.
type MigrationCompletedEvent struct {
	baseEvent
	WorkStream string // Owning work stream
	Unit       string // Migrated work package
	Events     int    // Reconstructed events appended
}

// NewMigrationCompletedEvent creates a MigrationCompletedEvent.
func NewMigrationCompletedEvent(stream, unit string, events int) MigrationCompletedEvent {
	return MigrationCompletedEvent{
		baseEvent:  newBaseEvent("migration.completed"),
		WorkStream: stream,
		Unit:       unit,
		Events:     events,
	}
}
