// Package errors provides centralized error definitions and error handling
// utilities for the status-tracking core. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// The error taxonomy mirrors how failures surface to callers:
//
//   - Input/validation errors (TransitionError, ValidationError) are reported
//     synchronously with the specific violated rule and never partially applied.
//   - Storage-integrity errors (StoreError, RecordError in internal/store) are
//     reported per record with a location; recovery continues with the valid
//     remainder.
//   - Consistency errors (DriftError) indicate a derived view disagrees with a
//     fresh reduction; they are reported, never auto-corrected.
//
// Nothing in this package is fatal; only an unrecoverable filesystem failure
// during an atomic rename aborts an emission, and that surfaces as a wrapped
// StoreError from the writing component.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience so callers can import
// only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for conditions that should be surfaced but do not
	// invalidate the operation (drift in dual-write, swallowed telemetry).
	SeverityWarning Severity = iota
	// SeverityError is for conditions that invalidate the requested operation.
	SeverityError
	// SeverityCritical is for unrecoverable filesystem failures.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Transition and validation sentinels
var (
	// ErrIllegalTransition indicates a transition outside the legal table.
	ErrIllegalTransition = New("illegal lane transition")
	// ErrMissingEvidence indicates a terminal transition without completion evidence.
	ErrMissingEvidence = New("missing completion evidence")
	// ErrMalformedForce indicates a force request missing its audit trail.
	ErrMalformedForce = New("malformed force request")
	// ErrPersistedAlias indicates a legacy lane alias made it into the log.
	ErrPersistedAlias = New("persisted lane alias")
)

// Storage sentinels
var (
	// ErrNotFound indicates a requested work stream, unit, or file is absent.
	ErrNotFound = New("not found")
	// ErrCorruptRecord indicates an event-log line that could not be parsed.
	ErrCorruptRecord = New("corrupt log record")
	// ErrDuplicateEvent indicates an append of an event id already in the log.
	ErrDuplicateEvent = New("duplicate event id")
)

// Consistency sentinels
var (
	// ErrSnapshotDrift indicates the persisted snapshot disagrees with a fresh reduction.
	ErrSnapshotDrift = New("snapshot drift")
	// ErrLegacyDrift indicates the legacy view disagrees with the snapshot.
	ErrLegacyDrift = New("legacy view drift")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity { return e.severity }

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// TransitionError reports a transition that violated the legal-transition
// table or one of its guards. Rule names the violated rule ("table",
// "evidence", "cancel-reason", "force-audit") so callers can surface it.
//
// Example:
//
//	err := errors.NewTransitionError("for_review", "done", "evidence",
//	    "transition to done requires completion evidence")
type TransitionError struct {
	baseError
	From string
	To   string
	Rule string
}

// NewTransitionError creates a TransitionError for the given pair and rule.
func NewTransitionError(from, to, rule, message string) *TransitionError {
	cause := ErrIllegalTransition
	switch rule {
	case "evidence":
		cause = ErrMissingEvidence
	case "force-audit":
		cause = ErrMalformedForce
	}
	return &TransitionError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
		From: from,
		To:   to,
		Rule: rule,
	}
}

// Error returns the formatted error message.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition error [%s -> %s, rule=%s]: %s", e.From, e.To, e.Rule, e.message)
}

// Is checks if this error matches the target.
func (e *TransitionError) Is(target error) bool {
	if _, ok := target.(*TransitionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StoreError reports a failure in the append-only event store or the
// snapshot writer.
type StoreError struct {
	baseError
	WorkStream string
	Path       string
}

// NewStoreError creates a StoreError wrapping cause.
func NewStoreError(message string, cause error) *StoreError {
	return &StoreError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithWorkStream adds the owning work stream to the error context.
func (e *StoreError) WithWorkStream(stream string) *StoreError {
	e.WorkStream = stream
	return e
}

// WithPath adds the affected file path to the error context.
func (e *StoreError) WithPath(path string) *StoreError {
	e.Path = path
	return e
}

// WithSeverity sets the error severity.
func (e *StoreError) WithSeverity(s Severity) *StoreError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *StoreError) Error() string {
	var parts []string
	if e.WorkStream != "" {
		parts = append(parts, fmt.Sprintf("stream=%s", e.WorkStream))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "store error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("store error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StoreError) Is(target error) bool {
	if _, ok := target.(*StoreError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DriftError reports a disagreement between the canonical reduction and a
// derived view (persisted snapshot or legacy document).
type DriftError struct {
	baseError
	WorkStream string
	Unit       string
	View       string // "snapshot" or "legacy"
}

// NewDriftError creates a DriftError for the named view.
func NewDriftError(view, message string) *DriftError {
	cause := ErrSnapshotDrift
	if view == "legacy" {
		cause = ErrLegacyDrift
	}
	return &DriftError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityWarning,
		},
		View: view,
	}
}

// WithWorkStream adds the owning work stream to the error context.
func (e *DriftError) WithWorkStream(stream string) *DriftError {
	e.WorkStream = stream
	return e
}

// WithUnit adds the affected unit to the error context.
func (e *DriftError) WithUnit(unit string) *DriftError {
	e.Unit = unit
	return e
}

// WithSeverity sets the error severity. Drift is a warning in dual-write and
// an error in read-cutover; the validator sets this from the active phase.
func (e *DriftError) WithSeverity(s Severity) *DriftError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *DriftError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("view=%s", e.View))
	if e.WorkStream != "" {
		parts = append(parts, fmt.Sprintf("stream=%s", e.WorkStream))
	}
	if e.Unit != "" {
		parts = append(parts, fmt.Sprintf("unit=%s", e.Unit))
	}
	return fmt.Sprintf("drift [%s]: %s", strings.Join(parts, ", "), e.message)
}

// Is checks if this error matches the target.
func (e *DriftError) Is(target error) bool {
	if _, ok := target.(*DriftError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityError,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a resource that could not be found.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			cause:    ErrNotFound,
			severity: SeverityError,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// severer is implemented by all errors in this package.
type severer interface {
	error
	Severity() Severity
}

// GetSeverity returns the severity level of the error. Unknown errors
// default to SeverityError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityWarning
	}
	var s severer
	if As(err, &s) {
		return s.Severity()
	}
	return SeverityError
}

// IsInputError returns true if the error is a synchronous input/validation
// failure (illegal transition, missing evidence, malformed force, bad field).
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	var te *TransitionError
	var ve *ValidationError
	return As(err, &te) || As(err, &ve)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
