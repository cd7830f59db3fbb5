// Package phase resolves the operating phase of the status migration for a
// work stream. The phase decides whether the canonical log merely shadows
// the legacy representation (hardening), keeps it in sync (dual-write), or
// owns it outright (read-cutover).
package phase

import (
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
)

// Phase is the integer operating phase of the migration.
type Phase int

const (
	// Hardening: events are recorded and validated but the legacy
	// representation remains the read source.
	Hardening Phase = 0
	// DualWrite: the canonical log is authoritative and every emission
	// refreshes the legacy views.
	DualWrite Phase = 1
	// ReadCutover: legacy views are pure renderings; manual edits to them
	// are drift.
	ReadCutover Phase = 2
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case Hardening:
		return "hardening"
	case DualWrite:
		return "dual-write"
	case ReadCutover:
		return "read-cutover"
	default:
		return "unknown"
	}
}

// Tier identifies which precedence tier supplied the resolved phase.
type Tier string

const (
	// TierOverride: a per-unit-group override matched.
	TierOverride Tier = "group-override"
	// TierRepository: the repository configuration supplied the phase.
	TierRepository Tier = "repository"
	// TierDefault: the built-in default applied.
	TierDefault Tier = "default"
)

// Resolution is the outcome of a phase lookup: the phase plus which tier
// supplied it, and whether a channel cap lowered the configured value.
type Resolution struct {
	Phase  Phase
	Tier   Tier
	Capped bool
}

// Resolve determines the operating phase for a unit group via three-tier
// precedence: per-group override > repository configuration > built-in
// default. Untrusted release channels are capped at read-cutover regardless
// of configured value, so a less-trusted deployment line can never run ahead
// of the migration.
func Resolve(cfg *config.Config, group string) Resolution {
	res := Resolution{Phase: Phase(config.Default().Status.Phase), Tier: TierDefault}

	if cfg != nil {
		res = Resolution{Phase: Phase(cfg.Status.Phase), Tier: TierRepository}
		if group != "" {
			if override, ok := cfg.Status.GroupOverrides[group]; ok {
				res = Resolution{Phase: Phase(override), Tier: TierOverride}
			}
		}
		if !cfg.IsTrustedChannel() && res.Phase > ReadCutover {
			res.Phase = ReadCutover
			res.Capped = true
		}
	}
	return res
}

// UnitGroup derives the unit-group key from a unit id. Unit ids follow the
// "<group>-<seq>" convention (for example "WP03-2" belongs to group "WP03");
// ids without a separator are their own group.
func UnitGroup(unit string) string {
	for i := 0; i < len(unit); i++ {
		if unit[i] == '-' {
			return unit[:i]
		}
	}
	return unit
}
