package phase

import (
	"testing"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Status.Phase = 2
	cfg.Status.GroupOverrides = map[string]int{"WP7": 0}
	return cfg
}

func TestResolveDefault(t *testing.T) {
	res := Resolve(nil, "WP1")
	if res.Phase != DualWrite {
		t.Errorf("default phase = %d, want dual-write", res.Phase)
	}
	if res.Tier != TierDefault {
		t.Errorf("tier = %s, want default", res.Tier)
	}
}

func TestResolveRepository(t *testing.T) {
	res := Resolve(testConfig(), "WP1")
	if res.Phase != ReadCutover || res.Tier != TierRepository {
		t.Errorf("got %+v, want read-cutover from repository tier", res)
	}
}

func TestResolveGroupOverride(t *testing.T) {
	res := Resolve(testConfig(), "WP7")
	if res.Phase != Hardening || res.Tier != TierOverride {
		t.Errorf("got %+v, want hardening from group override", res)
	}
}

func TestResolveUntrustedChannelCap(t *testing.T) {
	cfg := testConfig()
	cfg.Status.Phase = 5
	cfg.Status.ReleaseChannel = "nightly"

	res := Resolve(cfg, "WP1")
	if res.Phase != ReadCutover {
		t.Errorf("phase = %d, want capped at read-cutover", res.Phase)
	}
	if !res.Capped {
		t.Error("Capped should be reported")
	}
}

func TestResolveTrustedChannelUncapped(t *testing.T) {
	cfg := testConfig()
	cfg.Status.Phase = 5

	res := Resolve(cfg, "WP1")
	if res.Phase != Phase(5) || res.Capped {
		t.Errorf("trusted channel should keep configured phase, got %+v", res)
	}
}

func TestUnitGroup(t *testing.T) {
	tests := []struct {
		unit string
		want string
	}{
		{"WP03-2", "WP03"},
		{"WP03-2-followup", "WP03"},
		{"standalone", "standalone"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := UnitGroup(tt.unit); got != tt.want {
			t.Errorf("UnitGroup(%q) = %q, want %q", tt.unit, got, tt.want)
		}
	}
}
