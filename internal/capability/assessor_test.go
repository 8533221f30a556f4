package capability_test

import (
	"errors"
	"strings"
	"testing"

	"shrinkray/internal/capability"
	"shrinkray/internal/media"
	"shrinkray/internal/resource"
)

func healthySnapshot() resource.Snapshot {
	return resource.Snapshot{
		Battery: resource.Battery{Level: 0.95, Charging: true},
		Memory:  resource.Memory{TotalBytes: 8 << 30, AvailableBytes: 6 << 30},
		Storage: []resource.Storage{{Location: "output", AvailableBytes: 64 << 30}},
		Thermal: resource.Thermal{State: resource.ThermalNominal, ThrottleLevel: 0},
		CPU:     resource.CPU{CoreCount: 8, UsagePercent: 10},
	}
}

func strongFacts() resource.Facts {
	return resource.Facts{ProcessorScore: 0.9, CoreCount: 8, TotalRAMBytes: 8 << 30}
}

func TestAssessHealthyDeviceIsExcellent(t *testing.T) {
	assessment := capability.Assess(healthySnapshot(), strongFacts())
	if assessment.Tier != capability.TierExcellent {
		t.Fatalf("expected excellent tier, got %s (score %.2f)", assessment.Tier, assessment.Score)
	}
	if assessment.MaxQuality != media.QualityUltra {
		t.Fatalf("expected ultra quality ceiling, got %s", assessment.MaxQuality)
	}
	if assessment.MaxConcurrent < 2 {
		t.Fatalf("expected at least 2 concurrent jobs, got %d", assessment.MaxConcurrent)
	}
	if len(assessment.Reasons) != 0 {
		t.Fatalf("expected no reasons for a healthy device, got %v", assessment.Reasons)
	}
}

func TestAssessThrottledDeviceIsLimitedAndCapped(t *testing.T) {
	snapshot := healthySnapshot()
	snapshot.Thermal = resource.Thermal{State: resource.ThermalSerious, ThrottleLevel: 4}
	snapshot.Battery = resource.Battery{Level: 0.15, Charging: false}
	snapshot.Memory.AvailableBytes = 512 << 20

	assessment := capability.Assess(snapshot, resource.Facts{ProcessorScore: 0.2, CoreCount: 4})
	if assessment.Tier != capability.TierLimited {
		t.Fatalf("expected limited tier, got %s (score %.2f)", assessment.Tier, assessment.Score)
	}
	if assessment.MaxQuality != media.QualityLow {
		t.Fatalf("expected low quality cap at throttle level 4, got %s", assessment.MaxQuality)
	}
	if assessment.MaxConcurrent != 1 {
		t.Fatalf("expected single concurrency, got %d", assessment.MaxConcurrent)
	}
}

func TestAssessReasonOrderingIsStable(t *testing.T) {
	snapshot := healthySnapshot()
	snapshot.Thermal = resource.Thermal{State: resource.ThermalSerious, ThrottleLevel: 3}
	snapshot.Battery = resource.Battery{Level: 0.1, Charging: false}
	snapshot.Memory.AvailableBytes = 256 << 20

	assessment := capability.Assess(snapshot, resource.Facts{ProcessorScore: 0.1, CoreCount: 2})
	want := []string{
		"Thermal throttling detected",
		"Low battery level detected",
		"Low available memory",
		"Limited processor performance",
	}
	if len(assessment.Reasons) != len(want) {
		t.Fatalf("expected %d reasons, got %v", len(want), assessment.Reasons)
	}
	for i, reason := range want {
		if assessment.Reasons[i] != reason {
			t.Fatalf("reason %d: expected %q, got %q", i, reason, assessment.Reasons[i])
		}
	}
}

func TestCheckSuitabilityBatteryBlocker(t *testing.T) {
	snapshot := healthySnapshot()
	snapshot.Battery = resource.Battery{Level: 0.05, Charging: false}

	result := capability.CheckSuitability(snapshot, 1<<20)
	if result.Suitable {
		t.Fatal("expected unsuitable device")
	}
	found := false
	for _, blocker := range result.Blockers {
		if strings.Contains(blocker, "battery") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a battery blocker, got %v", result.Blockers)
	}

	// The same battery level while charging is acceptable.
	snapshot.Battery.Charging = true
	result = capability.CheckSuitability(snapshot, 1<<20)
	if !result.Suitable {
		t.Fatalf("expected suitable device while charging, blockers: %v", result.Blockers)
	}
}

func TestCheckSuitabilityThermalBlocker(t *testing.T) {
	snapshot := healthySnapshot()
	snapshot.Thermal = resource.Thermal{State: resource.ThermalCritical, ThrottleLevel: 4}
	result := capability.CheckSuitability(snapshot, 0)
	if result.Suitable {
		t.Fatal("expected thermal blocker")
	}
}

func TestCheckSuitabilityStorageBlocker(t *testing.T) {
	snapshot := healthySnapshot()
	snapshot.Storage = []resource.Storage{{Location: "output", AvailableBytes: 1 << 20}}
	result := capability.CheckSuitability(snapshot, 10<<20)
	if result.Suitable {
		t.Fatal("expected storage blocker")
	}

	err := result.Err()
	var notSuitable *capability.NotSuitableError
	if !errors.As(err, &notSuitable) {
		t.Fatalf("expected NotSuitableError, got %T", err)
	}
	if len(notSuitable.Blockers) == 0 {
		t.Fatal("expected blocker list on error")
	}
}

func TestSuitabilityErrNilWhenSuitable(t *testing.T) {
	result := capability.CheckSuitability(healthySnapshot(), 1<<20)
	if !result.Suitable {
		t.Fatalf("expected suitable, blockers: %v", result.Blockers)
	}
	if err := result.Err(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestWarningsDoNotBlock(t *testing.T) {
	snapshot := healthySnapshot()
	snapshot.Thermal = resource.Thermal{State: resource.ThermalFair, ThrottleLevel: 2}
	snapshot.Memory.LowMemory = true

	result := capability.CheckSuitability(snapshot, 1<<20)
	if !result.Suitable {
		t.Fatalf("warnings must not block, blockers: %v", result.Blockers)
	}
	if len(result.Warnings) < 2 {
		t.Fatalf("expected thermal and memory warnings, got %v", result.Warnings)
	}
}
