package capability

import (
	"fmt"
	"strings"

	"shrinkray/internal/resource"
)

// storageMarginBytes is the free space required beyond the estimated output
// size before a conversion is admitted.
const storageMarginBytes = 512 << 20

// blockerBatteryLevel is the level at or below which a non-charging battery
// blocks admission outright.
const blockerBatteryLevel = 0.10

// Suitability is the result of a pre-admission device check. Blockers must
// prevent admission; warnings only annotate the UI.
type Suitability struct {
	Suitable bool
	Warnings []string
	Blockers []string
}

// NotSuitableError is returned synchronously when a submit hits a hard
// device blocker. The request is neither admitted nor queued; the caller
// decides whether to retry later.
type NotSuitableError struct {
	Blockers []string
}

func (e *NotSuitableError) Error() string {
	if e == nil || len(e.Blockers) == 0 {
		return "device not suitable for conversion"
	}
	return "device not suitable for conversion: " + strings.Join(e.Blockers, "; ")
}

// CheckSuitability evaluates hard blockers and soft warnings for admitting a
// conversion whose output is estimated at estimatedOutputBytes.
func CheckSuitability(snapshot resource.Snapshot, estimatedOutputBytes int64) Suitability {
	var result Suitability

	if snapshot.Battery.Level <= blockerBatteryLevel && !snapshot.Battery.Charging {
		result.Blockers = append(result.Blockers,
			fmt.Sprintf("battery level %.0f%% is too low and the device is not charging", snapshot.Battery.Level*100))
	} else if snapshot.Battery.Level < batteryPenaltyLevel && !snapshot.Battery.Charging {
		result.Warnings = append(result.Warnings, "battery is low; conversion will drain it further")
	}

	if snapshot.Thermal.State >= resource.ThermalCritical {
		result.Blockers = append(result.Blockers,
			fmt.Sprintf("thermal state %s requires the device to cool down", snapshot.Thermal.State))
	} else if snapshot.Thermal.ThrottleLevel >= 2 {
		result.Warnings = append(result.Warnings, "device is thermally throttled; conversion will be slow")
	}

	if estimatedOutputBytes > 0 {
		required := uint64(estimatedOutputBytes) + storageMarginBytes
		available := snapshot.AvailableStorage("output")
		if available < required {
			result.Blockers = append(result.Blockers,
				fmt.Sprintf("available storage %d bytes is below the %d bytes required for the estimated output", available, required))
		}
	}

	if snapshot.Memory.LowMemory {
		result.Warnings = append(result.Warnings, "device memory is low; background apps may be evicted")
	}

	result.Suitable = len(result.Blockers) == 0
	return result
}

// Err converts an unsuitable result into a NotSuitableError, or nil when the
// device is suitable.
func (s Suitability) Err() error {
	if s.Suitable {
		return nil
	}
	return &NotSuitableError{Blockers: append([]string{}, s.Blockers...)}
}
