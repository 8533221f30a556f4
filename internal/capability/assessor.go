package capability

import (
	"math"

	"shrinkray/internal/media"
	"shrinkray/internal/resource"
)

// Tier buckets the capability score for UI messaging and concurrency policy.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierLimited   Tier = "limited"
)

// Sub-score weights. Thermal and battery carry the most weight because they
// are hard safety constraints rather than performance hints.
const (
	weightThermal   = 0.30
	weightBattery   = 0.30
	weightMemory    = 0.20
	weightProcessor = 0.20
)

const (
	tierExcellentThreshold = 90
	tierGoodThreshold      = 60

	// Battery adequacy drops sharply below this level.
	batteryPenaltyLevel = 0.2
)

// Assessment is the derived judgment of how much conversion work the device
// should attempt right now. It is recomputed from fresh snapshots and never
// persisted.
type Assessment struct {
	Tier          Tier
	Score         float64 // 0-100
	MaxQuality    media.Quality
	MaxConcurrent int
	ThreadBudget  int
	Reasons       []string
}

// Assess combines four independently normalized sub-scores into a weighted
// capability score and derives tier, quality ceiling, and concurrency from
// it. Reasons are appended in the fixed order thermal, battery, memory,
// processor so UI ordering stays stable.
func Assess(snapshot resource.Snapshot, facts resource.Facts) Assessment {
	thermalScore := 1 - float64(snapshot.Thermal.ThrottleLevel)/5
	if thermalScore < 0 {
		thermalScore = 0
	}
	batteryScore := batteryAdequacy(snapshot.Battery)
	memoryScore := snapshot.MemoryHeadroom()
	processorScore := clamp01(facts.ProcessorScore)

	score := 100 * (weightThermal*thermalScore +
		weightBattery*batteryScore +
		weightMemory*memoryScore +
		weightProcessor*processorScore)
	score = math.Round(score*100) / 100

	var reasons []string
	if snapshot.Thermal.ThrottleLevel >= 2 {
		reasons = append(reasons, "Thermal throttling detected")
	}
	if snapshot.Battery.Level < batteryPenaltyLevel && !snapshot.Battery.Charging {
		reasons = append(reasons, "Low battery level detected")
	}
	if memoryScore < 0.15 || snapshot.Memory.LowMemory {
		reasons = append(reasons, "Low available memory")
	}
	if processorScore < 0.3 {
		reasons = append(reasons, "Limited processor performance")
	}

	assessment := Assessment{
		Score:   score,
		Reasons: reasons,
	}
	switch {
	case score >= tierExcellentThreshold:
		assessment.Tier = TierExcellent
		assessment.MaxQuality = media.QualityUltra
		assessment.MaxConcurrent = 2
	case score >= tierGoodThreshold:
		assessment.Tier = TierGood
		assessment.MaxQuality = media.QualityHigh
		assessment.MaxConcurrent = 1
	default:
		assessment.Tier = TierLimited
		assessment.MaxQuality = media.QualityMedium
		assessment.MaxConcurrent = 1
		if snapshot.Thermal.ThrottleLevel >= 3 {
			assessment.MaxQuality = media.QualityLow
		}
	}
	assessment.ThreadBudget = threadBudget(snapshot, facts, assessment.Tier)
	return assessment
}

// batteryAdequacy is the clamped battery level with a steep penalty below
// batteryPenaltyLevel. Charging devices are always fully adequate.
func batteryAdequacy(battery resource.Battery) float64 {
	if battery.Charging {
		return 1
	}
	level := clamp01(battery.Level)
	if level < batteryPenaltyLevel {
		return level * 0.25
	}
	return level
}

func threadBudget(snapshot resource.Snapshot, facts resource.Facts, tier Tier) int {
	cores := snapshot.CPU.CoreCount
	if cores <= 0 {
		cores = facts.CoreCount
	}
	if cores <= 0 {
		cores = 1
	}
	budget := cores - 1
	if tier == TierLimited {
		budget = cores / 2
	}
	if budget < 1 {
		budget = 1
	}
	return budget
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
