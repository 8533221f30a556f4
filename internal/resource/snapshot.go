package resource

import (
	"strings"
	"time"
)

// ThermalState is an ordered severity level. Comparisons are meaningful:
// a state at or above ThermalCritical blocks admission.
type ThermalState int

const (
	ThermalNominal ThermalState = iota
	ThermalFair
	ThermalSerious
	ThermalCritical
	ThermalEmergency
)

var thermalNames = map[ThermalState]string{
	ThermalNominal:   "nominal",
	ThermalFair:      "fair",
	ThermalSerious:   "serious",
	ThermalCritical:  "critical",
	ThermalEmergency: "emergency",
}

func (s ThermalState) String() string {
	name, ok := thermalNames[s]
	if !ok {
		return "nominal"
	}
	return name
}

// ParseThermalState converts a string into a known ThermalState.
func ParseThermalState(value string) (ThermalState, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for state, name := range thermalNames {
		if name == normalized {
			return state, true
		}
	}
	return ThermalNominal, false
}

// Battery reports charge state. Level is normalized to [0, 1].
type Battery struct {
	Level       float64
	Charging    bool
	Temperature float64 // celsius, 0 when unknown
}

// Memory reports RAM state in bytes.
type Memory struct {
	TotalBytes     uint64
	AvailableBytes uint64
	UsedBytes      uint64
	LowMemory      bool
}

// Storage reports free space for a logical location.
type Storage struct {
	Location       string
	AvailableBytes uint64
	TotalBytes     uint64
}

// Thermal reports thermal severity. ThrottleLevel is 0 (none) through 5
// (maximum throttling).
type Thermal struct {
	State         ThermalState
	ThrottleLevel int
}

// CPU reports processor state.
type CPU struct {
	CoreCount    int
	UsagePercent float64
}

// Snapshot is an immutable point-in-time read of device resources. A fresh
// snapshot is taken before each admission decision and periodically while a
// session is processing.
type Snapshot struct {
	Battery Battery
	Memory  Memory
	Storage []Storage
	Thermal Thermal
	CPU     CPU
	TakenAt time.Time
}

// AvailableStorage returns the free bytes for a location, falling back to
// the first known location when the requested one is absent.
func (s Snapshot) AvailableStorage(location string) uint64 {
	for _, st := range s.Storage {
		if st.Location == location {
			return st.AvailableBytes
		}
	}
	if len(s.Storage) > 0 {
		return s.Storage[0].AvailableBytes
	}
	return 0
}

// MemoryHeadroom returns available/total RAM in [0, 1].
func (s Snapshot) MemoryHeadroom() float64 {
	if s.Memory.TotalBytes == 0 {
		return 0
	}
	headroom := float64(s.Memory.AvailableBytes) / float64(s.Memory.TotalBytes)
	if headroom > 1 {
		return 1
	}
	return headroom
}

// Facts holds static device characteristics that do not change between
// snapshots: the processor benchmark score and hardware totals.
type Facts struct {
	ProcessorScore float64 // normalized benchmark in [0, 1]
	CoreCount      int
	TotalRAMBytes  uint64
	Model          string
}
