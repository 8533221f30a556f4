package resource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostProber reads resource state from the local machine via gopsutil, with
// sysfs fallbacks for battery and thermal data that gopsutil does not cover.
type HostProber struct {
	// StorageLocations maps logical location names to filesystem paths.
	StorageLocations map[string]string
	// PowerSupplyDir and ThermalDir exist so tests can point the prober at
	// fixture trees. Empty values use the standard sysfs paths.
	PowerSupplyDir string
	ThermalDir     string
}

// NewHostProber builds a prober that reports storage for the given output
// directory under the "output" location.
func NewHostProber(outputDir string) *HostProber {
	locations := map[string]string{}
	if strings.TrimSpace(outputDir) != "" {
		locations["output"] = outputDir
	}
	return &HostProber{StorageLocations: locations}
}

// Probe collects a full snapshot. Individual probe failures degrade to
// neutral values rather than failing the whole read: a missing battery means
// mains power, a missing thermal zone means no thermal pressure.
func (p *HostProber) Probe(ctx context.Context) (Snapshot, error) {
	snapshot := Snapshot{TakenAt: time.Now().UTC()}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("probe memory: %w", err)
	}
	snapshot.Memory = Memory{
		TotalBytes:     vm.Total,
		AvailableBytes: vm.Available,
		UsedBytes:      vm.Used,
		LowMemory:      vm.Total > 0 && float64(vm.Available)/float64(vm.Total) < 0.10,
	}

	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil || cores <= 0 {
		cores = 1
	}
	usage := 0.0
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		usage = percents[0]
	}
	snapshot.CPU = CPU{CoreCount: cores, UsagePercent: usage}

	for location, path := range p.StorageLocations {
		stat, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			continue
		}
		snapshot.Storage = append(snapshot.Storage, Storage{
			Location:       location,
			AvailableBytes: stat.Free,
			TotalBytes:     stat.Total,
		})
	}

	snapshot.Battery = p.probeBattery()
	snapshot.Thermal = p.probeThermal()
	return snapshot, nil
}

func (p *HostProber) probeBattery() Battery {
	dir := p.PowerSupplyDir
	if dir == "" {
		dir = "/sys/class/power_supply"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		// No power supply information means mains power.
		return Battery{Level: 1, Charging: true}
	}
	for _, entry := range entries {
		base := filepath.Join(dir, entry.Name())
		kind, err := readSysfsString(filepath.Join(base, "type"))
		if err != nil || !strings.EqualFold(kind, "Battery") {
			continue
		}
		battery := Battery{Level: 1, Charging: true}
		if capacity, err := readSysfsInt(filepath.Join(base, "capacity")); err == nil {
			battery.Level = clamp01(float64(capacity) / 100)
		}
		if status, err := readSysfsString(filepath.Join(base, "status")); err == nil {
			battery.Charging = !strings.EqualFold(status, "Discharging")
		}
		if temp, err := readSysfsInt(filepath.Join(base, "temp")); err == nil {
			// Reported in tenths of a degree celsius.
			battery.Temperature = float64(temp) / 10
		}
		return battery
	}
	return Battery{Level: 1, Charging: true}
}

func (p *HostProber) probeThermal() Thermal {
	dir := p.ThermalDir
	if dir == "" {
		dir = "/sys/class/thermal"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Thermal{}
	}
	maxTemp := 0.0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "thermal_zone") {
			continue
		}
		raw, err := readSysfsInt(filepath.Join(dir, entry.Name(), "temp"))
		if err != nil {
			continue
		}
		celsius := float64(raw) / 1000
		if celsius > maxTemp {
			maxTemp = celsius
		}
	}
	return thermalFromTemperature(maxTemp)
}

// thermalFromTemperature maps the hottest zone temperature onto the ordered
// severity scale and a 0-5 throttle level.
func thermalFromTemperature(celsius float64) Thermal {
	switch {
	case celsius >= 95:
		return Thermal{State: ThermalEmergency, ThrottleLevel: 5}
	case celsius >= 85:
		return Thermal{State: ThermalCritical, ThrottleLevel: 4}
	case celsius >= 75:
		return Thermal{State: ThermalSerious, ThrottleLevel: 3}
	case celsius >= 65:
		return Thermal{State: ThermalFair, ThrottleLevel: 2}
	case celsius >= 55:
		return Thermal{State: ThermalFair, ThrottleLevel: 1}
	default:
		return Thermal{State: ThermalNominal, ThrottleLevel: 0}
	}
}

// DetectFacts derives static device facts from the local machine. The
// processor score is a crude normalization over core count; platforms with a
// real benchmark should supply Facts directly.
func DetectFacts(ctx context.Context) Facts {
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil || cores <= 0 {
		cores = 1
	}
	total := uint64(0)
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		total = vm.Total
	}
	model := ""
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		model = strings.TrimSpace(infos[0].ModelName)
	}
	score := float64(cores) / 8
	return Facts{
		ProcessorScore: clamp01(score),
		CoreCount:      cores,
		TotalRAMBytes:  total,
		Model:          model,
	}
}

func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readSysfsInt(path string) (int64, error) {
	value, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
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
