package media

import "strings"

// Quality identifies a conversion quality target.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityUltra  Quality = "ultra" // 4K-class output
)

var qualityRank = map[Quality]int{
	QualityLow:    0,
	QualityMedium: 1,
	QualityHigh:   2,
	QualityUltra:  3,
}

// AllQualities returns the known qualities ordered from lowest to highest.
func AllQualities() []Quality {
	return []Quality{QualityLow, QualityMedium, QualityHigh, QualityUltra}
}

// ParseQuality converts a string into a known Quality.
func ParseQuality(value string) (Quality, bool) {
	normalized := Quality(strings.ToLower(strings.TrimSpace(value)))
	_, ok := qualityRank[normalized]
	return normalized, ok
}

// Rank returns the ordering position of the quality, with low ranked first.
// Unknown qualities rank below low.
func (q Quality) Rank() int {
	rank, ok := qualityRank[q]
	if !ok {
		return -1
	}
	return rank
}

// AtMost returns the lower of q and limit.
func (q Quality) AtMost(limit Quality) Quality {
	if q.Rank() > limit.Rank() {
		return limit
	}
	return q
}

// OutputFormat identifies a container format for converted output.
type OutputFormat string

const (
	FormatMP4  OutputFormat = "mp4"
	FormatMKV  OutputFormat = "mkv"
	FormatWebM OutputFormat = "webm"
)

var formatSet = map[OutputFormat]struct{}{
	FormatMP4:  {},
	FormatMKV:  {},
	FormatWebM: {},
}

// ParseFormat converts a string into a known OutputFormat. A leading dot is
// accepted so file extensions can be passed directly.
func ParseFormat(value string) (OutputFormat, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.TrimPrefix(normalized, ".")
	format := OutputFormat(normalized)
	_, ok := formatSet[format]
	return format, ok
}

// Extension returns the file extension for the format, including the dot.
func (f OutputFormat) Extension() string {
	return "." + string(f)
}

// Priority orders queued requests. Higher values are admitted first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

var priorityNames = map[Priority]string{
	PriorityLow:    "low",
	PriorityNormal: "normal",
	PriorityHigh:   "high",
	PriorityUrgent: "urgent",
}

// ParsePriority converts a string into a known Priority.
func ParsePriority(value string) (Priority, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for priority, name := range priorityNames {
		if name == normalized {
			return priority, true
		}
	}
	return PriorityNormal, false
}

func (p Priority) String() string {
	name, ok := priorityNames[p]
	if !ok {
		return "normal"
	}
	return name
}

// compressionFactor approximates output bytes per input byte at each quality.
var compressionFactor = map[Quality]float64{
	QualityLow:    0.20,
	QualityMedium: 0.35,
	QualityHigh:   0.55,
	QualityUltra:  0.80,
}

// EstimateOutputSize predicts the output size in bytes for an input of the
// given size converted at the given quality. The estimate feeds the storage
// admission check, so it rounds up rather than down.
func EstimateOutputSize(inputBytes int64, quality Quality) int64 {
	factor, ok := compressionFactor[quality]
	if !ok {
		factor = compressionFactor[QualityHigh]
	}
	if inputBytes <= 0 {
		return 0
	}
	return int64(float64(inputBytes)*factor) + 1
}
