// Package capability turns resource snapshots into admission decisions: a
// scored capability assessment that picks the quality and concurrency the
// device can sustain, and a suitability check whose hard blockers prevent
// admission regardless of queue pressure. All functions are pure and cheap;
// they never touch the platform.
package capability
