// Package resource models point-in-time device resource readings and the
// providers that produce them. The orchestrator consumes immutable Snapshot
// values; where the snapshot comes from (gopsutil probes, platform bridges,
// test fakes) is hidden behind the Provider interface.
package resource
