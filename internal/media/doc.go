// Package media defines the canonical conversion domain types shared across
// the orchestrator: qualities, output formats, priorities, requests, progress
// snapshots, and results. Every component speaks these types so that status
// and quality semantics cannot drift between packages.
package media
