// Package main hosts the shrinkray CLI entrypoint and command graph.
//
// The Cobra-based command tree wires conversion submissions, device
// capability reports, history inspection, and configuration scaffolding onto
// the internal packages. It centralizes configuration resolution and
// structured logging setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
