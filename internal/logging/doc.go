// Package logging builds the slog loggers used across shrinkray and exposes
// small helpers (attr constructors, component loggers, standard field names)
// so log output stays uniform between the orchestrator and the CLI.
package logging
