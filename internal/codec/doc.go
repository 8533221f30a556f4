// Package codec defines the external codec engine boundary. The orchestrator
// treats the engine as an opaque asynchronous worker: it starts a job, reads
// a single typed event stream (tick, complete, error), and asks for pause,
// resume, or cancel acknowledgments. The package also ships an ffmpeg
// subprocess adapter so the binary works end to end, but nothing in the core
// depends on it.
package codec
