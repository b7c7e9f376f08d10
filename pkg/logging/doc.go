// Package logging provides the structured logging system shared by the
// fleetd supervisor, its subsystems, and the fleetctl-style CLI surface
// exposed through cmd/.
//
// # Architecture
//
// Logging is built around slog (log/slog) with two execution modes:
//
//   - **CLI mode**: direct, synchronous output to a writer (stdout/stderr),
//     used by one-shot commands like `fleetd deploy`.
//   - **Daemon mode**: the same slog handler, plus a buffered channel of
//     LogEntry values that the local IPC surface can tail for
//     `GetComponentDetails`-style diagnostics without re-parsing text output.
//
// Every log call carries a subsystem tag (e.g. "resolver", "store",
// "lifecycle") so operators can grep a single log stream for one
// component of the deployment pipeline.
package logging
