// Package control is the ambient configuration, metrics and debug layer
// around the data-plane core: per-run NIC configuration, per-worker ring
// counters, and probe-based state dumps for a running ixmap-go process.
//
// Provides concurrent-safe state handling primitives including:
//   - Immutable snapshot config reads and atomic updates
//   - Runtime observers for hot-reload
//   - Metrics telemetry contracts
//   - State export, debug hooks, and probe registration
package control
