// Package logging provides a minimal logging interface and adapters for AgentMatrix.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the orchestration core uses for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - MatrixLogger with contextual helpers for components, rooms and agents
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	m := matrix.New(mock, func(o *matrix.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
