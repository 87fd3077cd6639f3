// Package store houses concrete implementations of the core.SnapshotStore.
// The interface itself (and the Snapshot struct) live in the core package
// to centralize domain contracts. Keeping only implementations here prevents
// higher level packages from depending on concrete storage.
//
// Add additional backends (Redis, Postgres, S3, etc.) in sub-packages
// without changing any calling code; only the wiring layer decides which
// implementation to instantiate.
package store
