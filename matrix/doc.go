// Package matrix implements the heart of the orchestration engine: the agent
// registry, the trigger-matching scheduler and the room/message bus.
//
// Registration is an idempotent upsert that preserves runtime state and
// derives an advisory attestation hash on first sight of a config. Trigger
// selects eligible agents (enabled, not thinking, trigger match, cooldown
// elapsed), orders them deterministically (priority rank, then registration
// order) and runs their inference sequentially so the resulting room message
// order is reproducible. The sequential execution is a deliberate policy,
// not an accident: parallel admission paths live in the bidding and review
// packages.
package matrix
