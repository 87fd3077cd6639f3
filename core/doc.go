// Package core contains the shared data model of the AgentMatrix
// orchestration engine: agent configuration and runtime state, matrix
// messages and rooms, inbound events, snapshot types for the persistence
// boundary and the clock abstraction used by time dependent components.
//
// Types in this package carry no orchestration logic of their own; the
// matrix, gate, policy, bidding and review packages build on them.
package core
