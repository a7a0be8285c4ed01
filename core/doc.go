// Package core contains the shared domain model for discovery simulations:
// simulations, personas, conversations, messages, insights, the lifecycle
// status machine, the error taxonomy, and the process-wide call gate that
// bounds in-flight model calls. Higher-level packages (persona, interview,
// insight, simulation) build on these types; core itself has no knowledge of
// model providers or orchestration.
package core
