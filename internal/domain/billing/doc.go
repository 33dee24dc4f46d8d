// Package billing contains the core domain of the recurring billing
// engine: the Bill aggregate and its lifecycle state machine, the
// per-owner profit ledger, and the repository contracts both are
// persisted through.
//
// The invariant the whole package is built around is that at most one
// bill exists per (tenant, billing period). Generation checks the key
// before creating and the store enforces it with a uniqueness
// constraint, which makes repeated generation runs convergent no matter
// how many scheduler triggers overlap.
package billing
