// Package seal implements the time-lock state machine that gates access to
// collected content.
//
// States:
//
//	COLLECTING -> SEALED -> UNLOCKED
//
// Sealing freezes the protocol registry, records the chain hash over the
// snapshot prefix that exists at that moment, and starts the blind period.
// Unlocking is a one-way transition allowed only once the wall clock passes
// the committed target time AND the sealed prefix still verifies against the
// recorded chain hash. An integrity mismatch permanently blocks unlock.
//
// The Manager implements store.ContentGate, so every payload read in the
// store consults this state machine. The enforcement is an application-level
// check plus the hash-chain integrity proof, not a cryptographic time
// release; an external attestation service could harden this later.
package seal
