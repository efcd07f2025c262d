// Package model defines the core Darkroom record types and the
// content-addressed identity machinery built on top of them.
//
// All hashing goes through RFC 8785 canonical JSON (see canonical.go) and
// SHA-256 with domain separation (see hash.go). The snapshot hash chain,
// protocol definition hashes, and the registry freeze hash are all derived
// here so that every layer of the system agrees on what a given record's
// identity is, byte for byte.
//
// Nothing in this package touches storage or the network.
package model
