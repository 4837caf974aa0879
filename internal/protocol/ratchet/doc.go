// Package ratchet implements the Double Ratchet over the shared secret X3DH
// produces.
//
// The engine keeps a root key plus send/receive chains. Every message
// advances a one-way chain KDF; a DH ratchet step re-keys the root whenever
// the peer's ratchet public key changes, which happens exactly once per
// conversational direction flip.
//
// Decrypt works on a scratch copy of the state and commits only after the
// AEAD opens, so an authentication failure can never advance a chain.
//
// Concurrency: RatchetState is NOT safe for concurrent use. Callers must
// serialise access per peer.
package ratchet
