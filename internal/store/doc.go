// Package store provides file-based persistence for the client's key
// material and per-peer ratchet state.
//
// Every file is an encrypted JSON blob: a passphrase-derived key (scrypt)
// seals the payload with ChaCha20-Poly1305, a fresh random salt per write.
// All methods are concurrency-safe via internal locking and write through a
// temp-file rename so a crash never leaves a torn file.
package store
