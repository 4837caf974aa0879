// Package x3dh implements the X3DH key agreement used to bootstrap a Double
// Ratchet session between two parties who have never communicated.
//
// # Flows
//
// Initiator:
//  1. Verify the signed prekey signature under the bundle's identity key.
//  2. Generate an ephemeral X25519 key pair.
//  3. Convert both identity signing keys to X25519.
//  4. Compute DH values (IKa·SPKb, EKa·IKb, EKa·SPKb[, EKa·OPKb]).
//  5. HKDF over the concatenated DH transcript to produce the shared secret.
//
// Responder: mirror the computation from the first message header's identity
// and ephemeral keys, using the local signed prekey and (if referenced) the
// local one-time prekey private halves.
//
// Both sides derive byte-identical secrets given correct inputs; that
// symmetry is the primary property the package tests assert.
//
// # Errors
//
// domain.ErrInvalidBundleSignature is returned before any DH computation when
// the signed prekey signature fails verification. A referenced but locally
// absent one-time prekey is the caller's problem (domain.ErrMissingSessionKey
// at the session layer); Respond is only ever called with keys in hand.
package x3dh
