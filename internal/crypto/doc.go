// Package crypto wraps the primitive operations sealchat builds on: X25519
// key agreement, Ed25519 signatures, and the conversion of long-term signing
// keys into Diffie-Hellman keys for X3DH.
package crypto
