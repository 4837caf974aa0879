package domain

import "errors"

var (
	// ErrInvalidBundleSignature means the signed prekey signature did not
	// verify under the bundle's identity key. Fatal to the session attempt;
	// the bundle must be discarded, not retried.
	ErrInvalidBundleSignature = errors.New("invalid prekey bundle signature")

	// ErrMissingSessionKey means the responder no longer holds the one-time
	// prekey a first message references. The message cannot be decrypted.
	ErrMissingSessionKey = errors.New("referenced one-time prekey not available")

	// ErrDecryptionFailed is an AEAD authentication failure. Per-message;
	// stored ratchet state is left untouched.
	ErrDecryptionFailed = errors.New("message decryption failed")

	// ErrBundleNotFound means the peer has never uploaded a key bundle.
	ErrBundleNotFound = errors.New("prekey bundle not found")

	// ErrNoSession means a ciphertext arrived for a peer with no established
	// session and no bootstrap material in its header.
	ErrNoSession = errors.New("no session with peer")
)
