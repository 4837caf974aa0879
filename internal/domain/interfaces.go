package domain

import "context"

// KeyStore persists the long-term identity, the current signed prekey, and
// the one-time prekey pool. All writes are durable before they return.
type KeyStore interface {
	SaveIdentity(id Identity) error
	LoadIdentity() (Identity, bool, error)

	SaveSignedPreKeyPair(pair SignedPreKeyPair) error
	CurrentSignedPreKeyPair() (SignedPreKeyPair, bool, error)

	SaveOneTimePreKeyPairs(pairs []OneTimePreKeyPair) error
	ConsumeOneTimePreKeyPair(keyID int) (OneTimePreKeyPair, bool, error)
	NextOneTimePreKeyID() (int, error)
}

// RatchetStore persists opaque per-peer ratchet state across restarts.
type RatchetStore interface {
	SaveRatchetState(peerID string, st RatchetState) error
	LoadRatchetState(peerID string) (RatchetState, bool, error)
}

// BundleFetcher retrieves a peer's prekey bundle from the relay. A peer with
// no uploaded bundle yields ErrBundleNotFound.
type BundleFetcher interface {
	FetchBundle(ctx context.Context, userID string) (FetchedBundle, error)
}
