// Package keyvault owns the client's cryptographic key material: the
// long-term identity pair, the current signed prekey, and the one-time
// prekey pool. Private key bytes never leave the vault except to the
// session layer it serves.
package keyvault

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"sealchat/internal/crypto"
	"sealchat/internal/domain"
)

// DefaultOneTimeKeyCount is the pool size uploaded with a fresh bundle.
const DefaultOneTimeKeyCount = 100

// ReplenishThreshold is the remaining-pool size below which clients should
// upload a fresh batch.
const ReplenishThreshold = 10

// Vault wraps a KeyStore with the generation and consumption operations.
// All generation writes through to durable storage before returning.
type Vault struct {
	store domain.KeyStore
}

// New returns a Vault backed by store.
func New(store domain.KeyStore) *Vault { return &Vault{store: store} }

// GenerateIdentity creates the identity signing key pair if absent. A second
// call is a no-op; the identity is never rotated.
func (v *Vault) GenerateIdentity() (domain.Identity, error) {
	id, ok, err := v.store.LoadIdentity()
	if err != nil {
		return domain.Identity{}, err
	}
	if ok {
		return id, nil
	}
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.Identity{}, err
	}
	id = domain.Identity{EdPub: pub, EdPriv: priv}
	if err := v.store.SaveIdentity(id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// Identity returns the stored identity.
func (v *Vault) Identity() (domain.Identity, error) {
	id, ok, err := v.store.LoadIdentity()
	if err != nil {
		return domain.Identity{}, err
	}
	if !ok {
		return domain.Identity{}, fmt.Errorf("no identity; generate one first")
	}
	return id, nil
}

// GenerateSignedPreKey creates a fresh prekey pair, assigns a random key id,
// signs the public half with the identity key, persists the pair as current,
// and returns the public record for upload.
func (v *Vault) GenerateSignedPreKey() (domain.SignedPreKey, error) {
	id, err := v.Identity()
	if err != nil {
		return domain.SignedPreKey{}, err
	}
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.SignedPreKey{}, err
	}
	keyID, err := randomKeyID()
	if err != nil {
		return domain.SignedPreKey{}, err
	}
	sig := crypto.SignEd25519(id.EdPriv, pub[:])

	pair := domain.SignedPreKeyPair{KeyID: keyID, Priv: priv, Pub: pub, Signature: sig}
	if err := v.store.SaveSignedPreKeyPair(pair); err != nil {
		return domain.SignedPreKey{}, err
	}
	return domain.SignedPreKey{
		KeyID:     keyID,
		PublicKey: append([]byte(nil), pub[:]...),
		Signature: sig,
	}, nil
}

// CurrentSignedPreKeyPair exposes the active signed prekey pair to the
// session layer's responder path.
func (v *Vault) CurrentSignedPreKeyPair() (domain.SignedPreKeyPair, bool, error) {
	return v.store.CurrentSignedPreKeyPair()
}

// GenerateOneTimePreKeys creates count pairs with sequential ids starting at
// startID, persists the private halves, and returns the public halves for
// upload.
func (v *Vault) GenerateOneTimePreKeys(startID, count int) ([]domain.OneTimePreKey, error) {
	pairs := make([]domain.OneTimePreKeyPair, 0, count)
	publics := make([]domain.OneTimePreKey, 0, count)
	for i := 0; i < count; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return nil, err
		}
		keyID := startID + i
		pairs = append(pairs, domain.OneTimePreKeyPair{KeyID: keyID, Priv: priv, Pub: pub})
		publics = append(publics, domain.OneTimePreKey{
			KeyID:     keyID,
			PublicKey: append([]byte(nil), pub[:]...),
		})
	}
	if err := v.store.SaveOneTimePreKeyPairs(pairs); err != nil {
		return nil, err
	}
	return publics, nil
}

// ConsumeOneTimePreKey returns and deletes the private half for keyID, or
// nil if it is absent or already consumed.
func (v *Vault) ConsumeOneTimePreKey(keyID int) (*domain.X25519Private, error) {
	pair, ok, err := v.store.ConsumeOneTimePreKeyPair(keyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	priv := pair.Priv
	return &priv, nil
}

// BuildUploadBundle composes the identity key, a freshly generated signed
// prekey, and a batch of one-time prekeys into an upload payload.
func (v *Vault) BuildUploadBundle(oneTimeKeyCount int) (domain.PreKeyBundle, error) {
	id, err := v.GenerateIdentity()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	spk, err := v.GenerateSignedPreKey()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	startID, err := v.store.NextOneTimePreKeyID()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	oneTime, err := v.GenerateOneTimePreKeys(startID, oneTimeKeyCount)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	return domain.PreKeyBundle{
		IdentityKey:    append([]byte(nil), id.EdPub[:]...),
		SignedPreKey:   spk,
		OneTimePreKeys: oneTime,
	}, nil
}

// ReplenishBatch generates count fresh one-time prekeys continuing the
// existing id sequence, for upload to the server pool.
func (v *Vault) ReplenishBatch(count int) ([]domain.OneTimePreKey, error) {
	startID, err := v.store.NextOneTimePreKeyID()
	if err != nil {
		return nil, err
	}
	return v.GenerateOneTimePreKeys(startID, count)
}

// randomKeyID draws a random positive 31-bit id for signed prekeys. Ids are
// random rather than sequential so rotated prekeys never collide.
func randomKeyID() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<31-1))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 1, nil
}
