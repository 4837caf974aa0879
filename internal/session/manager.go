// Package session manages per-peer Double Ratchet sessions: establishing
// them via X3DH on first contact, encrypting and decrypting envelopes, and
// persisting ratchet state after every mutation.
package session

import (
	"context"
	"fmt"
	"sync"

	"sealchat/internal/domain"
	"sealchat/internal/keyvault"
	"sealchat/internal/protocol/ratchet"
	"sealchat/internal/protocol/x3dh"
)

// Manager serialises crypto operations per peer: encrypt and decrypt for the
// same peer never interleave, while different peers proceed concurrently.
type Manager struct {
	vault    *keyvault.Vault
	ratchets domain.RatchetStore
	bundles  domain.BundleFetcher

	mu    sync.Mutex
	peers map[string]*sync.Mutex
}

// New returns a Manager over the given vault, ratchet store, and bundle
// fetcher.
func New(vault *keyvault.Vault, ratchets domain.RatchetStore, bundles domain.BundleFetcher) *Manager {
	return &Manager{
		vault:    vault,
		ratchets: ratchets,
		bundles:  bundles,
		peers:    make(map[string]*sync.Mutex),
	}
}

func (m *Manager) peerLock(peerID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.peers[peerID]
	if !ok {
		l = &sync.Mutex{}
		m.peers[peerID] = l
	}
	return l
}

// EncryptFor encrypts plaintext for peerID. If no session exists, it fetches
// the peer's bundle, runs X3DH as the initiator, and stamps the X3DH
// bootstrap fields onto the first message header. State is persisted before
// the envelope is returned so a crash cannot desynchronise the chains.
func (m *Manager) EncryptFor(ctx context.Context, peerID string, plaintext []byte) (domain.EncryptedEnvelope, error) {
	l := m.peerLock(peerID)
	l.Lock()
	defer l.Unlock()

	st, found, err := m.ratchets.LoadRatchetState(peerID)
	if err != nil {
		return domain.EncryptedEnvelope{}, err
	}
	if !found {
		st, err = m.establishInitiator(ctx, peerID)
		if err != nil {
			return domain.EncryptedEnvelope{}, err
		}
	}

	header, ct, nonce, err := ratchet.Encrypt(&st, plaintext)
	if err != nil {
		return domain.EncryptedEnvelope{}, err
	}

	if st.Handshake != nil {
		id, err := m.vault.Identity()
		if err != nil {
			return domain.EncryptedEnvelope{}, err
		}
		header.IdentityKey = append([]byte(nil), id.EdPub[:]...)
		header.EphemeralKey = st.Handshake.EphemeralKey
		header.UsedOneTimePreKeyID = st.Handshake.UsedOneTimePreKeyID
		st.Handshake = nil
	}

	if err := m.ratchets.SaveRatchetState(peerID, st); err != nil {
		return domain.EncryptedEnvelope{}, err
	}
	return domain.EncryptedEnvelope{Header: header, Ciphertext: ct, Nonce: nonce}, nil
}

// DecryptFrom decrypts an envelope from peerID. The first envelope of a new
// session must carry bootstrap fields; its referenced one-time prekey is
// consumed exactly once. Decrypt failures leave stored state untouched.
func (m *Manager) DecryptFrom(peerID string, env domain.EncryptedEnvelope) ([]byte, error) {
	l := m.peerLock(peerID)
	l.Lock()
	defer l.Unlock()

	st, found, err := m.ratchets.LoadRatchetState(peerID)
	if err != nil {
		return nil, err
	}
	if !found {
		st, err = m.establishResponder(env.Header)
		if err != nil {
			return nil, err
		}
	}

	plaintext, err := ratchet.Decrypt(&st, env.Header, env.Ciphertext, env.Nonce)
	if err != nil {
		return nil, err
	}
	if err := m.ratchets.SaveRatchetState(peerID, st); err != nil {
		return nil, err
	}
	return plaintext, nil
}

func (m *Manager) establishInitiator(ctx context.Context, peerID string) (domain.RatchetState, error) {
	bundle, err := m.bundles.FetchBundle(ctx, peerID)
	if err != nil {
		return domain.RatchetState{}, err
	}
	id, err := m.vault.Identity()
	if err != nil {
		return domain.RatchetState{}, err
	}
	res, err := x3dh.Initiate(id, bundle)
	if err != nil {
		return domain.RatchetState{}, fmt.Errorf("initiate with %s: %w", peerID, err)
	}

	var peerSPK domain.X25519Public
	copy(peerSPK[:], bundle.SignedPreKey.PublicKey)

	st, err := ratchet.InitAsInitiator(res.SharedSecret, peerSPK)
	if err != nil {
		return domain.RatchetState{}, err
	}
	st.Handshake = &domain.PendingHandshake{
		EphemeralKey:        append([]byte(nil), res.EphemeralPub[:]...),
		UsedOneTimePreKeyID: res.UsedOneTimeKeyID,
	}
	return st, nil
}

func (m *Manager) establishResponder(header domain.MessageHeader) (domain.RatchetState, error) {
	if !header.Bootstrap() {
		return domain.RatchetState{}, domain.ErrNoSession
	}
	id, err := m.vault.Identity()
	if err != nil {
		return domain.RatchetState{}, err
	}
	spk, ok, err := m.vault.CurrentSignedPreKeyPair()
	if err != nil {
		return domain.RatchetState{}, err
	}
	if !ok {
		return domain.RatchetState{}, domain.ErrNoSession
	}

	var opkPriv *domain.X25519Private
	if header.UsedOneTimePreKeyID != nil {
		opkPriv, err = m.vault.ConsumeOneTimePreKey(*header.UsedOneTimePreKeyID)
		if err != nil {
			return domain.RatchetState{}, err
		}
		if opkPriv == nil {
			return domain.RatchetState{}, domain.ErrMissingSessionKey
		}
	}

	secret, err := x3dh.Respond(id, spk.Priv, opkPriv, header.IdentityKey, header.EphemeralKey)
	if err != nil {
		return domain.RatchetState{}, err
	}
	return ratchet.InitAsResponder(secret, spk.Priv, spk.Pub), nil
}
