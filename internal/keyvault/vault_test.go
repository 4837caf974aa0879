package keyvault_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sealchat/internal/crypto"
	"sealchat/internal/domain"
	"sealchat/internal/keyvault"
)

// memStore is an in-memory KeyStore for exercising the vault without disk.
type memStore struct {
	id   *domain.Identity
	spk  *domain.SignedPreKeyPair
	opks map[int]domain.OneTimePreKeyPair
	next int
}

func newMemStore() *memStore {
	return &memStore{opks: map[int]domain.OneTimePreKeyPair{}, next: 1}
}

func (m *memStore) SaveIdentity(id domain.Identity) error { m.id = &id; return nil }

func (m *memStore) LoadIdentity() (domain.Identity, bool, error) {
	if m.id == nil {
		return domain.Identity{}, false, nil
	}
	return *m.id, true, nil
}

func (m *memStore) SaveSignedPreKeyPair(pair domain.SignedPreKeyPair) error {
	m.spk = &pair
	return nil
}

func (m *memStore) CurrentSignedPreKeyPair() (domain.SignedPreKeyPair, bool, error) {
	if m.spk == nil {
		return domain.SignedPreKeyPair{}, false, nil
	}
	return *m.spk, true, nil
}

func (m *memStore) SaveOneTimePreKeyPairs(pairs []domain.OneTimePreKeyPair) error {
	for _, p := range pairs {
		m.opks[p.KeyID] = p
		if p.KeyID >= m.next {
			m.next = p.KeyID + 1
		}
	}
	return nil
}

func (m *memStore) ConsumeOneTimePreKeyPair(keyID int) (domain.OneTimePreKeyPair, bool, error) {
	p, ok := m.opks[keyID]
	if ok {
		delete(m.opks, keyID)
	}
	return p, ok, nil
}

func (m *memStore) NextOneTimePreKeyID() (int, error) { return m.next, nil }

var _ domain.KeyStore = (*memStore)(nil)

func TestGenerateIdentity_Idempotent(t *testing.T) {
	v := keyvault.New(newMemStore())

	first, err := v.GenerateIdentity()
	require.NoError(t, err)
	second, err := v.GenerateIdentity()
	require.NoError(t, err)
	require.Equal(t, first.EdPub, second.EdPub, "identity must not rotate")
}

func TestGenerateSignedPreKey_SignatureVerifies(t *testing.T) {
	v := keyvault.New(newMemStore())
	_, err := v.GenerateIdentity()
	require.NoError(t, err)

	spk, err := v.GenerateSignedPreKey()
	require.NoError(t, err)
	require.Positive(t, spk.KeyID)

	id, err := v.Identity()
	require.NoError(t, err)
	require.True(t, crypto.VerifyEd25519(id.EdPub, spk.PublicKey, spk.Signature))
}

func TestConsumeOneTimePreKey_Once(t *testing.T) {
	v := keyvault.New(newMemStore())
	_, err := v.GenerateIdentity()
	require.NoError(t, err)

	keys, err := v.GenerateOneTimePreKeys(1, 3)
	require.NoError(t, err)
	require.Len(t, keys, 3)

	priv, err := v.ConsumeOneTimePreKey(2)
	require.NoError(t, err)
	require.NotNil(t, priv)

	priv, err = v.ConsumeOneTimePreKey(2)
	require.NoError(t, err)
	require.Nil(t, priv, "second consume must return nil")
}

func TestBuildUploadBundle(t *testing.T) {
	store := newMemStore()
	v := keyvault.New(store)

	bundle, err := v.BuildUploadBundle(5)
	require.NoError(t, err)
	require.Len(t, bundle.IdentityKey, 32)
	require.Len(t, bundle.OneTimePreKeys, 5)

	var edPub domain.Ed25519Public
	copy(edPub[:], bundle.IdentityKey)
	require.True(t, crypto.VerifyEd25519(edPub, bundle.SignedPreKey.PublicKey, bundle.SignedPreKey.Signature))

	// Ids continue the sequence on the next batch.
	batch, err := v.ReplenishBatch(2)
	require.NoError(t, err)
	require.Equal(t, bundle.OneTimePreKeys[4].KeyID+1, batch[0].KeyID)
}
