package x3dh_test

import (
	"bytes"
	"errors"
	"testing"

	"sealchat/internal/crypto"
	"sealchat/internal/domain"
	"sealchat/internal/protocol/x3dh"
)

// makeIdentity creates a signing identity with a fresh Ed25519 pair.
func makeIdentity(t *testing.T) domain.Identity {
	t.Helper()
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	return domain.Identity{EdPub: pub, EdPriv: priv}
}

// makeBundle builds bob's published bundle and returns the private halves the
// responder side needs.
func makeBundle(t *testing.T, bob domain.Identity, withOPK bool) (domain.FetchedBundle, domain.X25519Private, *domain.X25519Private) {
	t.Helper()
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	bundle := domain.FetchedBundle{
		UserID:      "bob",
		IdentityKey: bob.EdPub.Slice(),
		SignedPreKey: domain.SignedPreKey{
			KeyID:     7,
			PublicKey: spkPub.Slice(),
			Signature: crypto.SignEd25519(bob.EdPriv, spkPub[:]),
		},
	}
	var opkPriv *domain.X25519Private
	if withOPK {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			t.Fatalf("GenerateX25519 (opk): %v", err)
		}
		opkPriv = &priv
		bundle.OneTimePreKey = &domain.OneTimePreKey{KeyID: 3, PublicKey: pub.Slice()}
	}
	return bundle, spkPriv, opkPriv
}

func TestInitiateAndRespond_NoOneTimePreKey(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, _ := makeBundle(t, bob, false)

	res, err := x3dh.Initiate(alice, bundle)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if res.UsedOneTimeKeyID != nil {
		t.Fatalf("want nil one-time key id, got %d", *res.UsedOneTimeKeyID)
	}

	secret, err := x3dh.Respond(bob, spkPriv, nil, alice.EdPub.Slice(), res.EphemeralPub.Slice())
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !bytes.Equal(res.SharedSecret, secret) {
		t.Fatal("shared secrets differ (no OPK)")
	}
}

func TestInitiateAndRespond_WithOneTimePreKey(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, opkPriv := makeBundle(t, bob, true)

	res, err := x3dh.Initiate(alice, bundle)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if res.UsedOneTimeKeyID == nil || *res.UsedOneTimeKeyID != 3 {
		t.Fatalf("want one-time key id 3, got %v", res.UsedOneTimeKeyID)
	}

	secret, err := x3dh.Respond(bob, spkPriv, opkPriv, alice.EdPub.Slice(), res.EphemeralPub.Slice())
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !bytes.Equal(res.SharedSecret, secret) {
		t.Fatal("shared secrets differ (with OPK)")
	}
}

func TestInitiate_OPKChangesSecret(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	with, _, _ := makeBundle(t, bob, true)

	without := with
	without.OneTimePreKey = nil

	r1, err := x3dh.Initiate(alice, with)
	if err != nil {
		t.Fatalf("Initiate (with OPK): %v", err)
	}
	r2, err := x3dh.Initiate(alice, without)
	if err != nil {
		t.Fatalf("Initiate (without OPK): %v", err)
	}
	if bytes.Equal(r1.SharedSecret, r2.SharedSecret) {
		t.Fatal("secret must mix in the one-time prekey")
	}
}

func TestInitiate_RejectsTamperedSignature(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, _, _ := makeBundle(t, bob, false)

	bundle.SignedPreKey.Signature[0] ^= 0x01
	if _, err := x3dh.Initiate(alice, bundle); !errors.Is(err, domain.ErrInvalidBundleSignature) {
		t.Fatalf("want ErrInvalidBundleSignature, got %v", err)
	}
}

func TestInitiate_RejectsTamperedPreKey(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, _, _ := makeBundle(t, bob, false)

	bundle.SignedPreKey.PublicKey[0] ^= 0x01
	if _, err := x3dh.Initiate(alice, bundle); !errors.Is(err, domain.ErrInvalidBundleSignature) {
		t.Fatalf("want ErrInvalidBundleSignature, got %v", err)
	}
}
