package crypto_test

import (
	"testing"

	"sealchat/internal/crypto"
)

func TestSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	msg := []byte("signed prekey bytes")
	sig := crypto.SignEd25519(priv, msg)

	if !crypto.VerifyEd25519(pub, msg, sig) {
		t.Fatal("valid signature rejected")
	}
	sig[0] ^= 0x01
	if crypto.VerifyEd25519(pub, msg, sig) {
		t.Fatal("tampered signature accepted")
	}
}

// Converted identity keys must still agree under X25519: the DH of my
// converted private with your converted public equals yours with mine.
func TestIdentityConversion_DHAgreement(t *testing.T) {
	aPriv, aPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	bPriv, bPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}

	aDHPub, err := crypto.IdentityDHPublic(aPub.Slice())
	if err != nil {
		t.Fatalf("IdentityDHPublic: %v", err)
	}
	bDHPub, err := crypto.IdentityDHPublic(bPub.Slice())
	if err != nil {
		t.Fatalf("IdentityDHPublic: %v", err)
	}

	s1, err := crypto.DH(crypto.IdentityDHPrivate(aPriv), bDHPub)
	if err != nil {
		t.Fatalf("DH: %v", err)
	}
	s2, err := crypto.DH(crypto.IdentityDHPrivate(bPriv), aDHPub)
	if err != nil {
		t.Fatalf("DH: %v", err)
	}
	if s1 != s2 {
		t.Fatal("converted key pairs do not agree")
	}
}

func TestX25519_DHAgreement(t *testing.T) {
	aPriv, aPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	bPriv, bPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}

	s1, err := crypto.DH(aPriv, bPub)
	if err != nil {
		t.Fatalf("DH: %v", err)
	}
	s2, err := crypto.DH(bPriv, aPub)
	if err != nil {
		t.Fatalf("DH: %v", err)
	}
	if s1 != s2 {
		t.Fatal("shared secrets differ")
	}
}

func TestFingerprint_Stable(t *testing.T) {
	_, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	if crypto.FingerprintKey(pub.Slice()) != crypto.FingerprintKey(pub.Slice()) {
		t.Fatal("fingerprint must be deterministic")
	}
}
