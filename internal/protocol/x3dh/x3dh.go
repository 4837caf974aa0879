package x3dh

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"sealchat/internal/crypto"
	"sealchat/internal/domain"
	"sealchat/internal/util/memzero"
)

// kdfInfo is the fixed domain-separation label for the shared-secret KDF.
var kdfInfo = []byte("sealchat-x3dh-v1")

// Result is the initiator's output. EphemeralPub and UsedOneTimeKeyID must
// travel in the first message header so the responder can replicate the
// computation.
type Result struct {
	SharedSecret     []byte
	EphemeralPub     domain.X25519Public
	UsedOneTimeKeyID *int
}

// Initiate derives the shared secret from a fetched bundle.
//
// The signature over the signed prekey is verified before any DH work; a
// failure is fatal to this session attempt and the bundle must be discarded.
func Initiate(id domain.Identity, bundle domain.FetchedBundle) (Result, error) {
	var peerEdPub domain.Ed25519Public
	if len(bundle.IdentityKey) != 32 {
		return Result{}, domain.ErrInvalidBundleSignature
	}
	copy(peerEdPub[:], bundle.IdentityKey)

	if !crypto.VerifyEd25519(peerEdPub, bundle.SignedPreKey.PublicKey, bundle.SignedPreKey.Signature) {
		return Result{}, domain.ErrInvalidBundleSignature
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return Result{}, err
	}

	selfDHPriv := crypto.IdentityDHPrivate(id.EdPriv)
	peerDHPub, err := crypto.IdentityDHPublic(bundle.IdentityKey)
	if err != nil {
		return Result{}, err
	}

	var peerSPK domain.X25519Public
	copy(peerSPK[:], bundle.SignedPreKey.PublicKey)

	dh1, err := crypto.DH(selfDHPriv, peerSPK) // DH(IKa, SPKb)
	if err != nil {
		return Result{}, err
	}
	dh2, err := crypto.DH(ephPriv, peerDHPub) // DH(EKa, IKb)
	if err != nil {
		return Result{}, err
	}
	dh3, err := crypto.DH(ephPriv, peerSPK) // DH(EKa, SPKb)
	if err != nil {
		return Result{}, err
	}

	transcript := make([]byte, 0, 32*4)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)

	var usedID *int
	if bundle.OneTimePreKey != nil {
		var peerOPK domain.X25519Public
		copy(peerOPK[:], bundle.OneTimePreKey.PublicKey)
		dh4, err := crypto.DH(ephPriv, peerOPK) // DH(EKa, OPKb)
		if err != nil {
			return Result{}, err
		}
		transcript = append(transcript, dh4[:]...)
		keyID := bundle.OneTimePreKey.KeyID
		usedID = &keyID
	}

	secret := derive(transcript)
	memzero.Zero(transcript)

	return Result{SharedSecret: secret, EphemeralPub: ephPub, UsedOneTimeKeyID: usedID}, nil
}

// Respond mirrors the initiator's computation from the responder's side.
// opkPriv is nil when the first message referenced no one-time prekey.
func Respond(
	id domain.Identity,
	spkPriv domain.X25519Private,
	opkPriv *domain.X25519Private,
	peerIdentityKey []byte,
	peerEphemeralKey []byte,
) ([]byte, error) {
	peerDHPub, err := crypto.IdentityDHPublic(peerIdentityKey)
	if err != nil {
		return nil, err
	}
	var peerEph domain.X25519Public
	if len(peerEphemeralKey) != 32 {
		return nil, domain.ErrNoSession
	}
	copy(peerEph[:], peerEphemeralKey)

	selfDHPriv := crypto.IdentityDHPrivate(id.EdPriv)

	dh1, err := crypto.DH(spkPriv, peerDHPub) // DH(SPKb, IKa)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(selfDHPriv, peerEph) // DH(IKb, EKa)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(spkPriv, peerEph) // DH(SPKb, EKa)
	if err != nil {
		return nil, err
	}

	transcript := make([]byte, 0, 32*4)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)

	if opkPriv != nil {
		dh4, err := crypto.DH(*opkPriv, peerEph) // DH(OPKb, EKa)
		if err != nil {
			return nil, err
		}
		transcript = append(transcript, dh4[:]...)
	}

	secret := derive(transcript)
	memzero.Zero(transcript)
	return secret, nil
}

func derive(transcript []byte) []byte {
	out := make([]byte, 32)
	r := hkdf.New(sha256.New, transcript, nil, kdfInfo)
	_, _ = io.ReadFull(r, out)
	return out
}
