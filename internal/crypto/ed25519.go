package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/agl/ed25519/extra25519"

	"sealchat/internal/domain"
)

// ErrBadIdentityKey means an Ed25519 public key could not be mapped onto
// Curve25519 (not a valid curve point).
var ErrBadIdentityKey = errors.New("identity key is not convertible to curve25519")

// GenerateEd25519 returns a new Ed25519 signing key pair.
func GenerateEd25519() (priv domain.Ed25519Private, pub domain.Ed25519Public, err error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return priv, pub, err
	}
	copy(priv[:], sk)
	copy(pub[:], pk)
	return priv, pub, nil
}

// SignEd25519 signs msg with priv and returns the signature.
func SignEd25519(priv domain.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv[:]), msg)
}

// VerifyEd25519 verifies sig over msg with pub.
func VerifyEd25519(pub domain.Ed25519Public, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

// IdentityDHPrivate converts an Ed25519 signing private key into the X25519
// private key used for the identity DH terms of X3DH. This is the standard
// birational map (crypto_sign_ed25519_sk_to_curve25519), not a truncation
// of the seed.
func IdentityDHPrivate(ed domain.Ed25519Private) domain.X25519Private {
	var src [64]byte
	copy(src[:], ed[:])
	var dst [32]byte
	extra25519.PrivateKeyToCurve25519(&dst, &src)
	return domain.X25519Private(dst)
}

// IdentityDHPublic converts an Ed25519 signing public key into its X25519
// counterpart. Fails if the bytes are not a valid Edwards point.
func IdentityDHPublic(ed []byte) (domain.X25519Public, error) {
	var src [32]byte
	if len(ed) != 32 {
		return domain.X25519Public{}, ErrBadIdentityKey
	}
	copy(src[:], ed)
	var dst [32]byte
	if !extra25519.PublicKeyToCurve25519(&dst, &src) {
		return domain.X25519Public{}, ErrBadIdentityKey
	}
	return domain.X25519Public(dst), nil
}
