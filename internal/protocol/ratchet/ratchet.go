package ratchet

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"sealchat/internal/crypto"
	"sealchat/internal/domain"
	"sealchat/internal/util/memzero"
)

const (
	keySize   = 32
	nonceSize = chacha20poly1305.NonceSizeX
)

var (
	rootInfo  = []byte("sealchat-ratchet-root")
	nonceInfo = []byte("sealchat-ratchet-nonce")
)

// Chain-KDF labels. Distinct fixed bytes keep the chain key and the message
// key on separate one-way branches.
var (
	labelChain   = []byte{0x01}
	labelMessage = []byte{0x02}
)

// ErrChainUninitialised is returned when encrypting before any chain key
// exists, i.e. a responder that has not yet received the first message.
var ErrChainUninitialised = errors.New("ratchet chain key is uninitialised")

// InitAsInitiator seeds a sending chain: a fresh ratchet key pair, one
// root-KDF step against the peer's signed prekey. The receive chain stays
// unset until the first inbound message.
func InitAsInitiator(secret []byte, peerRatchetPub domain.X25519Public) (domain.RatchetState, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}
	dh, err := crypto.DH(priv, peerRatchetPub)
	if err != nil {
		return domain.RatchetState{}, err
	}
	root, sendCK := kdfRoot(secret, dh[:])
	memzero.Zero(dh[:])

	return domain.RatchetState{
		RootKey:         root,
		SendChainKey:    sendCK,
		SendRatchetPriv: priv,
		SendRatchetPub:  pub,
		RecvRatchetPub:  append([]byte(nil), peerRatchetPub[:]...),
	}, nil
}

// InitAsResponder sets the root key directly from the shared secret. The
// responder's signed prekey pair doubles as its first ratchet key pair; the
// first inbound message triggers the first DH ratchet step.
func InitAsResponder(secret []byte, ownPriv domain.X25519Private, ownPub domain.X25519Public) domain.RatchetState {
	return domain.RatchetState{
		RootKey:         append([]byte(nil), secret...),
		SendRatchetPriv: ownPriv,
		SendRatchetPub:  ownPub,
	}
}

// Encrypt advances the sending chain and seals plaintext under the derived
// message key. The nonce is derived deterministically from the message key
// and carried in the envelope.
func Encrypt(st *domain.RatchetState, plaintext []byte) (domain.MessageHeader, []byte, []byte, error) {
	if len(st.SendChainKey) == 0 {
		return domain.MessageHeader{}, nil, nil, ErrChainUninitialised
	}

	nextCK, mk := kdfChain(st.SendChainKey)
	nonce := deriveNonce(mk)

	aead, err := chacha20poly1305.NewX(mk)
	if err != nil {
		return domain.MessageHeader{}, nil, nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	memzero.Zero(mk)

	header := domain.MessageHeader{
		RatchetPublicKey:    append([]byte(nil), st.SendRatchetPub[:]...),
		MessageNumber:       st.SendMessageNumber,
		PreviousChainLength: st.PrevChainLength,
	}

	st.SendChainKey = nextCK
	st.SendMessageNumber++
	return header, ct, nonce, nil
}

// Decrypt opens an envelope. A DH ratchet step runs first if and only if the
// header carries a ratchet public key different from the last recorded one;
// repeated messages on an unchanged key only advance the symmetric chain.
//
// Stored state is mutated only on success; an AEAD failure returns
// domain.ErrDecryptionFailed with st untouched.
func Decrypt(st *domain.RatchetState, header domain.MessageHeader, ciphertext, nonce []byte) ([]byte, error) {
	if len(header.RatchetPublicKey) != keySize {
		return nil, domain.ErrDecryptionFailed
	}

	scratch := cloneState(st)

	if len(scratch.RecvRatchetPub) == 0 || !bytes.Equal(scratch.RecvRatchetPub, header.RatchetPublicKey) {
		if err := dhStep(&scratch, header.RatchetPublicKey); err != nil {
			return nil, err
		}
	}

	if len(scratch.RecvChainKey) == 0 {
		return nil, ErrChainUninitialised
	}
	nextCK, mk := kdfChain(scratch.RecvChainKey)

	aead, err := chacha20poly1305.NewX(mk)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	memzero.Zero(mk)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}

	scratch.RecvChainKey = nextCK
	scratch.RecvMessageNumber++
	*st = scratch
	return plaintext, nil
}

// dhStep re-keys both directions from the peer's new ratchet public key:
// first the receive chain with our current pair, then the send chain with a
// freshly generated one. Message numbers reset for the new chains.
func dhStep(st *domain.RatchetState, theirPub []byte) error {
	var peer domain.X25519Public
	copy(peer[:], theirPub)

	dhRecv, err := crypto.DH(st.SendRatchetPriv, peer)
	if err != nil {
		return err
	}
	root, recvCK := kdfRoot(st.RootKey, dhRecv[:])
	memzero.Zero(dhRecv[:])

	newPriv, newPub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	dhSend, err := crypto.DH(newPriv, peer)
	if err != nil {
		return err
	}
	root2, sendCK := kdfRoot(root, dhSend[:])
	memzero.Zero(dhSend[:])

	st.PrevChainLength = st.SendMessageNumber
	st.SendMessageNumber = 0
	st.RecvMessageNumber = 0
	st.RootKey = root2
	st.RecvRatchetPub = append([]byte(nil), theirPub...)
	st.RecvChainKey = recvCK
	st.SendRatchetPriv, st.SendRatchetPub = newPriv, newPub
	st.SendChainKey = sendCK
	return nil
}

// kdfRoot derives (newRootKey, chainKey) from the current root key and a DH
// output, domain-separated from every other KDF in the protocol.
func kdfRoot(root, dh []byte) (newRoot, chainKey []byte) {
	r := hkdf.New(sha256.New, dh, root, rootInfo)
	newRoot = make([]byte, keySize)
	chainKey = make([]byte, keySize)
	_, _ = io.ReadFull(r, newRoot)
	_, _ = io.ReadFull(r, chainKey)
	return
}

// kdfChain derives (newChainKey, messageKey) from a chain key. One-way: the
// message key cannot be used to recover the chain key.
func kdfChain(ck []byte) (nextCK, mk []byte) {
	return hmacSum(ck, labelChain), hmacSum(ck, labelMessage)
}

// deriveNonce expands a message key into the deterministic AEAD nonce.
func deriveNonce(mk []byte) []byte {
	nonce := make([]byte, nonceSize)
	r := hkdf.New(sha256.New, mk, nil, nonceInfo)
	_, _ = io.ReadFull(r, nonce)
	return nonce
}

func hmacSum(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func cloneState(st *domain.RatchetState) domain.RatchetState {
	out := *st
	out.RootKey = append([]byte(nil), st.RootKey...)
	out.SendChainKey = append([]byte(nil), st.SendChainKey...)
	out.RecvChainKey = append([]byte(nil), st.RecvChainKey...)
	out.RecvRatchetPub = append([]byte(nil), st.RecvRatchetPub...)
	if st.Handshake != nil {
		hs := *st.Handshake
		out.Handshake = &hs
	}
	return out
}
