package domain

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is a signing public key.
type Ed25519Public [32]byte

func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is a signing private key (ed25519.PrivateKey layout).
type Ed25519Private [64]byte

func (k Ed25519Private) Slice() []byte { return k[:] }

// Identity is the long-term signing key pair. It is created once per user and
// never rotated. The Diffie-Hellman halves used by X3DH are derived from it
// on demand (see crypto.IdentityDHPrivate / crypto.IdentityDHPublic).
type Identity struct {
	EdPub  Ed25519Public
	EdPriv Ed25519Private
}

// SignedPreKey is the public half of the current medium-lived prekey together
// with its Ed25519 signature by the identity key.
type SignedPreKey struct {
	KeyID     int    `json:"keyId"`
	PublicKey []byte `json:"publicKey"`
	Signature []byte `json:"signature"`
}

// SignedPreKeyPair is the locally stored signed prekey with its private half.
type SignedPreKeyPair struct {
	KeyID     int
	Priv      X25519Private
	Pub       X25519Public
	Signature []byte
}

// OneTimePreKey is a published one-time prekey (public half only).
type OneTimePreKey struct {
	KeyID     int    `json:"keyId"`
	PublicKey []byte `json:"publicKey"`
}

// OneTimePreKeyPair is a locally stored one-time prekey with its private half.
type OneTimePreKeyPair struct {
	KeyID int
	Priv  X25519Private
	Pub   X25519Public
}

// PreKeyBundle is the upload payload: the full bundle a user publishes.
// The server holds at most one per user (upsert semantics).
type PreKeyBundle struct {
	IdentityKey    []byte          `json:"identityKey"`
	SignedPreKey   SignedPreKey    `json:"signedPreKey"`
	OneTimePreKeys []OneTimePreKey `json:"oneTimePreKeys"`
}

// FetchedBundle is what an initiator receives: identity key, signed prekey,
// and at most one one-time prekey, atomically consumed server-side.
type FetchedBundle struct {
	UserID        string         `json:"userId"`
	IdentityKey   []byte         `json:"identityKey"`
	SignedPreKey  SignedPreKey   `json:"signedPreKey"`
	OneTimePreKey *OneTimePreKey `json:"oneTimePreKey"`
}

// MessageHeader travels with every ciphertext. The bootstrap fields are set
// only on the first message of a freshly initiated session; they are the only
// way the responder can replicate the X3DH computation.
type MessageHeader struct {
	RatchetPublicKey    []byte `json:"ratchetPublicKey"`
	MessageNumber       uint32 `json:"messageNumber"`
	PreviousChainLength uint32 `json:"previousChainLength"`

	IdentityKey         []byte `json:"identityKey,omitempty"`
	EphemeralKey        []byte `json:"ephemeralKey,omitempty"`
	UsedOneTimePreKeyID *int   `json:"usedOneTimePreKeyId,omitempty"`
}

// Bootstrap reports whether the header carries X3DH bootstrap material.
func (h MessageHeader) Bootstrap() bool {
	return len(h.IdentityKey) > 0 && len(h.EphemeralKey) > 0
}

// EncryptedEnvelope is the unit exchanged over transport.
type EncryptedEnvelope struct {
	Header     MessageHeader `json:"header"`
	Ciphertext []byte        `json:"ciphertext"`
	Nonce      []byte        `json:"nonce"`
}

// PendingHandshake is the X3DH output an initiator must echo in its first
// message header. Cleared after the first send.
type PendingHandshake struct {
	EphemeralKey        []byte `json:"ephemeralKey"`
	UsedOneTimePreKeyID *int   `json:"usedOneTimePreKeyId,omitempty"`
}

// RatchetState is the per-peer Double Ratchet state. One instance exists per
// ordered (self, peer) pair; it is mutated on every encrypt/decrypt and
// persisted after each mutation.
//
// Message numbers within a chain increase monotonically and reset to zero
// only on a DH ratchet step.
type RatchetState struct {
	RootKey []byte `json:"rootKey"`

	SendChainKey []byte `json:"sendChainKey,omitempty"`
	RecvChainKey []byte `json:"recvChainKey,omitempty"`

	SendRatchetPriv X25519Private `json:"sendRatchetPriv"`
	SendRatchetPub  X25519Public  `json:"sendRatchetPub"`

	// RecvRatchetPub is nil until the first inbound ratchet key is seen.
	RecvRatchetPub []byte `json:"recvRatchetPub,omitempty"`

	SendMessageNumber uint32 `json:"sendMessageNumber"`
	RecvMessageNumber uint32 `json:"recvMessageNumber"`
	PrevChainLength   uint32 `json:"prevChainLength"`

	Handshake *PendingHandshake `json:"handshake,omitempty"`
}

// Chat is a two-party conversation row held by the relay.
type Chat struct {
	ID            string `json:"id"`
	ParticipantA  string `json:"participantA"`
	ParticipantB  string `json:"participantB"`
	LastMessageAt int64  `json:"lastMessageAt"`
}

// Other returns the participant that is not userID.
func (c Chat) Other(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// Has reports whether userID is one of the chat's participants.
func (c Chat) Has(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// ContactUser is a directory entry returned by the contact routes.
type ContactUser struct {
	UserID   string `json:"userId"`
	Phone    string `json:"phone"`
	IsOnline bool   `json:"isOnline"`
}

// Message is a persisted ciphertext row. The relay never sees plaintext.
type Message struct {
	ID         string        `json:"id"`
	ChatID     string        `json:"chatId"`
	SenderID   string        `json:"senderId"`
	Header     MessageHeader `json:"header"`
	Ciphertext []byte        `json:"ciphertext"`
	Nonce      []byte        `json:"nonce"`
	Status     string        `json:"status"`
	CreatedAt  int64         `json:"createdAt"`
}

// Message delivery states.
const (
	MessageSent      = "SENT"
	MessageDelivered = "DELIVERED"
	MessageRead      = "READ"
)
