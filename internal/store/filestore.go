package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"sealchat/internal/domain"
	"sealchat/internal/util/memzero"
)

const (
	identityFile = "identity.enc"
	spkFile      = "signed_prekey.enc"
	opkFile      = "one_time_prekeys.enc"
	ratchetFile  = "ratchet_state.enc"
	metaFile     = "vault_meta.enc"

	saltBytes = 16
)

func scryptParams() (N, r, p int) { return 1 << 15, 8, 1 }

// FileStore keeps client secrets on disk, one encrypted JSON file per
// concern, rooted at dir.
type FileStore struct {
	dir        string
	passphrase string
	mu         sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir, sealing with passphrase.
func NewFileStore(dir, passphrase string) *FileStore {
	return &FileStore{dir: dir, passphrase: passphrase}
}

type spkRecord struct {
	KeyID int      `json:"keyId"`
	Priv  [32]byte `json:"priv"`
	Pub   [32]byte `json:"pub"`
	Sig   []byte   `json:"sig"`
}

type opkRecord struct {
	Priv [32]byte `json:"priv"`
	Pub  [32]byte `json:"pub"`
}

type vaultMeta struct {
	NextOneTimePreKeyID int `json:"nextOneTimePreKeyId"`
}

// ---------- Identity ----------

func (s *FileStore) SaveIdentity(id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeEnc(identityFile, id)
}

func (s *FileStore) LoadIdentity() (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id domain.Identity
	ok, err := s.readEnc(identityFile, &id)
	return id, ok, err
}

// ---------- Signed prekey ----------

func (s *FileStore) SaveSignedPreKeyPair(pair domain.SignedPreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := spkRecord{
		KeyID: pair.KeyID,
		Priv:  pair.Priv,
		Pub:   pair.Pub,
		Sig:   append([]byte(nil), pair.Signature...),
	}
	return s.writeEnc(spkFile, rec)
}

func (s *FileStore) CurrentSignedPreKeyPair() (domain.SignedPreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec spkRecord
	ok, err := s.readEnc(spkFile, &rec)
	if err != nil || !ok {
		return domain.SignedPreKeyPair{}, ok, err
	}
	return domain.SignedPreKeyPair{
		KeyID:     rec.KeyID,
		Priv:      rec.Priv,
		Pub:       rec.Pub,
		Signature: rec.Sig,
	}, true, nil
}

// ---------- One-time prekeys ----------

func (s *FileStore) SaveOneTimePreKeyPairs(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[int]opkRecord{}
	if _, err := s.readEnc(opkFile, &m); err != nil {
		return err
	}
	next := 1
	var meta vaultMeta
	if _, err := s.readEnc(metaFile, &meta); err != nil {
		return err
	}
	if meta.NextOneTimePreKeyID > next {
		next = meta.NextOneTimePreKeyID
	}
	for _, p := range pairs {
		m[p.KeyID] = opkRecord{Priv: p.Priv, Pub: p.Pub}
		if p.KeyID >= next {
			next = p.KeyID + 1
		}
	}
	if err := s.writeEnc(opkFile, m); err != nil {
		return err
	}
	return s.writeEnc(metaFile, vaultMeta{NextOneTimePreKeyID: next})
}

func (s *FileStore) ConsumeOneTimePreKeyPair(keyID int) (domain.OneTimePreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[int]opkRecord{}
	if _, err := s.readEnc(opkFile, &m); err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	rec, ok := m[keyID]
	if !ok {
		return domain.OneTimePreKeyPair{}, false, nil
	}
	delete(m, keyID)
	if err := s.writeEnc(opkFile, m); err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	return domain.OneTimePreKeyPair{KeyID: keyID, Priv: rec.Priv, Pub: rec.Pub}, true, nil
}

func (s *FileStore) NextOneTimePreKeyID() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta vaultMeta
	if _, err := s.readEnc(metaFile, &meta); err != nil {
		return 0, err
	}
	if meta.NextOneTimePreKeyID == 0 {
		return 1, nil
	}
	return meta.NextOneTimePreKeyID, nil
}

// ---------- Ratchet state ----------

func (s *FileStore) SaveRatchetState(peerID string, st domain.RatchetState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[string]domain.RatchetState{}
	if _, err := s.readEnc(ratchetFile, &m); err != nil {
		return err
	}
	m[peerID] = st
	return s.writeEnc(ratchetFile, m)
}

func (s *FileStore) LoadRatchetState(peerID string) (domain.RatchetState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[string]domain.RatchetState{}
	if _, err := s.readEnc(ratchetFile, &m); err != nil {
		return domain.RatchetState{}, false, err
	}
	st, ok := m[peerID]
	return st, ok, nil
}

// ---------- encrypted JSON I/O ----------

type sealedFile struct {
	Salt []byte `json:"salt"`
	CT   []byte `json:"ct"`
}

// readEnc loads and decrypts path into out; a missing file is (false, nil).
func (s *FileStore) readEnc(name string, out any) (bool, error) {
	blob, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var sf sealedFile
	if err := json.Unmarshal(blob, &sf); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	key, err := s.deriveKey(sf.Salt)
	if err != nil {
		return false, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return false, err
	}
	nonce := make([]byte, aead.NonceSize())
	raw, err := aead.Open(nil, nonce, sf.CT, sf.Salt)
	if err != nil {
		return false, fmt.Errorf("unseal %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// writeEnc encrypts v under a fresh salt and writes via temp-file rename.
func (s *FileStore) writeEnc(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	key, err := s.deriveKey(salt)
	if err != nil {
		return err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return err
	}
	// The salt is fresh per write, so the derived key is unique and a zero
	// nonce is safe; the salt also rides along as associated data.
	nonce := make([]byte, aead.NonceSize())
	ct := aead.Seal(nil, nonce, raw, salt)

	blob, err := json.Marshal(sealedFile{Salt: salt, CT: ct})
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) deriveKey(salt []byte) ([]byte, error) {
	N, r, p := scryptParams()
	return scrypt.Key([]byte(s.passphrase), salt, N, r, p, chacha20poly1305.KeySize)
}

// Compile-time assertions.
var (
	_ domain.KeyStore     = (*FileStore)(nil)
	_ domain.RatchetStore = (*FileStore)(nil)
)
