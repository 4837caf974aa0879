// Package storage is the relay's sqlite persistence layer: users, OTP
// codes, chats, ciphertext message rows, and prekey bundles. The relay
// stores only ciphertext and routing metadata; nothing here can decrypt a
// message.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the relay database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serialises writes per connection; a single connection
	// avoids SQLITE_BUSY between concurrent request handlers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	phone       TEXT NOT NULL UNIQUE,
	is_online   INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS otp_codes (
	phone       TEXT PRIMARY KEY,
	code        TEXT NOT NULL,
	expires_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	user_id         TEXT NOT NULL REFERENCES users(id),
	contact_user_id TEXT NOT NULL REFERENCES users(id),
	created_at      INTEGER NOT NULL,
	PRIMARY KEY (user_id, contact_user_id)
);

CREATE TABLE IF NOT EXISTS chats (
	id              TEXT PRIMARY KEY,
	participant_a   TEXT NOT NULL REFERENCES users(id),
	participant_b   TEXT NOT NULL REFERENCES users(id),
	last_message_at INTEGER NOT NULL DEFAULT 0,
	UNIQUE(participant_a, participant_b)
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	chat_id     TEXT NOT NULL REFERENCES chats(id),
	sender_id   TEXT NOT NULL REFERENCES users(id),
	header      TEXT NOT NULL,
	ciphertext  BLOB NOT NULL,
	nonce       BLOB NOT NULL,
	status      TEXT NOT NULL DEFAULT 'SENT',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);

CREATE TABLE IF NOT EXISTS prekey_bundles (
	user_id        TEXT PRIMARY KEY REFERENCES users(id),
	identity_key   BLOB NOT NULL,
	spk_key_id     INTEGER NOT NULL,
	spk_public     BLOB NOT NULL,
	spk_signature  BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS one_time_prekeys (
	user_id     TEXT NOT NULL REFERENCES users(id),
	key_id      INTEGER NOT NULL,
	public_key  BLOB NOT NULL,
	PRIMARY KEY (user_id, key_id)
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// tx runs fn inside a transaction.
func (s *Store) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
