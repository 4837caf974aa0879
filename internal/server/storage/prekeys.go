package storage

import (
	"context"
	"database/sql"
	"errors"

	"sealchat/internal/domain"
)

// UpsertBundle replaces userID's bundle wholesale: identity key, signed
// prekey, and the full one-time pool. Replace, not merge.
func (s *Store) UpsertBundle(ctx context.Context, userID string, b domain.PreKeyBundle) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO prekey_bundles (user_id, identity_key, spk_key_id, spk_public, spk_signature)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET
				identity_key = excluded.identity_key,
				spk_key_id = excluded.spk_key_id,
				spk_public = excluded.spk_public,
				spk_signature = excluded.spk_signature`,
			userID, b.IdentityKey, b.SignedPreKey.KeyID, b.SignedPreKey.PublicKey, b.SignedPreKey.Signature)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM one_time_prekeys WHERE user_id = ?`, userID); err != nil {
			return err
		}
		for _, k := range b.OneTimePreKeys {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO one_time_prekeys (user_id, key_id, public_key) VALUES (?, ?, ?)`,
				userID, k.KeyID, k.PublicKey); err != nil {
				return err
			}
		}
		return nil
	})
}

// FetchAndConsumeOneTimeKey returns userID's bundle, atomically removing one
// one-time prekey when the pool is non-empty. The pop is a single
// DELETE..RETURNING statement, so two concurrent fetchers can never receive
// the same key. An exhausted pool degrades to identity + signed prekey;
// a missing bundle is domain.ErrBundleNotFound.
func (s *Store) FetchAndConsumeOneTimeKey(ctx context.Context, userID string) (domain.FetchedBundle, error) {
	out := domain.FetchedBundle{UserID: userID}

	row := s.db.QueryRowContext(ctx,
		`SELECT identity_key, spk_key_id, spk_public, spk_signature
		 FROM prekey_bundles WHERE user_id = ?`, userID)
	err := row.Scan(&out.IdentityKey, &out.SignedPreKey.KeyID, &out.SignedPreKey.PublicKey, &out.SignedPreKey.Signature)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FetchedBundle{}, domain.ErrBundleNotFound
	}
	if err != nil {
		return domain.FetchedBundle{}, err
	}

	var otk domain.OneTimePreKey
	err = s.db.QueryRowContext(ctx,
		`DELETE FROM one_time_prekeys
		 WHERE rowid = (SELECT rowid FROM one_time_prekeys WHERE user_id = ? ORDER BY key_id LIMIT 1)
		 RETURNING key_id, public_key`, userID).
		Scan(&otk.KeyID, &otk.PublicKey)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Pool exhausted: 3-DH fallback.
	case err != nil:
		return domain.FetchedBundle{}, err
	default:
		out.OneTimePreKey = &otk
	}
	return out, nil
}

// AddOneTimePreKeys appends replenishment keys to userID's pool.
func (s *Store) AddOneTimePreKeys(ctx context.Context, userID string, keys []domain.OneTimePreKey) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO one_time_prekeys (user_id, key_id, public_key) VALUES (?, ?, ?)`,
				userID, k.KeyID, k.PublicKey); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountOneTimePreKeys returns the remaining pool size for userID.
func (s *Store) CountOneTimePreKeys(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM one_time_prekeys WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}
