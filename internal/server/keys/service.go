// Package keys implements the server side of prekey bundle distribution:
// publishing bundles, handing them to session initiators, and replenishing
// the one-time pool.
package keys

import (
	"context"
	"crypto/ed25519"

	"github.com/rs/zerolog"

	"sealchat/internal/domain"
)

// Storage is the persistence the service needs.
type Storage interface {
	UpsertBundle(ctx context.Context, userID string, b domain.PreKeyBundle) error
	FetchAndConsumeOneTimeKey(ctx context.Context, userID string) (domain.FetchedBundle, error)
	AddOneTimePreKeys(ctx context.Context, userID string, keys []domain.OneTimePreKey) error
	CountOneTimePreKeys(ctx context.Context, userID string) (int, error)
}

// Service validates and serves prekey bundles.
type Service struct {
	store Storage
	log   zerolog.Logger
}

func NewService(store Storage, log zerolog.Logger) *Service {
	return &Service{store: store, log: log.With().Str("component", "keys").Logger()}
}

// Publish stores userID's bundle after checking the signed prekey signature.
// A bad signature is rejected here so the server never serves a bundle its
// clients would refuse.
func (s *Service) Publish(ctx context.Context, userID string, b domain.PreKeyBundle) error {
	if len(b.IdentityKey) != ed25519.PublicKeySize {
		return domain.ErrInvalidBundleSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(b.IdentityKey), b.SignedPreKey.PublicKey, b.SignedPreKey.Signature) {
		return domain.ErrInvalidBundleSignature
	}
	if err := s.store.UpsertBundle(ctx, userID, b); err != nil {
		return err
	}
	s.log.Info().Str("user", userID).Int("one_time_keys", len(b.OneTimePreKeys)).Msg("bundle published")
	return nil
}

// Fetch returns userID's bundle for a session initiator, consuming one
// one-time prekey if any remain.
func (s *Service) Fetch(ctx context.Context, userID string) (domain.FetchedBundle, error) {
	fb, err := s.store.FetchAndConsumeOneTimeKey(ctx, userID)
	if err != nil {
		return domain.FetchedBundle{}, err
	}
	if fb.OneTimePreKey == nil {
		s.log.Warn().Str("user", userID).Msg("one-time prekey pool exhausted")
	}
	return fb, nil
}

// Replenish appends keys to userID's one-time pool and returns the new total.
func (s *Service) Replenish(ctx context.Context, userID string, keys []domain.OneTimePreKey) (int, error) {
	if err := s.store.AddOneTimePreKeys(ctx, userID, keys); err != nil {
		return 0, err
	}
	n, err := s.store.CountOneTimePreKeys(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.log.Info().Str("user", userID).Int("added", len(keys)).Int("total", n).Msg("pool replenished")
	return n, nil
}

// Count reports userID's remaining one-time prekeys.
func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	return s.store.CountOneTimePreKeys(ctx, userID)
}
