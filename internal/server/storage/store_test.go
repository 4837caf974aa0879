package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sealchat/internal/domain"
	"sealchat/internal/server/storage"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUser(t *testing.T, s *storage.Store, phone string) *storage.User {
	t.Helper()
	u, err := s.EnsureUser(context.Background(), phone)
	require.NoError(t, err)
	return u
}

func sampleBundle(n int) domain.PreKeyBundle {
	b := domain.PreKeyBundle{
		IdentityKey: make([]byte, 32),
		SignedPreKey: domain.SignedPreKey{
			KeyID:     42,
			PublicKey: make([]byte, 32),
			Signature: make([]byte, 64),
		},
	}
	for i := 1; i <= n; i++ {
		b.OneTimePreKeys = append(b.OneTimePreKeys, domain.OneTimePreKey{
			KeyID:     i,
			PublicKey: []byte{byte(i)},
		})
	}
	return b
}

func TestEnsureUser_Idempotent(t *testing.T) {
	s := openStore(t)
	first := mustUser(t, s, "+61400000001")
	second := mustUser(t, s, "+61400000001")
	require.Equal(t, first.ID, second.ID)

	got, err := s.UserByID(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, "+61400000001", got.Phone)
}

func TestOTP_ConsumeOnce(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Minute).Unix()

	require.NoError(t, s.SaveOTP(ctx, "+1555", "123456", expires))

	ok, err := s.ConsumeOTP(ctx, "+1555", "999999")
	require.NoError(t, err)
	require.False(t, ok, "wrong code must not consume")

	ok, err = s.ConsumeOTP(ctx, "+1555", "123456")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.ConsumeOTP(ctx, "+1555", "123456")
	require.NoError(t, err)
	require.False(t, ok, "code is single-use")
}

func TestOTP_Expired(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveOTP(ctx, "+1555", "123456", time.Now().Add(-time.Minute).Unix()))

	ok, err := s.ConsumeOTP(ctx, "+1555", "123456")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEnsureChat_OrderIndependent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	a := mustUser(t, s, "+1")
	b := mustUser(t, s, "+2")

	c1, err := s.EnsureChat(ctx, a.ID, b.ID)
	require.NoError(t, err)
	c2, err := s.EnsureChat(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.Equal(t, c1.ID, c2.ID)

	chats, err := s.ChatsForUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, b.ID, chats[0].Other(a.ID))
}

func TestMessages_InsertAndStatus(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	a := mustUser(t, s, "+1")
	b := mustUser(t, s, "+2")
	chat, err := s.EnsureChat(ctx, a.ID, b.ID)
	require.NoError(t, err)

	msg := domain.Message{
		ID:         "m1",
		ChatID:     chat.ID,
		SenderID:   a.ID,
		Header:     domain.MessageHeader{RatchetPublicKey: make([]byte, 32), MessageNumber: 0},
		Ciphertext: []byte{1, 2},
		Nonce:      make([]byte, 24),
		Status:     domain.MessageSent,
		CreatedAt:  time.Now().UnixMilli(),
	}
	require.NoError(t, s.InsertMessage(ctx, msg))
	require.NoError(t, s.UpdateMessageStatus(ctx, "m1", domain.MessageDelivered))

	got, err := s.MessageByID(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, domain.MessageDelivered, got.Status)
	require.Equal(t, msg.Header.RatchetPublicKey, got.Header.RatchetPublicKey)

	list, err := s.MessagesForChat(ctx, chat.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestBundle_FetchMissing(t *testing.T) {
	s := openStore(t)
	_, err := s.FetchAndConsumeOneTimeKey(context.Background(), "nobody")
	require.ErrorIs(t, err, domain.ErrBundleNotFound)
}

func TestBundle_UpsertReplacesPool(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "+1")

	require.NoError(t, s.UpsertBundle(ctx, u.ID, sampleBundle(3)))
	n, err := s.CountOneTimePreKeys(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// Re-upload replaces, not merges.
	require.NoError(t, s.UpsertBundle(ctx, u.ID, sampleBundle(1)))
	n, err = s.CountOneTimePreKeys(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestBundle_PoolDrainsToFallback(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "+1")
	require.NoError(t, s.UpsertBundle(ctx, u.ID, sampleBundle(1)))

	fb, err := s.FetchAndConsumeOneTimeKey(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, fb.OneTimePreKey)
	require.Equal(t, 42, fb.SignedPreKey.KeyID)

	fb, err = s.FetchAndConsumeOneTimeKey(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, fb.OneTimePreKey, "exhausted pool degrades to identity + signed prekey")
}

func TestBundle_ConcurrentFetchNeverDoublesAKey(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "+1")

	const pool = 3
	const fetchers = 8
	require.NoError(t, s.UpsertBundle(ctx, u.ID, sampleBundle(pool)))

	var wg sync.WaitGroup
	results := make(chan *domain.OneTimePreKey, fetchers)
	for i := 0; i < fetchers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fb, err := s.FetchAndConsumeOneTimeKey(ctx, u.ID)
			if err != nil {
				t.Error(err)
				return
			}
			results <- fb.OneTimePreKey
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int]bool{}
	consumed := 0
	for opk := range results {
		if opk == nil {
			continue
		}
		require.False(t, seen[opk.KeyID], "key %d handed out twice", opk.KeyID)
		seen[opk.KeyID] = true
		consumed++
	}
	require.Equal(t, pool, consumed)

	n, err := s.CountOneTimePreKeys(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestReplenish_AppendsKeys(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "+1")
	require.NoError(t, s.UpsertBundle(ctx, u.ID, sampleBundle(2)))

	extra := []domain.OneTimePreKey{
		{KeyID: 10, PublicKey: []byte{10}},
		{KeyID: 11, PublicKey: []byte{11}},
	}
	require.NoError(t, s.AddOneTimePreKeys(ctx, u.ID, extra))

	n, err := s.CountOneTimePreKeys(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}
