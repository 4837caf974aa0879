package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"sealchat/internal/domain"
	"sealchat/internal/keyvault"
	"sealchat/internal/relay"
	"sealchat/internal/server/auth"
	"sealchat/internal/server/httpapi"
	"sealchat/internal/server/keys"
	"sealchat/internal/server/storage"
	"sealchat/internal/store"
)

// captureGateway stashes the last OTP code instead of sending SMS.
type captureGateway struct {
	code string
}

func (g *captureGateway) Send(_ context.Context, _, code string) error {
	g.code = code
	return nil
}

type fixture struct {
	server  *httptest.Server
	gateway *captureGateway
	store   *storage.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := zerolog.Nop()
	gateway := &captureGateway{}
	issuer := auth.NewIssuer([]byte("test-secret"), time.Hour)
	otp := auth.NewOTP(st, issuer, gateway, time.Minute, log)
	api := httpapi.NewAPI(st, keys.NewService(st, log), otp, log)

	srv := httptest.NewServer(api.Router(issuer, http.NotFoundHandler()))
	t.Cleanup(srv.Close)
	return &fixture{server: srv, gateway: gateway, store: st}
}

// login runs the OTP flow for phone and returns an authenticated client.
func (f *fixture) login(t *testing.T, phone string) (*relay.Client, string) {
	t.Helper()
	ctx := context.Background()

	c := relay.NewClient(f.server.URL, "")
	require.NoError(t, c.RequestOTP(ctx, phone))
	token, userID, err := c.VerifyOTP(ctx, phone, f.gateway.code)
	require.NoError(t, err)
	c.Token = token
	return c, userID
}

func uploadBundle(t *testing.T, c *relay.Client) domain.PreKeyBundle {
	t.Helper()
	vault := keyvault.New(store.NewFileStore(t.TempDir(), "pass"))
	bundle, err := vault.BuildUploadBundle(3)
	require.NoError(t, err)
	require.NoError(t, c.UploadBundle(context.Background(), bundle))
	return bundle
}

func TestOTPLogin(t *testing.T) {
	f := newFixture(t)
	c, userID := f.login(t, "+61400000001")
	require.NotEmpty(t, c.Token)
	require.NotEmpty(t, userID)

	// Same phone logs into the same account.
	_, again := f.login(t, "+61400000001")
	require.Equal(t, userID, again)
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := relay.NewClient(f.server.URL, "")
	require.NoError(t, c.RequestOTP(ctx, "+1"))
	_, _, err := c.VerifyOTP(ctx, "+1", "000000")
	require.Error(t, err)
}

func TestKeysEndpoints_RequireAuth(t *testing.T) {
	f := newFixture(t)
	c := relay.NewClient(f.server.URL, "")
	_, err := c.Count(context.Background())
	require.Error(t, err)
}

func TestBundleLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bobClient, bobID := f.login(t, "+2")
	uploaded := uploadBundle(t, bobClient)

	aliceClient, _ := f.login(t, "+1")

	// Each fetch consumes one one-time prekey.
	fetched, err := aliceClient.FetchBundle(ctx, bobID)
	require.NoError(t, err)
	require.Equal(t, uploaded.IdentityKey, fetched.IdentityKey)
	require.NotNil(t, fetched.OneTimePreKey)

	n, err := bobClient.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Unknown user is a clean not-found.
	_, err = aliceClient.FetchBundle(ctx, "no-such-user")
	require.ErrorIs(t, err, domain.ErrBundleNotFound)
}

func TestPublish_RejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	c, _ := f.login(t, "+1")

	vault := keyvault.New(store.NewFileStore(t.TempDir(), "pass"))
	bundle, err := vault.BuildUploadBundle(1)
	require.NoError(t, err)
	bundle.SignedPreKey.Signature[0] ^= 0x01

	require.Error(t, c.UploadBundle(context.Background(), bundle))
}

func TestReplenish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.login(t, "+1")

	vault := keyvault.New(store.NewFileStore(t.TempDir(), "pass"))
	bundle, err := vault.BuildUploadBundle(2)
	require.NoError(t, err)
	require.NoError(t, c.UploadBundle(ctx, bundle))

	batch, err := vault.ReplenishBatch(3)
	require.NoError(t, err)
	total, err := c.Replenish(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 5, total)
}

func TestChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	aliceClient, aliceID := f.login(t, "+1")
	_, bobID := f.login(t, "+2")

	chat, err := aliceClient.CreateChat(ctx, bobID)
	require.NoError(t, err)
	require.Equal(t, bobID, chat.Other(aliceID))

	chats, err := aliceClient.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, chat.ID, chats[0].ID)

	// Chatting with yourself is rejected.
	_, err = aliceClient.CreateChat(ctx, aliceID)
	require.Error(t, err)
}

func TestContacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	aliceClient, _ := f.login(t, "+61400000001")
	_, bobID := f.login(t, "+61400000002")

	// Resolving mixes registered and unknown numbers; only registered ones
	// come back and get added to the book. Alice's own number is skipped.
	resolved, err := aliceClient.ResolveContacts(ctx, []string{
		"+61400000002", "+61400000001", "+61499999999",
	})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, bobID, resolved[0].UserID)
	require.Equal(t, "+61400000002", resolved[0].Phone)

	// Resolving again does not duplicate the entry.
	_, err = aliceClient.ResolveContacts(ctx, []string{"+61400000002"})
	require.NoError(t, err)

	contacts, err := aliceClient.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.Equal(t, bobID, contacts[0].UserID)

	// Bob's book is his own; alice's resolution did not touch it.
	bobClient, _ := f.login(t, "+61400000002")
	bobContacts, err := bobClient.ListContacts(ctx)
	require.NoError(t, err)
	require.Empty(t, bobContacts)
}

func TestListMessages_ParticipantsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	aliceClient, aliceID := f.login(t, "+1")
	_, bobID := f.login(t, "+2")
	eveClient, _ := f.login(t, "+3")

	chat, err := aliceClient.CreateChat(ctx, bobID)
	require.NoError(t, err)

	require.NoError(t, f.store.InsertMessage(ctx, domain.Message{
		ID:         "m1",
		ChatID:     chat.ID,
		SenderID:   aliceID,
		Header:     domain.MessageHeader{RatchetPublicKey: make([]byte, 32)},
		Ciphertext: []byte{9},
		Nonce:      make([]byte, 24),
		Status:     domain.MessageSent,
		CreatedAt:  time.Now().UnixMilli(),
	}))

	msgs, err := aliceClient.ListMessages(ctx, chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, []byte{9}, msgs[0].Ciphertext)

	// Outsiders cannot read, or even confirm, the chat.
	_, err = eveClient.ListMessages(ctx, chat.ID, 0)
	require.Error(t, err)
}
