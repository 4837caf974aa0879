package relay_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"sealchat/internal/domain"
	"sealchat/internal/relay"
)

// wsTestServer upgrades connections, records the presented token, and pushes
// one typing frame to every client.
func wsTestServer(t *testing.T) (*httptest.Server, chan string) {
	t.Helper()
	tokens := make(chan string, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		env, _ := domain.NewWsEnvelope(domain.WsTypeTyping, domain.WsTyping{ChatID: "c1", UserID: "peer"})
		if err := conn.WriteJSON(env); err != nil {
			return
		}
		// Echo frames back until the client hangs up.
		for {
			var in domain.WsEnvelope
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			if err := conn.WriteJSON(in); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, tokens
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSocket_ConnectAndReceive(t *testing.T) {
	srv, tokens := wsTestServer(t)

	sock := relay.NewSocket(wsURL(srv), "tok-123")
	sock.Connect(context.Background())
	defer sock.Disconnect()

	require.Equal(t, "tok-123", <-tokens, "token must ride the upgrade request")

	select {
	case env := <-sock.Incoming():
		require.Equal(t, domain.WsTypeTyping, env.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
	}
}

func TestSocket_SendRoundTrip(t *testing.T) {
	srv, _ := wsTestServer(t)

	sock := relay.NewSocket(wsURL(srv), "tok")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sock.Connect(ctx)
	defer sock.Disconnect()
	require.NoError(t, sock.WaitConnected(ctx))

	// Drain the server's greeting.
	<-sock.Incoming()

	require.NoError(t, sock.SendDelivered("m1", "c1"))

	select {
	case env := <-sock.Incoming():
		require.Equal(t, domain.WsTypeMessageDelivered, env.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("echo not received")
	}
}

func TestSocket_SendBeforeConnect(t *testing.T) {
	sock := relay.NewSocket("ws://127.0.0.1:1/ws", "tok")
	require.ErrorIs(t, sock.SendDelivered("m1", "c1"), relay.ErrNotConnected)
}

func TestSocket_DisconnectClosesIncoming(t *testing.T) {
	srv, _ := wsTestServer(t)

	sock := relay.NewSocket(wsURL(srv), "tok")
	ctx := context.Background()
	sock.Connect(ctx)
	require.NoError(t, sock.WaitConnected(ctx))

	sock.Disconnect()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-sock.Incoming():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("incoming channel did not close")
		}
	}
}
