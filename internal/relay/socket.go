package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"sealchat/internal/domain"
)

// reconnectInterval is the fixed wait between reconnect attempts. The loop
// retries indefinitely; only an explicit Disconnect stops it.
const reconnectInterval = 3 * time.Second

// ErrNotConnected is returned by Send while the socket is down; the frame is
// not queued.
var ErrNotConnected = errors.New("websocket not connected")

// Socket is the client's persistent transport connection. A supervising
// goroutine owns the connection lifecycle: it dials, pumps inbound frames
// onto Incoming, and redials after a fixed backoff when the connection
// drops. A Socket is single-use: after Disconnect, build a new one.
type Socket struct {
	url    string
	token  string
	dialer *websocket.Dialer

	incoming chan domain.WsEnvelope

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSocket returns a Socket for the relay WebSocket endpoint, e.g.
// "ws://127.0.0.1:8080/ws". The token authenticates the upgrade.
func NewSocket(wsURL, token string) *Socket {
	return &Socket{
		url:      wsURL,
		token:    token,
		dialer:   websocket.DefaultDialer,
		incoming: make(chan domain.WsEnvelope, 64),
	}
}

// Incoming yields parsed inbound frames. The channel closes when the
// supervisor exits after Disconnect.
func (s *Socket) Incoming() <-chan domain.WsEnvelope { return s.incoming }

// Connect starts the supervising reconnect loop. Calling it twice is a
// no-op while a supervisor is live.
func (s *Socket) Connect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.supervise(ctx)
}

// Disconnect stops the reconnect loop and closes the live connection.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	cancel := s.cancel
	conn := s.conn
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done
}

// WaitConnected blocks until the socket holds a live connection or ctx ends.
func (s *Socket) WaitConnected(ctx context.Context) error {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		s.mu.Lock()
		up := s.conn != nil
		s.mu.Unlock()
		if up {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Send writes a frame to the live connection.
func (s *Socket) Send(env domain.WsEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.WriteJSON(env)
}

// SendMessage relays a ciphertext to recipientID within chatID. localID lets
// the caller reconcile the server's ack with its own row.
func (s *Socket) SendMessage(chatID, recipientID, localID string, env domain.EncryptedEnvelope) error {
	return s.sendTyped(domain.WsTypeMessageSend, domain.WsSendMessage{
		ChatID:      chatID,
		RecipientID: recipientID,
		Header:      env.Header,
		Ciphertext:  env.Ciphertext,
		Nonce:       env.Nonce,
		LocalID:     localID,
	})
}

// SendDelivered reports a message as delivered.
func (s *Socket) SendDelivered(messageID, chatID string) error {
	return s.sendTyped(domain.WsTypeMessageDelivered, domain.WsDeliveryReceipt{MessageID: messageID, ChatID: chatID})
}

// SendRead reports a message as read.
func (s *Socket) SendRead(messageID, chatID string) error {
	return s.sendTyped(domain.WsTypeReceiptRead, domain.WsReadReceipt{MessageID: messageID, ChatID: chatID})
}

// SendTyping signals typing activity in chatID.
func (s *Socket) SendTyping(chatID, userID string) error {
	return s.sendTyped(domain.WsTypeTyping, domain.WsTyping{ChatID: chatID, UserID: userID})
}

func (s *Socket) sendTyped(typ string, payload any) error {
	env, err := domain.NewWsEnvelope(typ, payload)
	if err != nil {
		return err
	}
	return s.Send(env)
}

func (s *Socket) supervise(ctx context.Context) {
	defer close(s.done)
	defer close(s.incoming)

	b := &backoff.Backoff{Min: reconnectInterval, Max: reconnectInterval, Factor: 1}
	for {
		_ = s.connectOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.Duration()):
		}
	}
}

// connectOnce dials and pumps frames until the connection fails or the
// context is cancelled. Malformed frames are skipped.
func (s *Socket) connectOnce(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url+"?token="+s.token, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env domain.WsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		select {
		case s.incoming <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
