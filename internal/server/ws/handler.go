package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sealchat/internal/domain"
	"sealchat/internal/server/storage"
)

// TokenVerifier authenticates the ?token= query parameter before upgrade.
type TokenVerifier interface {
	VerifyToken(token string) (userID string, err error)
}

// Handler upgrades authenticated HTTP requests to WebSocket connections and
// runs the per-connection read loop.
type Handler struct {
	registry *Registry
	store    *storage.Store
	verifier TokenVerifier
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHandler(registry *Registry, store *storage.Store, verifier TokenVerifier, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		store:    store,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.verifier.VerifyToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := NewClient(userID, sock)
	h.registry.Add(client)
	ctx := r.Context()
	if err := h.store.SetOnline(ctx, userID, true); err != nil {
		h.log.Error().Err(err).Str("user", userID).Msg("presence update failed")
	}
	h.broadcastPresence(userID, true)
	h.log.Info().Str("user", userID).Msg("connected")

	defer func() {
		last := h.registry.Remove(client)
		client.Close()
		if last {
			if err := h.store.SetOnline(context.Background(), userID, false); err != nil {
				h.log.Error().Err(err).Str("user", userID).Msg("presence update failed")
			}
			h.broadcastPresence(userID, false)
		}
		h.log.Info().Str("user", userID).Msg("disconnected")
	}()

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			return
		}
		var env domain.WsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.log.Debug().Str("user", userID).Msg("malformed frame dropped")
			continue
		}
		h.dispatch(ctx, client, env)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, env domain.WsEnvelope) {
	var err error
	switch env.Type {
	case domain.WsTypeMessageSend:
		err = h.handleSend(ctx, client, env.Payload)
	case domain.WsTypeMessageDelivered:
		err = h.handleReceipt(ctx, client, env.Payload, domain.MessageDelivered, domain.WsTypeReceiptDelivered)
	case domain.WsTypeReceiptRead:
		err = h.handleReceipt(ctx, client, env.Payload, domain.MessageRead, domain.WsTypeReceiptRead)
	case domain.WsTypeTyping:
		err = h.handleTyping(ctx, client, env.Payload)
	default:
		h.log.Debug().Str("user", client.UserID).Str("type", env.Type).Msg("unknown frame type")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user", client.UserID).Str("type", env.Type).Msg("frame handling failed")
	}
}

// handleSend persists the ciphertext, acks the sender, and forwards the
// message to the recipient if online. The ack is sent only after the row is
// durable, so a localId is never acked for a message the relay could lose.
// The sender must be a participant of the chat, and the recipient comes from
// the stored chat row rather than the frame.
func (h *Handler) handleSend(ctx context.Context, client *Client, payload json.RawMessage) error {
	var req domain.WsSendMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	chat, err := h.store.ChatByID(ctx, req.ChatID)
	if err != nil {
		return err
	}
	if chat == nil || !chat.Has(client.UserID) {
		h.log.Debug().Str("user", client.UserID).Str("chat", req.ChatID).Msg("send to foreign chat dropped")
		return nil
	}
	now := time.Now().UnixMilli()
	msg := domain.Message{
		ID:         uuid.NewString(),
		ChatID:     req.ChatID,
		SenderID:   client.UserID,
		Header:     req.Header,
		Ciphertext: req.Ciphertext,
		Nonce:      req.Nonce,
		Status:     domain.MessageSent,
		CreatedAt:  now,
	}
	if err := h.store.InsertMessage(ctx, msg); err != nil {
		return err
	}
	if err := h.store.TouchChat(ctx, req.ChatID, now); err != nil {
		return err
	}

	ack, err := domain.NewWsEnvelope(domain.WsTypeMessageAck, domain.WsMessageAck{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		LocalID:   req.LocalID,
		Timestamp: now,
	})
	if err != nil {
		return err
	}
	if err := client.Send(ack); err != nil {
		h.log.Debug().Str("user", client.UserID).Err(err).Msg("ack write failed")
	}

	fwd, err := domain.NewWsEnvelope(domain.WsTypeMessageNew, domain.WsNewMessage{
		MessageID:  msg.ID,
		ChatID:     msg.ChatID,
		SenderID:   msg.SenderID,
		Header:     msg.Header,
		Ciphertext: msg.Ciphertext,
		Nonce:      msg.Nonce,
		Timestamp:  now,
	})
	if err != nil {
		return err
	}
	h.registry.SendTo(chat.Other(client.UserID), fwd)
	return nil
}

// handleReceipt updates the message's delivery status and forwards a receipt
// to the original sender. The sender is looked up from the stored row, and
// only the other participant of the message's chat may report; a client
// holding a leaked message id cannot redirect or forge receipts.
func (h *Handler) handleReceipt(ctx context.Context, client *Client, payload json.RawMessage, status, fwdType string) error {
	var req domain.WsDeliveryReceipt
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	msg, err := h.store.MessageByID(ctx, req.MessageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.SenderID == client.UserID {
		return nil
	}
	chat, err := h.store.ChatByID(ctx, msg.ChatID)
	if err != nil {
		return err
	}
	if chat == nil || !chat.Has(client.UserID) {
		h.log.Debug().Str("user", client.UserID).Str("message", req.MessageID).Msg("receipt from non-participant dropped")
		return nil
	}
	if err := h.store.UpdateMessageStatus(ctx, msg.ID, status); err != nil {
		return err
	}
	env, err := domain.NewWsEnvelope(fwdType, domain.WsDeliveryReceipt{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
	})
	if err != nil {
		return err
	}
	h.registry.SendTo(msg.SenderID, env)
	return nil
}

// handleTyping forwards the indicator to the other participant of the stored
// chat, ignoring whatever userId the client put in the frame.
func (h *Handler) handleTyping(ctx context.Context, client *Client, payload json.RawMessage) error {
	var req domain.WsTyping
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	chat, err := h.store.ChatByID(ctx, req.ChatID)
	if err != nil {
		return err
	}
	if chat == nil || !chat.Has(client.UserID) {
		return nil
	}
	env, err := domain.NewWsEnvelope(domain.WsTypeTyping, domain.WsTyping{
		ChatID: req.ChatID,
		UserID: client.UserID,
	})
	if err != nil {
		return err
	}
	h.registry.SendTo(chat.Other(client.UserID), env)
	return nil
}

func (h *Handler) broadcastPresence(userID string, online bool) {
	env, err := domain.NewWsEnvelope(domain.WsTypePresence, domain.WsPresence{
		UserID:   userID,
		IsOnline: online,
	})
	if err != nil {
		return
	}
	h.registry.Broadcast(env, userID)
}
