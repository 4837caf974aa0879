package domain

import "encoding/json"

// WS frame type tags.
const (
	WsTypeMessageSend      = "message.send"
	WsTypeMessageAck       = "message.ack"
	WsTypeMessageNew       = "message.new"
	WsTypeMessageDelivered = "message.delivered"
	WsTypeReceiptDelivered = "receipt.delivered"
	WsTypeReceiptRead      = "receipt.read"
	WsTypeTyping           = "typing"
	WsTypePresence         = "presence"
)

// WsEnvelope is the outer WebSocket frame: a type tag and an opaque payload.
type WsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewWsEnvelope marshals payload into a typed frame.
func NewWsEnvelope(typ string, payload any) (WsEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEnvelope{}, err
	}
	return WsEnvelope{Type: typ, Payload: raw}, nil
}

// WsSendMessage is sent client→server to relay a ciphertext to a recipient.
// The relay routes by the stored chat's participants; RecipientID is advisory.
type WsSendMessage struct {
	ChatID      string        `json:"chatId"`
	RecipientID string        `json:"recipientId"`
	Header      MessageHeader `json:"header"`
	Ciphertext  []byte        `json:"ciphertext"`
	Nonce       []byte        `json:"nonce"`
	LocalID     string        `json:"localId"`
}

// WsMessageAck is sent server→sender once the ciphertext row is durable,
// binding the client-local id to the assigned message id.
type WsMessageAck struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	LocalID   string `json:"localId"`
	Timestamp int64  `json:"timestamp"`
}

// WsNewMessage is sent server→recipient to deliver a ciphertext.
type WsNewMessage struct {
	MessageID  string        `json:"messageId"`
	ChatID     string        `json:"chatId"`
	SenderID   string        `json:"senderId"`
	Header     MessageHeader `json:"header"`
	Ciphertext []byte        `json:"ciphertext"`
	Nonce      []byte        `json:"nonce"`
	Timestamp  int64         `json:"timestamp"`
}

// WsDeliveryReceipt marks a message delivered; forwarded to the original
// sender as receipt.delivered.
type WsDeliveryReceipt struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

// WsReadReceipt marks a message read; forwarded to the original sender.
type WsReadReceipt struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

// WsTyping is forwarded to the other chat participant.
type WsTyping struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// WsPresence is broadcast to all other online users on connect/disconnect.
type WsPresence struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}
