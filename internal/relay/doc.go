// Package relay is the client side of the sealchat relay: a thin REST
// client for auth, key bundles, and chats, plus a WebSocket transport that
// feeds inbound frames onto a channel and reconnects on failure.
package relay
