package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sealchat/internal/domain"
	"sealchat/internal/relay"
)

// send <peer> <message>: establish a session if needed, encrypt, relay, and
// wait for the server's ack.
func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireLogin(); err != nil {
				return err
			}
			peer := args[0]
			plaintext := []byte(args[1])

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			chat, err := appCtx.Relay.CreateChat(ctx, peer)
			if err != nil {
				return err
			}
			env, err := appCtx.Sessions.EncryptFor(ctx, peer, plaintext)
			if err != nil {
				return err
			}

			sock := relay.NewSocket(wsEndpoint(relayURL), creds.Token)
			sock.Connect(ctx)
			defer sock.Disconnect()
			if err := sock.WaitConnected(ctx); err != nil {
				return err
			}

			_ = sock.SendTyping(chat.ID, creds.UserID)

			localID := uuid.NewString()
			if err := sock.SendMessage(chat.ID, peer, localID, env); err != nil {
				return err
			}
			return awaitAck(ctx, sock, localID)
		},
	}
	return cmd
}

// awaitAck blocks until the relay acks localID, confirming the ciphertext is
// durable server-side.
func awaitAck(ctx context.Context, sock *relay.Socket, localID string) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("no ack from relay: %w", ctx.Err())
		case frame, ok := <-sock.Incoming():
			if !ok {
				return relay.ErrNotConnected
			}
			if frame.Type != domain.WsTypeMessageAck {
				continue
			}
			var ack domain.WsMessageAck
			if err := json.Unmarshal(frame.Payload, &ack); err != nil || ack.LocalID != localID {
				continue
			}
			fmt.Printf("sent (message %s)\n", ack.MessageID)
			return nil
		}
	}
}
