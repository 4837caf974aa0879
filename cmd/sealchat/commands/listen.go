package commands

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sealchat/internal/domain"
	"sealchat/internal/relay"
)

// listen: stay connected, decrypt what arrives, and report receipts back.
func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Stay connected and decrypt incoming messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireLogin(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sock := relay.NewSocket(wsEndpoint(relayURL), creds.Token)
			sock.Connect(ctx)
			defer sock.Disconnect()

			fmt.Println("listening (ctrl-c to stop)")
			for {
				select {
				case <-ctx.Done():
					return nil
				case frame, ok := <-sock.Incoming():
					if !ok {
						return nil
					}
					handleFrame(sock, frame)
				}
			}
		},
	}
}

func handleFrame(sock *relay.Socket, frame domain.WsEnvelope) {
	switch frame.Type {
	case domain.WsTypeMessageNew:
		var msg domain.WsNewMessage
		if err := json.Unmarshal(frame.Payload, &msg); err != nil {
			return
		}
		plaintext, err := appCtx.Sessions.DecryptFrom(msg.SenderID, domain.EncryptedEnvelope{
			Header:     msg.Header,
			Ciphertext: msg.Ciphertext,
			Nonce:      msg.Nonce,
		})
		if err != nil {
			fmt.Printf("[%s] <undecryptable: %v>\n", msg.SenderID, err)
			return
		}
		fmt.Printf("[%s] %s\n", msg.SenderID, plaintext)
		_ = sock.SendDelivered(msg.MessageID, msg.ChatID)
		_ = sock.SendRead(msg.MessageID, msg.ChatID)

	case domain.WsTypeReceiptDelivered:
		var rc domain.WsDeliveryReceipt
		if json.Unmarshal(frame.Payload, &rc) == nil {
			fmt.Printf("message %s delivered\n", rc.MessageID)
		}

	case domain.WsTypeReceiptRead:
		var rc domain.WsReadReceipt
		if json.Unmarshal(frame.Payload, &rc) == nil {
			fmt.Printf("message %s read\n", rc.MessageID)
		}

	case domain.WsTypeTyping:
		var t domain.WsTyping
		if json.Unmarshal(frame.Payload, &t) == nil {
			fmt.Printf("%s is typing...\n", t.UserID)
		}

	case domain.WsTypePresence:
		var p domain.WsPresence
		if json.Unmarshal(frame.Payload, &p) == nil {
			state := "offline"
			if p.IsOnline {
				state = "online"
			}
			fmt.Printf("%s is %s\n", p.UserID, state)
		}
	}
}
