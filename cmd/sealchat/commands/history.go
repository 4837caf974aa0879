package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// history <chatId>: list the relay's stored ciphertext rows for a chat.
// Message keys are deleted after use, so old rows cannot be re-decrypted;
// this shows routing metadata only.
func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <chatId>",
		Short: "List stored messages in a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			msgs, err := appCtx.Relay.ListMessages(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Println("No messages.")
				return nil
			}
			for _, m := range msgs {
				who := m.SenderID
				if m.SenderID == creds.UserID {
					who = "me"
				}
				fmt.Printf("%s  %s  %s  %d bytes\n",
					time.UnixMilli(m.CreatedAt).Format(time.RFC3339), who, m.Status, len(m.Ciphertext))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to return")
	return cmd
}
