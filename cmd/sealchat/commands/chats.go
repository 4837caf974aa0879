package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func chatsCmd() *cobra.Command {
	var with string
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List your chats, or open one with --with <userId>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()

			if with != "" {
				chat, err := appCtx.Relay.CreateChat(ctx, with)
				if err != nil {
					return err
				}
				fmt.Printf("Chat %s with %s\n", chat.ID, chat.Other(creds.UserID))
				return nil
			}

			chats, err := appCtx.Relay.ListChats(ctx)
			if err != nil {
				return err
			}
			if len(chats) == 0 {
				fmt.Println("No chats yet.")
				return nil
			}
			for _, c := range chats {
				last := "never"
				if c.LastMessageAt > 0 {
					last = time.UnixMilli(c.LastMessageAt).Format(time.RFC3339)
				}
				fmt.Printf("%s  peer=%s  last=%s\n", c.ID, c.Other(creds.UserID), last)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&with, "with", "", "open (or create) a chat with this user id")
	return cmd
}
