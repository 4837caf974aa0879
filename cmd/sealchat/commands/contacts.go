package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func contactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contacts [phone...]",
		Short: "List your contacts, or resolve phone numbers into contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()

			if len(args) > 0 {
				resolved, err := appCtx.Relay.ResolveContacts(ctx, args)
				if err != nil {
					return err
				}
				if len(resolved) == 0 {
					fmt.Println("None of those numbers are registered.")
					return nil
				}
				for _, u := range resolved {
					fmt.Printf("%s  %s\n", u.Phone, u.UserID)
				}
				return nil
			}

			contacts, err := appCtx.Relay.ListContacts(ctx)
			if err != nil {
				return err
			}
			if len(contacts) == 0 {
				fmt.Println("No contacts yet. Resolve some with: sealchat contacts <phone>")
				return nil
			}
			for _, u := range contacts {
				state := "offline"
				if u.IsOnline {
					state = "online"
				}
				fmt.Printf("%s  %s  %s\n", u.Phone, u.UserID, state)
			}
			return nil
		},
	}
}
