package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sealchat/internal/app"
)

// login <phone> requests a one-time code; login <phone> --code <code>
// finishes the exchange and stores the bearer token.
func loginCmd() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "login <phone>",
		Short: "Log in to the relay with a phone number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phone := args[0]
			ctx := cmd.Context()

			if code == "" {
				if err := appCtx.Relay.RequestOTP(ctx, phone); err != nil {
					return err
				}
				fmt.Println("Code sent. Run again with --code to finish logging in.")
				return nil
			}

			token, userID, err := appCtx.Relay.VerifyOTP(ctx, phone, code)
			if err != nil {
				return err
			}
			if err := app.SaveCredentials(home, app.Credentials{Token: token, UserID: userID}); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "verification code from the first step")
	return cmd
}
