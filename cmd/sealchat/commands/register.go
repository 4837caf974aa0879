package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sealchat/internal/keyvault"
)

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your prekey bundle to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireLogin(); err != nil {
				return err
			}

			bundle, err := appCtx.Vault.BuildUploadBundle(keyvault.DefaultOneTimeKeyCount)
			if err != nil {
				return err
			}
			if err := appCtx.Relay.UploadBundle(cmd.Context(), bundle); err != nil {
				return err
			}
			fmt.Printf("Registered bundle with %d one-time prekeys\n", len(bundle.OneTimePreKeys))
			return nil
		},
	}
}
