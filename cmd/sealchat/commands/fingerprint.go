package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sealchat/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := appCtx.Vault.Identity()
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\n", crypto.FingerprintKey(id.EdPub.Slice()))
			return nil
		},
	}
}
