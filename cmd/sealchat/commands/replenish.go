package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sealchat/internal/keyvault"
)

// replenish checks the server-side pool and uploads a fresh batch when it is
// running low. --force uploads regardless of the current count.
func replenishCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "replenish",
		Short: "Top up the server-side one-time prekey pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()

			remaining, err := appCtx.Relay.Count(ctx)
			if err != nil {
				return err
			}
			if remaining >= keyvault.ReplenishThreshold && !force {
				fmt.Printf("Pool healthy (%d keys remaining)\n", remaining)
				return nil
			}

			keys, err := appCtx.Vault.ReplenishBatch(keyvault.DefaultOneTimeKeyCount)
			if err != nil {
				return err
			}
			total, err := appCtx.Relay.Replenish(ctx, keys)
			if err != nil {
				return err
			}
			fmt.Printf("Uploaded %d keys (pool now %d)\n", len(keys), total)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "upload a batch even if the pool is healthy")
	return cmd
}
