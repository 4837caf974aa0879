package commands

import (
	"fmt"
	"unicode"

	"github.com/spf13/cobra"

	"sealchat/internal/crypto"
)

const minPassphraseLength = 12

var errWeakPassphrase = fmt.Errorf(
	"passphrase is too weak (must be at least %d characters and include upper, lower, "+
		"number, and symbol)",
	minPassphraseLength,
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if !isSecurePassphrase(passphrase) {
				return errWeakPassphrase
			}
			id, err := appCtx.Vault.GenerateIdentity()
			if err != nil {
				return err
			}
			fmt.Printf("Identity created.\nFingerprint: %s\n", crypto.FingerprintKey(id.EdPub.Slice()))
			return nil
		},
	}
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
