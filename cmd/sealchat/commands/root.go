package commands

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sealchat/internal/app"
)

var (
	home       string
	passphrase string
	relayURL   string

	creds  app.Credentials
	appCtx *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:   "sealchat",
		Short: "End-to-end encrypted chat CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".sealchat")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			var err error
			creds, err = app.LoadCredentials(home)
			if err != nil && !errors.Is(err, app.ErrNotLoggedIn) {
				return err
			}

			appCtx, err = app.NewWire(app.Config{
				Home:       home,
				Passphrase: passphrase,
				RelayURL:   relayURL,
				Token:      creds.Token,
			})
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.sealchat)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect keys")
	root.PersistentFlags().StringVar(&relayURL, "relay", "http://127.0.0.1:8080", "relay base URL")

	root.AddCommand(
		initCmd(), fingerprintCmd(), loginCmd(), registerCmd(),
		contactsCmd(), chatsCmd(), sendCmd(), listenCmd(), historyCmd(), replenishCmd(),
	)
	return root.Execute()
}

// wsEndpoint rewrites the relay base URL into its WebSocket address.
func wsEndpoint(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return strings.TrimRight(base, "/") + "/ws"
}

func requireLogin() error {
	if creds.Token == "" {
		return errors.New("not logged in. run: sealchat login <phone>")
	}
	return nil
}

func requirePassphrase() error {
	if passphrase == "" {
		return errors.New("passphrase required (-p)")
	}
	return nil
}
