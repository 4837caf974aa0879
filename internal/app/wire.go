package app

import (
	"net/http"

	"sealchat/internal/keyvault"
	"sealchat/internal/relay"
	"sealchat/internal/session"
	"sealchat/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Store    *store.FileStore
	Vault    *keyvault.Vault
	Relay    *relay.Client
	Sessions *session.Manager
	HTTP     *http.Client
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	fs := store.NewFileStore(cfg.Home, cfg.Passphrase)
	vault := keyvault.New(fs)

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	rc := relay.NewClient(cfg.RelayURL, cfg.Token)
	rc.HTTP = httpClient

	return &Wire{
		Store:    fs,
		Vault:    vault,
		Relay:    rc,
		Sessions: session.New(vault, fs, rc),
		HTTP:     httpClient,
	}, nil
}
