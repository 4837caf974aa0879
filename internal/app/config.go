package app

import "net/http"

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string       // config directory, e.g. $HOME/.sealchat
	Passphrase string       // protects the local key files
	RelayURL   string       // relay base URL, e.g. http://127.0.0.1:8080
	Token      string       // bearer token from a previous login; may be empty
	HTTP       *http.Client // optional; defaults to http.DefaultClient
}
