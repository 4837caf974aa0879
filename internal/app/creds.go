package app

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// ErrNotLoggedIn is returned when no stored credentials exist.
var ErrNotLoggedIn = errors.New("app: not logged in")

// Credentials is the relay login state persisted between CLI invocations.
// The token is a bearer credential, not key material, so it lives in a plain
// file with owner-only permissions rather than the encrypted store.
type Credentials struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func credsPath(home string) string {
	return filepath.Join(home, "credentials.json")
}

// SaveCredentials writes the login state under home.
func SaveCredentials(home string, c Credentials) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(credsPath(home), raw, 0o600)
}

// LoadCredentials reads the login state saved by a previous login.
func LoadCredentials(home string) (Credentials, error) {
	raw, err := os.ReadFile(credsPath(home))
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, ErrNotLoggedIn
	}
	if err != nil {
		return Credentials{}, err
	}
	var c Credentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return Credentials{}, err
	}
	return c, nil
}
