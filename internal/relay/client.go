package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"sealchat/internal/domain"
)

// Client talks to the relay's REST surface. Token is the JWT obtained from
// the OTP login; it may be empty for the auth endpoints themselves.
type Client struct {
	Base  string
	Token string
	HTTP  *http.Client
}

// NewClient returns a Client for the relay at base.
func NewClient(base, token string) *Client {
	return &Client{Base: base, Token: token, HTTP: http.DefaultClient}
}

// RequestOTP asks the relay to send a login code to phone.
func (c *Client) RequestOTP(ctx context.Context, phone string) error {
	return c.post(ctx, "/auth/otp/request", map[string]string{"phone": phone}, nil)
}

// VerifyOTP exchanges a login code for a bearer token and user id.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (token, userID string, err error) {
	var out struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	body := map[string]string{"phone": phone, "code": code}
	if err := c.post(ctx, "/auth/otp/verify", body, &out); err != nil {
		return "", "", err
	}
	return out.Token, out.UserID, nil
}

// UploadBundle publishes the full prekey bundle, replacing any previous one.
func (c *Client) UploadBundle(ctx context.Context, b domain.PreKeyBundle) error {
	return c.post(ctx, "/keys/bundle", b, nil)
}

// FetchBundle retrieves userID's bundle; the relay atomically consumes one
// one-time prekey per fetch. A 404 maps to domain.ErrBundleNotFound.
func (c *Client) FetchBundle(ctx context.Context, userID string) (domain.FetchedBundle, error) {
	var out domain.FetchedBundle
	err := c.get(ctx, "/keys/bundle/"+url.PathEscape(userID), &out)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return domain.FetchedBundle{}, domain.ErrBundleNotFound
		}
		return domain.FetchedBundle{}, err
	}
	return out, nil
}

// Replenish appends freshly generated one-time prekeys to the server pool
// and returns the new pool size.
func (c *Client) Replenish(ctx context.Context, keys []domain.OneTimePreKey) (int, error) {
	var out struct {
		Message          string `json:"message"`
		TotalOneTimeKeys int    `json:"totalOneTimeKeys"`
	}
	body := map[string]any{"oneTimePreKeys": keys}
	if err := c.post(ctx, "/keys/replenish", body, &out); err != nil {
		return 0, err
	}
	return out.TotalOneTimeKeys, nil
}

// Count returns the remaining one-time prekey pool size for this user.
func (c *Client) Count(ctx context.Context) (int, error) {
	var out struct {
		TotalOneTimeKeys int `json:"totalOneTimeKeys"`
	}
	if err := c.get(ctx, "/keys/count", &out); err != nil {
		return 0, err
	}
	return out.TotalOneTimeKeys, nil
}

// CreateChat creates (or returns the existing) two-party chat with
// participantID.
func (c *Client) CreateChat(ctx context.Context, participantID string) (domain.Chat, error) {
	var out domain.Chat
	body := map[string]string{"participantId": participantID}
	err := c.post(ctx, "/chats", body, &out)
	return out, err
}

// ListMessages returns a chat's stored ciphertext rows, oldest first.
// limit <= 0 uses the server default.
func (c *Client) ListMessages(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	path := "/chats/" + url.PathEscape(chatID) + "/messages"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var out []domain.Message
	err := c.get(ctx, path, &out)
	return out, err
}

// ListChats returns this user's chats.
func (c *Client) ListChats(ctx context.Context) ([]domain.Chat, error) {
	var out []domain.Chat
	err := c.get(ctx, "/chats", &out)
	return out, err
}

// ResolveContacts matches phones against registered users. Every match is
// added to this user's contact book server-side; unregistered numbers are
// absent from the result.
func (c *Client) ResolveContacts(ctx context.Context, phones []string) ([]domain.ContactUser, error) {
	var out []domain.ContactUser
	body := map[string][]string{"phoneNumbers": phones}
	err := c.post(ctx, "/contacts/resolve", body, &out)
	return out, err
}

// ListContacts returns this user's contact book.
func (c *Client) ListContacts(ctx context.Context) ([]domain.ContactUser, error) {
	var out []domain.ContactUser
	err := c.get(ctx, "/contacts", &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &statusError{code: resp.StatusCode, path: path, status: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// statusError carries a non-2xx relay response.
type statusError struct {
	code   int
	path   string
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("relay %s: %s", e.path, e.status)
}

var _ domain.BundleFetcher = (*Client)(nil)
