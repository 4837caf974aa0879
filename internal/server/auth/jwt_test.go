package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sealchat/internal/server/auth"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := auth.NewIssuer([]byte("secret"), time.Hour)

	token, err := issuer.IssueToken("user-1")
	require.NoError(t, err)

	userID, err := issuer.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := auth.NewIssuer([]byte("secret-a"), time.Hour).IssueToken("user-1")
	require.NoError(t, err)

	_, err = auth.NewIssuer([]byte("secret-b"), time.Hour).VerifyToken(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	issuer := auth.NewIssuer([]byte("secret"), -time.Minute)
	token, err := issuer.IssueToken("user-1")
	require.NoError(t, err)

	_, err = issuer.VerifyToken(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	_, err := auth.NewIssuer([]byte("secret"), time.Hour).VerifyToken("not-a-token")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	issuer := auth.NewIssuer([]byte("secret"), time.Hour)
	token, err := issuer.IssueToken("user-1")
	require.NoError(t, err)

	var sawUserID string
	h := issuer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawUserID = auth.UserID(r.Context())
	}))

	// No token.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Malformed header.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", token)
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid bearer token.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", sawUserID)
}
