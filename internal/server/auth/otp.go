package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"sealchat/internal/server/storage"
)

// ErrBadCode is returned when a verification code is wrong, expired, or
// already used.
var ErrBadCode = errors.New("auth: invalid verification code")

// SMSGateway delivers one-time codes out of band.
type SMSGateway interface {
	Send(ctx context.Context, phone, code string) error
}

// LogGateway writes codes to the log instead of sending SMS. Development
// deployments run with this; the code never leaves the server host.
type LogGateway struct {
	Log zerolog.Logger
}

func (g LogGateway) Send(_ context.Context, phone, code string) error {
	g.Log.Info().Str("phone", phone).Str("code", code).Msg("otp code issued")
	return nil
}

// OTP runs the phone-number login flow: request a code, verify it, get a
// token for an auto-provisioned user.
type OTP struct {
	store   *storage.Store
	issuer  *Issuer
	gateway SMSGateway
	ttl     time.Duration
	log     zerolog.Logger
}

func NewOTP(store *storage.Store, issuer *Issuer, gateway SMSGateway, ttl time.Duration, log zerolog.Logger) *OTP {
	return &OTP{
		store:   store,
		issuer:  issuer,
		gateway: gateway,
		ttl:     ttl,
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// RequestCode generates a 6-digit code for phone and hands it to the gateway.
// Re-requesting replaces any outstanding code.
func (o *OTP) RequestCode(ctx context.Context, phone string) error {
	code, err := randomCode()
	if err != nil {
		return err
	}
	expires := time.Now().Add(o.ttl).Unix()
	if err := o.store.SaveOTP(ctx, phone, code, expires); err != nil {
		return err
	}
	return o.gateway.Send(ctx, phone, code)
}

// VerifyCode checks the code, creates the user on first login, and returns a
// bearer token plus the user id.
func (o *OTP) VerifyCode(ctx context.Context, phone, code string) (token, userID string, err error) {
	ok, err := o.store.ConsumeOTP(ctx, phone, code)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", ErrBadCode
	}
	user, err := o.store.EnsureUser(ctx, phone)
	if err != nil {
		return "", "", err
	}
	token, err = o.issuer.IssueToken(user.ID)
	if err != nil {
		return "", "", err
	}
	o.log.Info().Str("user", user.ID).Msg("login verified")
	return token, user.ID, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
