package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Auth is OTP-by-phone; the relay never holds
// a password.
type User struct {
	ID        string
	Phone     string
	IsOnline  bool
	CreatedAt int64
}

// UserByPhone returns the user for phone, or (nil, nil) if absent.
func (s *Store) UserByPhone(ctx context.Context, phone string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, phone, is_online, created_at FROM users WHERE phone = ?`, phone)
	return scanUser(row)
}

// UserByID returns the user for id, or (nil, nil) if absent.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, phone, is_online, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// EnsureUser returns the existing user for phone, creating one on first
// login.
func (s *Store) EnsureUser(ctx context.Context, phone string) (*User, error) {
	u, err := s.UserByPhone(ctx, phone)
	if err != nil || u != nil {
		return u, err
	}
	u = &User{
		ID:        uuid.NewString(),
		Phone:     phone,
		CreatedAt: time.Now().Unix(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, phone, is_online, created_at) VALUES (?, ?, 0, ?)`,
		u.ID, u.Phone, u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// SetOnline flips the user's presence flag.
func (s *Store) SetOnline(ctx context.Context, userID string, online bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_online = ? WHERE id = ?`, boolInt(online), userID)
	return err
}

// SaveOTP stores (replacing) the pending login code for phone.
func (s *Store) SaveOTP(ctx context.Context, phone, code string, expiresAt int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO otp_codes (phone, code, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(phone) DO UPDATE SET code = excluded.code, expires_at = excluded.expires_at`,
		phone, code, expiresAt)
	return err
}

// ConsumeOTP checks and deletes the pending code for phone. Returns false
// for a wrong, missing, or expired code.
func (s *Store) ConsumeOTP(ctx context.Context, phone, code string) (bool, error) {
	var ok bool
	err := s.tx(ctx, func(tx *sql.Tx) error {
		var stored string
		var expiresAt int64
		err := tx.QueryRowContext(ctx,
			`SELECT code, expires_at FROM otp_codes WHERE phone = ?`, phone).
			Scan(&stored, &expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if stored != code || time.Now().Unix() > expiresAt {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM otp_codes WHERE phone = ?`, phone); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ok, err
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var online int
	err := row.Scan(&u.ID, &u.Phone, &online, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.IsOnline = online != 0
	return &u, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
