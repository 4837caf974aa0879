package storage

import (
	"context"
	"strings"
	"time"
)

// AddContact records contactUserID in userID's contact book. Adding an
// existing contact is a no-op.
func (s *Store) AddContact(ctx context.Context, userID, contactUserID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO contacts (user_id, contact_user_id, created_at) VALUES (?, ?, ?)`,
		userID, contactUserID, time.Now().Unix())
	return err
}

// ContactsForUser returns the users in userID's contact book.
func (s *Store) ContactsForUser(ctx context.Context, userID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.phone, u.is_online, u.created_at
		 FROM contacts c JOIN users u ON u.id = c.contact_user_id
		 WHERE c.user_id = ? ORDER BY u.phone ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var online int
		if err := rows.Scan(&u.ID, &u.Phone, &online, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.IsOnline = online != 0
		out = append(out, u)
	}
	return out, rows.Err()
}

// UsersByPhones returns the registered users among phones. Unknown numbers
// are silently absent from the result.
func (s *Store) UsersByPhones(ctx context.Context, phones []string) ([]User, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(phones))
	args := make([]any, len(phones))
	for i, p := range phones {
		args[i] = p
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, phone, is_online, created_at FROM users
		 WHERE phone IN (`+placeholders[:len(placeholders)-1]+`) ORDER BY phone ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var online int
		if err := rows.Scan(&u.ID, &u.Phone, &online, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.IsOnline = online != 0
		out = append(out, u)
	}
	return out, rows.Err()
}
