package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"sealchat/internal/domain"
)

// InsertMessage persists a ciphertext row. The header is stored as opaque
// JSON; the relay never interprets it beyond routing.
func (s *Store) InsertMessage(ctx context.Context, m domain.Message) error {
	header, err := json.Marshal(m.Header)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, header, ciphertext, nonce, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.SenderID, string(header), m.Ciphertext, m.Nonce, m.Status, m.CreatedAt)
	return err
}

// MessageByID returns a message row, or (nil, nil) if absent.
func (s *Store) MessageByID(ctx context.Context, id string) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, sender_id, header, ciphertext, nonce, status, created_at
		 FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MessagesForChat lists a chat's ciphertext rows in send order.
func (s *Store) MessagesForChat(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, sender_id, header, ciphertext, nonce, status, created_at
		 FROM messages WHERE chat_id = ? ORDER BY created_at ASC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var header string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &header, &m.Ciphertext, &m.Nonce, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(header), &m.Header); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMessageStatus sets a message's delivery status.
func (s *Store) UpdateMessageStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE id = ?`, status, id)
	return err
}

func scanMessage(row *sql.Row) (*domain.Message, error) {
	var m domain.Message
	var header string
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &header, &m.Ciphertext, &m.Nonce, &m.Status, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(header), &m.Header); err != nil {
		return nil, err
	}
	return &m, nil
}
