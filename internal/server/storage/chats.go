package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"sealchat/internal/domain"
)

// EnsureChat returns the two-party chat between a and b, creating it if
// absent. Participants are stored in sorted order so (a,b) and (b,a) map to
// the same row.
func (s *Store) EnsureChat(ctx context.Context, a, b string) (domain.Chat, error) {
	if b < a {
		a, b = b, a
	}
	chat, err := s.chatByParticipants(ctx, a, b)
	if err != nil || chat != nil {
		if chat == nil {
			return domain.Chat{}, err
		}
		return *chat, err
	}
	chat = &domain.Chat{ID: uuid.NewString(), ParticipantA: a, ParticipantB: b}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chats (id, participant_a, participant_b, last_message_at) VALUES (?, ?, ?, 0)`,
		chat.ID, chat.ParticipantA, chat.ParticipantB)
	if err != nil {
		return domain.Chat{}, err
	}
	return *chat, nil
}

// ChatByID returns the chat row, or (nil, nil) if absent.
func (s *Store) ChatByID(ctx context.Context, chatID string) (*domain.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, participant_a, participant_b, last_message_at FROM chats WHERE id = ?`, chatID)
	return scanChat(row)
}

// ChatsForUser lists the chats userID participates in, most recent first.
func (s *Store) ChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, participant_a, participant_b, last_message_at FROM chats
		 WHERE participant_a = ? OR participant_b = ?
		 ORDER BY last_message_at DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Chat
	for rows.Next() {
		var c domain.Chat
		if err := rows.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessageAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TouchChat bumps the chat's last-message timestamp.
func (s *Store) TouchChat(ctx context.Context, chatID string, at int64) error {
	if at == 0 {
		at = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE chats SET last_message_at = ? WHERE id = ?`, at, chatID)
	return err
}

func (s *Store) chatByParticipants(ctx context.Context, a, b string) (*domain.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, participant_a, participant_b, last_message_at FROM chats
		 WHERE participant_a = ? AND participant_b = ?`, a, b)
	return scanChat(row)
}

func scanChat(row *sql.Row) (*domain.Chat, error) {
	var c domain.Chat
	err := row.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessageAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
