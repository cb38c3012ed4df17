package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateSession registers a new conversation session.
func (db *DB) CreateSession(ctx context.Context, userAgent, ipAddress string) (uuid.UUID, error) {
	now := time.Now().UTC()
	session := &Session{
		SessionID:    uuid.New(),
		CreatedAt:    now,
		LastActivity: now,
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
	}
	if _, err := db.NewInsert().Model(session).Exec(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return session.SessionID, nil
}

// SaveMessage appends a conversation turn and bumps the session's last
// activity. Context and sources carry retrieval provenance on assistant
// turns and are empty otherwise.
func (db *DB) SaveMessage(ctx context.Context, sessionID uuid.UUID, role, content, context_, sources string) error {
	message := &Message{
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Role:      role,
		Content:   content,
		Context:   context_,
		Sources:   sources,
	}
	if _, err := db.NewInsert().Model(message).Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_, err := db.NewUpdate().
		Model((*Session)(nil)).
		Set("last_activity = ?", time.Now().UTC()).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// SessionHistory returns the most recent turns of a session, newest first.
func (db *DB) SessionHistory(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	var messages []Message
	err := db.NewSelect().
		Model(&messages).
		Where("session_id = ?", sessionID).
		OrderExpr("timestamp DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return messages, nil
}

// FullContext concatenates every turn of a session, oldest first, into
// the history block fed to the prompt.
func (db *DB) FullContext(ctx context.Context, sessionID uuid.UUID) (string, error) {
	var messages []Message
	err := db.NewSelect().
		Model(&messages).
		Column("role", "content").
		Where("session_id = ?", sessionID).
		OrderExpr("timestamp ASC").
		Scan(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	turns := make([]string, len(messages))
	for i, m := range messages {
		turns[i] = capitalize(m.Role) + ": " + m.Content
	}
	return strings.Join(turns, "\n\n"), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
