// Package chat persists conversations and routes user text either to the
// inference engine or to structured inventory commands.
package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pocketsage/pocketsage/internal/command"
	"github.com/pocketsage/pocketsage/internal/database"
	"github.com/pocketsage/pocketsage/internal/engine"
	"github.com/pocketsage/pocketsage/internal/inventory"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("chat session not found")

// ErrEngineNotReady is returned when the model lifecycle has not reached
// the ready state.
var ErrEngineNotReady = errors.New("inference engine is not ready")

// EngineProvider yields the inference engine while the model is ready.
type EngineProvider interface {
	Engine() (engine.Engine, bool)
}

// Service provides chat operations.
type Service struct {
	db        *database.DB
	provider  EngineProvider
	inventory *inventory.Service
	logger    zerolog.Logger
}

// NewService creates a new chat service.
func NewService(db *database.DB, provider EngineProvider, inv *inventory.Service, logger zerolog.Logger) *Service {
	return &Service{
		db:        db,
		provider:  provider,
		inventory: inv,
		logger:    logger.With().Str("component", "chat").Logger(),
	}
}

// ListSessions returns all sessions, most recently updated first.
func (s *Service) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM chat_sessions ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// GetSession returns one session by ID.
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at FROM chat_sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

// Messages returns a session's messages in chronological order.
func (s *Service) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, session_id, role, content, image_path, created_at
		FROM chat_messages WHERE session_id = ?
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.ImagePath, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteSession removes a session and its messages.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Send stores the user message, produces a reply and stores it. Structured
// commands are executed against the inventory; everything else goes to the
// engine. An empty SessionID starts a new session titled from the text.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.New("message text is required")
	}

	sess, err := s.ensureSession(ctx, req.SessionID, text)
	if err != nil {
		return nil, err
	}

	if _, err := s.appendMessage(ctx, sess.ID, RoleUser, text, req.ImagePath); err != nil {
		return nil, err
	}

	reply, err := s.respond(ctx, text, req.ImagePath)
	if err != nil {
		return nil, err
	}

	msg, err := s.appendMessage(ctx, sess.ID, RoleAssistant, reply, "")
	if err != nil {
		return nil, err
	}

	return &SendResponse{Session: *sess, Reply: *msg}, nil
}

// respond routes the text to the inventory or to the model.
func (s *Service) respond(ctx context.Context, text, imagePath string) (string, error) {
	cmd := command.Parse(text)

	switch cmd.Kind {
	case command.KindAddItem:
		item, err := s.inventory.Adjust(ctx, cmd.ItemName, cmd.Quantity)
		if err != nil {
			return "", fmt.Errorf("failed to add item: %w", err)
		}
		return fmt.Sprintf("Added %d %s. You now have %d.", cmd.Quantity, item.Name, item.Quantity), nil

	case command.KindRemoveItem:
		item, err := s.inventory.Adjust(ctx, cmd.ItemName, -cmd.Quantity)
		if errors.Is(err, inventory.ErrNotFound) {
			return fmt.Sprintf("I don't have %s on the list.", cmd.ItemName), nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to remove item: %w", err)
		}
		return fmt.Sprintf("Removed %d %s. %d left.", cmd.Quantity, item.Name, item.Quantity), nil

	case command.KindQueryStock:
		item, err := s.inventory.FindByName(ctx, cmd.ItemName)
		if errors.Is(err, inventory.ErrNotFound) {
			return fmt.Sprintf("You don't have any %s.", cmd.ItemName), nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to look up item: %w", err)
		}
		unit := item.Unit
		if unit != "" {
			unit = " " + unit
		}
		return fmt.Sprintf("You have %d%s %s.", item.Quantity, unit, item.Name), nil

	case command.KindListItems:
		items, err := s.inventory.List(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list items: %w", err)
		}
		if len(items) == 0 {
			return "Your inventory is empty.", nil
		}
		var b strings.Builder
		b.WriteString("You have:")
		for _, it := range items {
			fmt.Fprintf(&b, "\n- %s: %d", it.Name, it.Quantity)
		}
		return b.String(), nil
	}

	eng, ok := s.provider.Engine()
	if !ok {
		return "", ErrEngineNotReady
	}
	return eng.Generate(ctx, text, imagePath)
}

func (s *Service) ensureSession(ctx context.Context, id, text string) (*Session, error) {
	if id != "" {
		return s.GetSession(ctx, id)
	}

	now := time.Now().UTC()
	sess := Session{
		ID:        uuid.New().String(),
		Title:     sessionTitle(text),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO chat_sessions (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, sess.ID, sess.Title, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info().Str("session", sess.ID).Msg("Chat session created")
	return &sess, nil
}

func (s *Service) appendMessage(ctx context.Context, sessionID, role, content, imagePath string) (*Message, error) {
	now := time.Now().UTC()
	res, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO chat_messages (session_id, role, content, image_path, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, role, content, imagePath, now)
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Conn().ExecContext(ctx, `
		UPDATE chat_sessions SET updated_at = ? WHERE id = ?
	`, now, sessionID); err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}

	return &Message{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		ImagePath: imagePath,
		CreatedAt: now,
	}, nil
}

// sessionTitle derives a short title from the first user message.
func sessionTitle(text string) string {
	const max = 48
	if len(text) <= max {
		return text
	}
	cut := strings.LastIndex(text[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return text[:cut] + "…"
}
