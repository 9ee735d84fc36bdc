// Package inventory tracks household items so the assistant can answer and
// act on stock questions.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pocketsage/pocketsage/internal/database"
)

// ErrNotFound is returned when an item does not exist.
var ErrNotFound = errors.New("inventory item not found")

// Service provides inventory operations backed by SQLite.
type Service struct {
	db     *database.DB
	logger zerolog.Logger
}

// NewService creates a new inventory service.
func NewService(db *database.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "inventory").Logger(),
	}
}

// List returns all items ordered by name.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, name, quantity, unit, notes, created_at, updated_at
		FROM inventory_items
		ORDER BY name COLLATE NOCASE
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Quantity, &it.Unit, &it.Notes, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Get returns one item by ID.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	var it Item
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, name, quantity, unit, notes, created_at, updated_at
		FROM inventory_items WHERE id = ?
	`, id).Scan(&it.ID, &it.Name, &it.Quantity, &it.Unit, &it.Notes, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory item: %w", err)
	}
	return &it, nil
}

// FindByName returns the first item whose name matches, case-insensitively.
func (s *Service) FindByName(ctx context.Context, name string) (*Item, error) {
	var it Item
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, name, quantity, unit, notes, created_at, updated_at
		FROM inventory_items WHERE name = ? COLLATE NOCASE
		LIMIT 1
	`, strings.TrimSpace(name)).Scan(&it.ID, &it.Name, &it.Quantity, &it.Unit, &it.Notes, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find inventory item: %w", err)
	}
	return &it, nil
}

// Create adds a new item.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Item, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.New("item name is required")
	}
	if req.Quantity < 0 {
		return nil, errors.New("quantity cannot be negative")
	}

	now := time.Now().UTC()
	it := Item{
		ID:        uuid.New().String(),
		Name:      name,
		Quantity:  req.Quantity,
		Unit:      strings.TrimSpace(req.Unit),
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO inventory_items (id, name, quantity, unit, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, it.ID, it.Name, it.Quantity, it.Unit, it.Notes, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create inventory item: %w", err)
	}

	s.logger.Info().Str("id", it.ID).Str("name", it.Name).Msg("Inventory item created")
	return &it, nil
}

// Update applies non-nil fields of req to the item.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Item, error) {
	it, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errors.New("item name is required")
		}
		it.Name = name
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return nil, errors.New("quantity cannot be negative")
		}
		it.Quantity = *req.Quantity
	}
	if req.Unit != nil {
		it.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Notes != nil {
		it.Notes = strings.TrimSpace(*req.Notes)
	}
	it.UpdatedAt = time.Now().UTC()

	_, err = s.db.Conn().ExecContext(ctx, `
		UPDATE inventory_items
		SET name = ?, quantity = ?, unit = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, it.Name, it.Quantity, it.Unit, it.Notes, it.UpdatedAt, it.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update inventory item: %w", err)
	}
	return it, nil
}

// Adjust changes an item's quantity by delta, clamping at zero. The item is
// matched by name so spoken commands can address it directly.
func (s *Service) Adjust(ctx context.Context, name string, delta int64) (*Item, error) {
	it, err := s.FindByName(ctx, name)
	if errors.Is(err, ErrNotFound) && delta > 0 {
		// Adding something we have never seen creates it.
		return s.Create(ctx, CreateRequest{Name: name, Quantity: delta})
	}
	if err != nil {
		return nil, err
	}

	qty := it.Quantity + delta
	if qty < 0 {
		qty = 0
	}
	return s.Update(ctx, it.ID, UpdateRequest{Quantity: &qty})
}

// Delete removes an item.
func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete inventory item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	s.logger.Info().Str("id", id).Msg("Inventory item deleted")
	return nil
}
