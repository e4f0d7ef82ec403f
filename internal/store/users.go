package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/chatbridge/integration/database/pg"
	"github.com/dmitrymomot/chatbridge/internal/order"
)

const userColumns = `id, user_name, email, social_media, cell_number, user_indicated_cell,
	popi_consent, joined_at, is_verified, role, current_order`

func scanUser(row pgx.Row) (*User, error) {
	var (
		u      User
		stored string
	)
	if err := row.Scan(&u.ID, &u.UserName, &u.Email, &u.SocialMedia, &u.CellNumber, &u.UserIndicatedCell,
		&u.Consent, &u.Joined, &u.IsVerified, &u.Role, &stored); err != nil {
		return nil, err
	}
	u.CurrentOrder = order.ParseStored(stored)
	return &u, nil
}

// GetOrCreate returns the user registered under cell, creating one when
// none exists. The bool reports creation.
func (s *Store) GetOrCreate(ctx context.Context, cell string) (*User, bool, error) {
	cell = strings.TrimSpace(cell)
	if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidCell, cell)
	}

	u, err := s.UserByCell(ctx, cell)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	now := s.utcNow()
	row := s.conn(ctx).QueryRow(ctx, `INSERT INTO users (id, cell_number, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cell_number) DO NOTHING
		RETURNING `+userColumns, uuid.NewString(), cell, now)
	u, err = scanUser(row)
	if pg.IsNotFoundError(err) {
		// Created concurrently by another worker.
		u, err = s.UserByCell(ctx, cell)
		return u, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: create user: %w", err)
	}
	return u, true, nil
}

// UserByCell loads a user by registered cell number.
func (s *Store) UserByCell(ctx context.Context, cell string) (*User, error) {
	u, err := scanUser(s.conn(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE cell_number = $1`, cell))
	if pg.IsNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load user: %w", err)
	}
	return u, nil
}

// SaveUserProfile writes the editable profile fields.
func (s *Store) SaveUserProfile(ctx context.Context, u *User) error {
	tag, err := s.conn(ctx).Exec(ctx, `UPDATE users SET
		user_name = $2, email = $3, social_media = $4, user_indicated_cell = $5, popi_consent = $6
		WHERE id = $1`,
		u.ID, u.UserName, u.Email, u.SocialMedia, u.UserIndicatedCell, u.Consent)
	if err != nil {
		return errors.Join(ErrUserNotSaved, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotSaved, ErrNotFound)
	}
	return nil
}

// SaveCurrentOrder replaces the user's pending order.
func (s *Store) SaveCurrentOrder(ctx context.Context, userID string, lines order.Lines) error {
	tag, err := s.conn(ctx).Exec(ctx, `UPDATE users SET current_order = $2 WHERE id = $1`, userID, lines.String())
	if err != nil {
		return errors.Join(ErrUserNotSaved, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotSaved, ErrNotFound)
	}
	return nil
}
