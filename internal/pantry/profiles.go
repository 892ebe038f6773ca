package pantry

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/bakehouse/ordering/internal/domain"
)

// ProfileStore looks up callers in the shared profiles table.
type ProfileStore struct {
	pool DBPool
}

func NewProfileStore(pool DBPool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

func (s *ProfileStore) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	var fullName, email, role, shortcut string
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(full_name, ''), COALESCE(email, ''), role, COALESCE(shortcut, '')
		FROM profiles
		WHERE id::text = $1
	`, id).Scan(&fullName, &email, &role, &shortcut)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &domain.Profile{ID: id, FullName: fullName, Email: email, Role: domain.Role(role), Shortcut: shortcut}, nil
}
