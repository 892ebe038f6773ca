package profiles

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bakehouse/ordering/internal/domain"
)

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if !domain.ValidID(id) {
		return nil, nil
	}
	p := &domain.Profile{}
	var email, shortcut, address, paidBy sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(full_name, ''), email, role, shortcut, address, paid_by
		FROM profiles
		WHERE id = $1
	`, id).Scan(&p.ID, &p.FullName, &email, &p.Role, &shortcut, &address, &paidBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	p.Email = email.String
	p.Shortcut = shortcut.String
	p.Address = address.String
	p.PaidBy = domain.PaidBy(paidBy.String)
	return p, nil
}

func (r *ProfileRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(full_name, ''), COALESCE(email, ''), role, COALESCE(shortcut, ''), COALESCE(address, ''), COALESCE(paid_by, '')
		FROM profiles
		WHERE role = $1
		ORDER BY full_name
	`, role)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.FullName, &p.Email, &p.Role, &p.Shortcut, &p.Address, &p.PaidBy); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}
