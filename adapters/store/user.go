package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/centralrestaurante/amigo-central/domain"
)

func (s *SQLStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, email, role, created_ts, updated_ts
		FROM users WHERE id = ?`), id)

	var (
		u                    domain.User
		createdTs, updatedTs int64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &createdTs, &updatedTs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to get user %d", id)
	}
	u.CreatedAt = unixOrZero(createdTs)
	u.UpdatedAt = unixOrZero(updatedTs)
	return &u, nil
}

// CreateUser inserts the user. Role defaults to "client".
func (s *SQLStore) CreateUser(ctx context.Context, create *domain.User) (*domain.User, error) {
	if create == nil {
		return nil, errors.New("user is required")
	}
	role := create.Role
	if role == "" {
		role = "client"
	}
	now := s.now()

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, s.rebind(`INSERT INTO users (name, email, role, created_ts, updated_ts)
			VALUES (?, ?, ?, ?, ?) RETURNING id`),
			create.Name, create.Email, role, now.Unix(), now.Unix()).Scan(&id)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create user %s", create.Email)
	}

	return &domain.User{
		ID:        id,
		Name:      create.Name,
		Email:     create.Email,
		Role:      role,
		CreatedAt: time.Unix(now.Unix(), 0),
		UpdatedAt: time.Unix(now.Unix(), 0),
	}, nil
}
