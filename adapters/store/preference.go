package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/centralrestaurante/amigo-central/domain"
)

func (s *SQLStore) GetPreferenceProfile(ctx context.Context, userID int64) (*domain.PreferenceProfile, error) {
	return s.getPreferenceProfile(ctx, s.db, userID)
}

func (s *SQLStore) getPreferenceProfile(ctx context.Context, q queryer, userID int64) (*domain.PreferenceProfile, error) {
	var (
		p                    domain.PreferenceProfile
		document             sql.NullString
		createdTs, updatedTs int64
	)
	err := q.QueryRowContext(ctx, s.rebind(`SELECT id, user_id, document, created_ts, updated_ts
		FROM preference_profiles WHERE user_id = ?`), userID).
		Scan(&p.ID, &p.UserID, &document, &createdTs, &updatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to get preference profile of user %d", userID)
	}
	p.Document = document.String
	p.CreatedAt = unixOrZero(createdTs)
	p.UpdatedAt = unixOrZero(updatedTs)
	return &p, nil
}

// UpsertPreferenceProfile replaces the document of the user's profile. The
// lookup and the write share one transaction.
func (s *SQLStore) UpsertPreferenceProfile(ctx context.Context, userID int64, document string) (*domain.PreferenceProfile, error) {
	var saved *domain.PreferenceProfile
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now().Unix()
		existing, err := s.getPreferenceProfile(ctx, tx, userID)
		if err != nil {
			return err
		}

		if existing != nil {
			if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE preference_profiles
				SET document = ?, updated_ts = ? WHERE id = ?`), document, now, existing.ID); err != nil {
				return errors.Wrap(err, "failed to update preference profile")
			}
			existing.Document = document
			existing.UpdatedAt = unixOrZero(now)
			saved = existing
			return nil
		}

		var id int64
		if err := tx.QueryRowContext(ctx, s.rebind(`INSERT INTO preference_profiles
			(user_id, document, created_ts, updated_ts) VALUES (?, ?, ?, ?) RETURNING id`),
			userID, document, now, now).Scan(&id); err != nil {
			return errors.Wrap(err, "failed to insert preference profile")
		}
		saved = &domain.PreferenceProfile{
			ID:        id,
			UserID:    userID,
			Document:  document,
			CreatedAt: unixOrZero(now),
			UpdatedAt: unixOrZero(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}
