package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/centralrestaurante/amigo-central/domain"
)

func (s *SQLStore) CreateReservation(ctx context.Context, create *domain.Reservation) (*domain.Reservation, error) {
	if create == nil {
		return nil, errors.New("reservation is required")
	}
	status := create.Status
	if status == "" {
		status = domain.ReservationPending
	}
	var restrictions sql.NullString
	if strings.TrimSpace(create.Restrictions) != "" {
		restrictions = sql.NullString{String: create.Restrictions, Valid: true}
	}
	var userID sql.NullInt64
	if create.UserID != nil {
		userID = sql.NullInt64{Int64: *create.UserID, Valid: true}
	}
	now := s.now().Unix()

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, s.rebind(`INSERT INTO reservations
			(user_id, reservation_name, party_size, experience_id, restrictions, scheduled_ts, status, created_ts, updated_ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			userID, create.Name, create.PartySize, create.ExperienceID, restrictions,
			create.ScheduledAt.Unix(), string(status), now, now).Scan(&id)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create reservation")
	}

	r := *create
	r.ID = id
	r.Status = status
	r.Restrictions = restrictions.String
	r.ScheduledAt = unixOrZero(create.ScheduledAt.Unix())
	r.CreatedAt = unixOrZero(now)
	r.UpdatedAt = unixOrZero(now)
	return &r, nil
}

// ListReservations returns matching reservations, most recent schedule first.
func (s *SQLStore) ListReservations(ctx context.Context, find domain.FindReservation) ([]domain.Reservation, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = ?"), append(args, string(*v))
	}

	query := `SELECT id, user_id, reservation_name, party_size, experience_id, restrictions,
		scheduled_ts, status, created_ts, updated_ts
		FROM reservations
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY scheduled_ts DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reservations")
	}
	defer rows.Close()

	list := []domain.Reservation{}
	for rows.Next() {
		var (
			r                                 domain.Reservation
			userID                            sql.NullInt64
			restrictions                      sql.NullString
			status                            string
			scheduledTs, createdTs, updatedTs int64
		)
		if err := rows.Scan(&r.ID, &userID, &r.Name, &r.PartySize, &r.ExperienceID, &restrictions,
			&scheduledTs, &status, &createdTs, &updatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan reservation")
		}
		if userID.Valid {
			id := userID.Int64
			r.UserID = &id
		}
		r.Restrictions = restrictions.String
		r.Status = domain.ReservationStatus(status)
		r.ScheduledAt = unixOrZero(scheduledTs)
		r.CreatedAt = unixOrZero(createdTs)
		r.UpdatedAt = unixOrZero(updatedTs)
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate reservations")
	}
	return list, nil
}
