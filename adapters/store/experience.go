package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/centralrestaurante/amigo-central/domain"
)

const experienceColumns = `id, code, name, duration_minutes, description, price_cents, active, created_ts`

func (s *SQLStore) ListExperiences(ctx context.Context, activeOnly bool) ([]domain.Experience, error) {
	query := `SELECT ` + experienceColumns + ` FROM experiences`
	args := []any{}
	if activeOnly {
		query += ` WHERE active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list experiences")
	}
	defer rows.Close()

	list := []domain.Experience{}
	for rows.Next() {
		e, err := scanExperience(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate experiences")
	}
	return list, nil
}

func (s *SQLStore) GetExperience(ctx context.Context, id int64) (*domain.Experience, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+experienceColumns+` FROM experiences WHERE id = ?`), id)
	e, err := scanExperience(row)
	if err != nil {
		if errors.Is(errors.Cause(err), sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to get experience %d", id)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExperience(sc scanner) (*domain.Experience, error) {
	var (
		e         domain.Experience
		createdTs int64
	)
	if err := sc.Scan(&e.ID, &e.Code, &e.Name, &e.DurationMinutes, &e.Description, &e.PriceCents, &e.Active, &createdTs); err != nil {
		return nil, errors.WithStack(err)
	}
	e.CreatedAt = unixOrZero(createdTs)
	return &e, nil
}
