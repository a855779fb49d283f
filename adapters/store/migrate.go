package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(150) NOT NULL,
		email VARCHAR(256) NOT NULL UNIQUE,
		role VARCHAR(20) NOT NULL DEFAULT 'client',
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS experiences (
		id BIGSERIAL PRIMARY KEY,
		code VARCHAR(10) NOT NULL UNIQUE,
		name VARCHAR(250) NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		description VARCHAR(1000) NOT NULL DEFAULT '',
		price_cents BIGINT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
		reservation_name VARCHAR(150) NOT NULL,
		party_size INTEGER NOT NULL DEFAULT 1,
		experience_id BIGINT NOT NULL REFERENCES experiences(id),
		restrictions VARCHAR(500),
		scheduled_ts BIGINT NOT NULL,
		status VARCHAR(30) NOT NULL DEFAULT 'pending',
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations(user_id, status)`,
	`CREATE TABLE IF NOT EXISTS preference_profiles (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		document TEXT,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'client',
		created_ts INTEGER NOT NULL,
		updated_ts INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS experiences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		price_cents INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_ts INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		reservation_name TEXT NOT NULL,
		party_size INTEGER NOT NULL DEFAULT 1,
		experience_id INTEGER NOT NULL REFERENCES experiences(id),
		restrictions TEXT,
		scheduled_ts INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_ts INTEGER NOT NULL,
		updated_ts INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations(user_id, status)`,
	`CREATE TABLE IF NOT EXISTS preference_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		document TEXT,
		created_ts INTEGER NOT NULL,
		updated_ts INTEGER NOT NULL
	)`,
}

// Migrate creates the schema if it does not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for i, m := range s.dialect.migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return errors.Wrapf(err, "migration %d failed", i+1)
		}
	}
	log.WithCtx(ctx).Info("database migrated",
		zap.String("driver", s.dialect.name),
		zap.Int("statements", len(s.dialect.migrations)))
	return nil
}

// DefaultExperiences is the restaurant's bookable catalog.
var DefaultExperiences = []domain.Experience{
	{
		Code:            "MD",
		Name:            "Menú Degustación",
		DurationMinutes: 180,
		Description: "Central's main dining experience: a journey of about three hours through twelve " +
			"Peruvian ecosystems in thirty-two preparations, exploring ingredients from the coast, the Andes " +
			"and the Amazon. A complete gourmet dinner with no activities beyond the menu.",
		PriceCents: 120000,
		Active:     true,
	},
	{
		Code:            "IC",
		Name:            "Inmersión Central",
		DurationMinutes: 360,
		Description: "The most complete and exclusive experience, about six hours: a guided tour of " +
			"Central's creative spaces (experimental gardens, research kitchens, cacao and beverage areas) " +
			"followed by the full tasting menu with pairing. Ideal for celebrations and corporate visits.",
		PriceCents: 260000,
		Active:     true,
	},
	{
		Code:            "TL",
		Name:            "Theobromas Lab",
		DurationMinutes: 120,
		Description: "A two-hour experience devoted to Amazonian cacao: wild cacao, macambo and copoazú, " +
			"from the fruit to the chocolate bar. Educational, sensory and lighter than the others; perfect " +
			"for groups, families and the cacao-curious.",
		PriceCents: 35000,
		Active:     true,
	},
}

// SeedExperiences inserts the default catalog, skipping codes already
// present. Returns how many rows were inserted.
func (s *SQLStore) SeedExperiences(ctx context.Context) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now().Unix()
		for _, e := range DefaultExperiences {
			res, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO experiences
				(code, name, duration_minutes, description, price_cents, active, created_ts)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (code) DO NOTHING`),
				e.Code, e.Name, e.DurationMinutes, e.Description, e.PriceCents, e.Active, now)
			if err != nil {
				return errors.Wrapf(err, "failed to seed experience %s", e.Code)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.WithCtx(ctx).Info("experiences seeded", zap.Int("inserted", inserted))
	return inserted, nil
}
