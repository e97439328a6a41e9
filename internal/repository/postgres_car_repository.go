package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"car-showroom/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type postgresCarRepository struct {
	db *sql.DB
}

// NewPostgresCarRepository creates a catalog store backed by the cars
// table. Catalog order is kept in the position column.
func NewPostgresCarRepository(db *sql.DB) CarRepository {
	return &postgresCarRepository{db: db}
}

// LoadAll retrieves every car ordered by catalog position
func (r *postgresCarRepository) LoadAll(ctx context.Context) ([]*domain.Car, error) {
	return r.loadAll(ctx, r.db)
}

// SaveAll replaces the catalog inside a single transaction
func (r *postgresCarRepository) SaveAll(ctx context.Context, cars []*domain.Car) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return r.replaceAll(ctx, tx, cars)
	})
}

// Mutate takes an exclusive table lock for the whole read-modify-write.
// Readers are not blocked by EXCLUSIVE mode.
func (r *postgresCarRepository) Mutate(ctx context.Context, fn MutateFunc) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE cars IN EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("failed to lock cars table: %w", err)
		}

		cars, err := r.loadAll(ctx, tx)
		if err != nil {
			return err
		}

		updated, err := fn(cars)
		if err != nil {
			return err
		}

		return r.replaceAll(ctx, tx, updated)
	})
}

func (r *postgresCarRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *postgresCarRepository) loadAll(ctx context.Context, q querier) ([]*domain.Car, error) {
	query := `
		SELECT id, brand, model, year, price, kilometrage, boite, version, description, media, created_at, updated_at
		FROM cars
		ORDER BY position ASC
	`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	defer rows.Close()

	cars := []*domain.Car{}
	for rows.Next() {
		car := &domain.Car{}
		var media []byte
		var updatedAt sql.NullString

		err := rows.Scan(
			&car.ID,
			&car.Brand,
			&car.Model,
			&car.Year,
			&car.Price,
			&car.Kilometrage,
			&car.Boite,
			&car.Version,
			&car.Description,
			&media,
			&car.CreatedAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan car: %w", err)
		}

		if err := json.Unmarshal(media, &car.Media); err != nil {
			return nil, fmt.Errorf("%w: media of car %s: %v", ErrCorruptCatalog, car.ID, err)
		}
		car.UpdatedAt = updatedAt.String

		cars = append(cars, car)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cars: %w", err)
	}

	return cars, nil
}

func (r *postgresCarRepository) replaceAll(ctx context.Context, q querier, cars []*domain.Car) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM cars`); err != nil {
		return fmt.Errorf("failed to clear cars: %w", err)
	}

	query := `
		INSERT INTO cars (id, position, brand, model, year, price, kilometrage, boite, version, description, media, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	for i, car := range cars {
		media, err := json.Marshal(car.Media)
		if err != nil {
			return fmt.Errorf("failed to encode media of car %s: %w", car.ID, err)
		}

		_, err = q.ExecContext(
			ctx,
			query,
			car.ID,
			i,
			car.Brand,
			car.Model,
			car.Year,
			car.Price,
			car.Kilometrage,
			car.Boite,
			car.Version,
			car.Description,
			string(media),
			car.CreatedAt,
			sql.NullString{String: car.UpdatedAt, Valid: car.UpdatedAt != ""},
		)
		if err != nil {
			return fmt.Errorf("failed to insert car %s: %w", car.ID, err)
		}
	}

	return nil
}
