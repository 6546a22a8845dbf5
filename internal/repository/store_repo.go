package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/mathieu-neron/packprice/packprice-go/internal/db"
	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
)

type StoreRepo struct {
	pool db.Pool
}

func NewStoreRepo(pool db.Pool) *StoreRepo {
	return &StoreRepo{pool: pool}
}

// FindBase returns a single base by id.
func (r *StoreRepo) FindBase(ctx context.Context, baseID int64) (*model.Base, error) {
	var b model.Base
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, latitude, longitude
		FROM bases
		WHERE id = $1`,
		baseID).Scan(&b.ID, &b.Name, &b.Latitude, &b.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store_repo: find base")
	}
	return &b, nil
}

// ListLocated returns every store with known coordinates.
func (r *StoreRepo) ListLocated(ctx context.Context) ([]model.Store, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, city, state, latitude, longitude
		FROM stores
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "store_repo: list located stores")
	}
	defer rows.Close()

	var stores []model.Store
	for rows.Next() {
		var s model.Store
		if err := rows.Scan(&s.ID, &s.Name, &s.City, &s.State, &s.Latitude, &s.Longitude); err != nil {
			return nil, eris.Wrap(err, "store_repo: scan store")
		}
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store_repo: iterate stores")
	}
	return stores, nil
}
