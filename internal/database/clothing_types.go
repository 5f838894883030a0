package database

import (
	"context"

	"github.com/google/uuid"
)

const createClothingType = `
INSERT INTO clothing_types (name, measurements)
VALUES ($1, $2)
RETURNING id, name, measurements, created_at
`

type CreateClothingTypeParams struct {
	Name         string
	Measurements []string
}

func (q *Queries) CreateClothingType(ctx context.Context, arg CreateClothingTypeParams) (ClothingType, error) {
	row := q.db.QueryRow(ctx, createClothingType, arg.Name, arg.Measurements)
	var ct ClothingType
	err := row.Scan(&ct.ID, &ct.Name, &ct.Measurements, &ct.CreatedAt)
	return ct, err
}

const getClothingType = `
SELECT id, name, measurements, created_at
FROM clothing_types WHERE id = $1
`

func (q *Queries) GetClothingType(ctx context.Context, id uuid.UUID) (ClothingType, error) {
	row := q.db.QueryRow(ctx, getClothingType, id)
	var ct ClothingType
	err := row.Scan(&ct.ID, &ct.Name, &ct.Measurements, &ct.CreatedAt)
	return ct, err
}

const listClothingTypes = `
SELECT id, name, measurements, created_at
FROM clothing_types ORDER BY name
`

func (q *Queries) ListClothingTypes(ctx context.Context) ([]ClothingType, error) {
	rows, err := q.db.Query(ctx, listClothingTypes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ClothingType
	for rows.Next() {
		var ct ClothingType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.Measurements, &ct.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, ct)
	}
	return items, rows.Err()
}

const listClothingTypesByIDs = `
SELECT id, name, measurements, created_at
FROM clothing_types WHERE id = ANY($1::uuid[])
`

// ListClothingTypesByIDs is the batched existence lookup used when creating
// orders and items: callers compare the returned set against the requested
// ids to report every missing reference at once.
func (q *Queries) ListClothingTypesByIDs(ctx context.Context, ids []uuid.UUID) ([]ClothingType, error) {
	rows, err := q.db.Query(ctx, listClothingTypesByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ClothingType
	for rows.Next() {
		var ct ClothingType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.Measurements, &ct.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, ct)
	}
	return items, rows.Err()
}

const getClothingTypeByName = `
SELECT id, name, measurements, created_at
FROM clothing_types WHERE name = $1
`

func (q *Queries) GetClothingTypeByName(ctx context.Context, name string) (ClothingType, error) {
	row := q.db.QueryRow(ctx, getClothingTypeByName, name)
	var ct ClothingType
	err := row.Scan(&ct.ID, &ct.Name, &ct.Measurements, &ct.CreatedAt)
	return ct, err
}
