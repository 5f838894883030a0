package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createStaff = `
INSERT INTO staff (first_name, last_name, phone_number, hashed_password, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, first_name, last_name, phone_number, hashed_password, role, created_at
`

type CreateStaffParams struct {
	FirstName      string
	LastName       string
	PhoneNumber    string
	HashedPassword string
	Role           string
}

func (q *Queries) CreateStaff(ctx context.Context, arg CreateStaffParams) (Staff, error) {
	row := q.db.QueryRow(ctx, createStaff,
		arg.FirstName, arg.LastName, arg.PhoneNumber, arg.HashedPassword, arg.Role)
	var s Staff
	err := row.Scan(&s.ID, &s.FirstName, &s.LastName, &s.PhoneNumber, &s.HashedPassword, &s.Role, &s.CreatedAt)
	return s, err
}

const getStaffByID = `
SELECT id, first_name, last_name, phone_number, hashed_password, role, created_at
FROM staff WHERE id = $1
`

func (q *Queries) GetStaffByID(ctx context.Context, id uuid.UUID) (Staff, error) {
	row := q.db.QueryRow(ctx, getStaffByID, id)
	var s Staff
	err := row.Scan(&s.ID, &s.FirstName, &s.LastName, &s.PhoneNumber, &s.HashedPassword, &s.Role, &s.CreatedAt)
	return s, err
}

const getStaffByPhone = `
SELECT id, first_name, last_name, phone_number, hashed_password, role, created_at
FROM staff WHERE phone_number = $1
`

func (q *Queries) GetStaffByPhone(ctx context.Context, phoneNumber string) (Staff, error) {
	row := q.db.QueryRow(ctx, getStaffByPhone, phoneNumber)
	var s Staff
	err := row.Scan(&s.ID, &s.FirstName, &s.LastName, &s.PhoneNumber, &s.HashedPassword, &s.Role, &s.CreatedAt)
	return s, err
}

const listStaff = `
SELECT id, first_name, last_name, phone_number, hashed_password, role, created_at
FROM staff ORDER BY created_at DESC
`

func (q *Queries) ListStaff(ctx context.Context) ([]Staff, error) {
	rows, err := q.db.Query(ctx, listStaff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Staff
	for rows.Next() {
		var s Staff
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.PhoneNumber, &s.HashedPassword, &s.Role, &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const updateStaff = `
UPDATE staff SET
	first_name   = COALESCE($2, first_name),
	last_name    = COALESCE($3, last_name),
	phone_number = COALESCE($4, phone_number),
	role         = COALESCE($5, role)
WHERE id = $1
RETURNING id, first_name, last_name, phone_number, hashed_password, role, created_at
`

type UpdateStaffParams struct {
	ID          uuid.UUID
	FirstName   pgtype.Text
	LastName    pgtype.Text
	PhoneNumber pgtype.Text
	Role        pgtype.Text
}

func (q *Queries) UpdateStaff(ctx context.Context, arg UpdateStaffParams) (Staff, error) {
	row := q.db.QueryRow(ctx, updateStaff,
		arg.ID, arg.FirstName, arg.LastName, arg.PhoneNumber, arg.Role)
	var s Staff
	err := row.Scan(&s.ID, &s.FirstName, &s.LastName, &s.PhoneNumber, &s.HashedPassword, &s.Role, &s.CreatedAt)
	return s, err
}

const updateStaffPassword = `
UPDATE staff SET hashed_password = $2 WHERE id = $1
RETURNING id
`

type UpdateStaffPasswordParams struct {
	ID             uuid.UUID
	HashedPassword string
}

func (q *Queries) UpdateStaffPassword(ctx context.Context, arg UpdateStaffPasswordParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, updateStaffPassword, arg.ID, arg.HashedPassword)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}

const deleteStaff = `
DELETE FROM staff WHERE id = $1
RETURNING id
`

func (q *Queries) DeleteStaff(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteStaff, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}
