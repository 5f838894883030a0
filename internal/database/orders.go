package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createOrder = `
INSERT INTO orders (name, phone_number, type, due_date, additional_notes, created_by_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, name, phone_number, type, status, delivery, due_date, additional_notes,
	created_by_id, updated_by_id, created_at, updated_at
`

type CreateOrderParams struct {
	Name            string
	PhoneNumber     string
	Type            string
	DueDate         time.Time
	AdditionalNotes pgtype.Text
	CreatedByID     uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.Name, arg.PhoneNumber, arg.Type, arg.DueDate, arg.AdditionalNotes, arg.CreatedByID)
	return scanOrder(row)
}

const getOrder = `
SELECT id, name, phone_number, type, status, delivery, due_date, additional_notes,
	created_by_id, updated_by_id, created_at, updated_at
FROM orders WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const listOrders = `
SELECT id, name, phone_number, type, status, delivery, due_date, additional_notes,
	created_by_id, updated_by_id, created_at, updated_at
FROM orders
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

type ListOrdersParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const countOrders = `SELECT COUNT(*) FROM orders`

func (q *Queries) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countOrders).Scan(&n)
	return n, err
}

const updateOrder = `
UPDATE orders SET
	name             = COALESCE($2, name),
	phone_number     = COALESCE($3, phone_number),
	type             = COALESCE($4, type),
	status           = COALESCE($5, status),
	delivery         = COALESCE($6, delivery),
	due_date         = COALESCE($7, due_date),
	additional_notes = COALESCE($8, additional_notes),
	updated_by_id    = $9,
	updated_at       = NOW()
WHERE id = $1
RETURNING id, name, phone_number, type, status, delivery, due_date, additional_notes,
	created_by_id, updated_by_id, created_at, updated_at
`

type UpdateOrderParams struct {
	ID              uuid.UUID
	Name            pgtype.Text
	PhoneNumber     pgtype.Text
	Type            pgtype.Text
	Status          pgtype.Text
	Delivery        pgtype.Text
	DueDate         pgtype.Timestamptz
	AdditionalNotes pgtype.Text
	UpdatedByID     uuid.UUID
}

func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrder,
		arg.ID, arg.Name, arg.PhoneNumber, arg.Type, arg.Status, arg.Delivery,
		arg.DueDate, arg.AdditionalNotes, arg.UpdatedByID)
	return scanOrder(row)
}

const touchOrder = `
UPDATE orders SET updated_by_id = $2, updated_at = NOW()
WHERE id = $1
RETURNING id
`

type TouchOrderParams struct {
	ID          uuid.UUID
	UpdatedByID uuid.UUID
}

// TouchOrder stamps the parent order after a nested item or payment edit so
// the order-level "last touched" audit fields reflect nested changes.
func (q *Queries) TouchOrder(ctx context.Context, arg TouchOrderParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, touchOrder, arg.ID, arg.UpdatedByID).Scan(&id)
	return id, err
}

const deleteOrder = `
DELETE FROM orders WHERE id = $1
RETURNING id
`

// DeleteOrder hard-deletes an order; order_items, sub_order_items and
// payments go with it via ON DELETE CASCADE in a single atomic statement.
func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteOrder, id).Scan(&deleted)
	return deleted, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Name, &o.PhoneNumber, &o.Type, &o.Status, &o.Delivery,
		&o.DueDate, &o.AdditionalNotes, &o.CreatedByID, &o.UpdatedByID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
