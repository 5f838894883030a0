package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createOrderItem = `
INSERT INTO order_items (order_id, clothing_type_id, price, measurements)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, clothing_type_id, price, measurements, created_at, updated_at
`

type CreateOrderItemParams struct {
	OrderID        uuid.UUID
	ClothingTypeID uuid.UUID
	Price          int64
	Measurements   []byte
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.ClothingTypeID, arg.Price, arg.Measurements)
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.ClothingTypeID, &i.Price, &i.Measurements, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getOrderItem = `
SELECT id, order_id, clothing_type_id, price, measurements, created_at, updated_at
FROM order_items WHERE id = $1 AND order_id = $2
`

type GetOrderItemParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) GetOrderItem(ctx context.Context, arg GetOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, getOrderItem, arg.ID, arg.OrderID)
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.ClothingTypeID, &i.Price, &i.Measurements, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listOrderItemsByOrder = `
SELECT id, order_id, clothing_type_id, price, measurements, created_at, updated_at
FROM order_items WHERE order_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.ClothingTypeID, &i.Price, &i.Measurements, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateOrderItem = `
UPDATE order_items SET
	clothing_type_id = COALESCE($3, clothing_type_id),
	price            = COALESCE($4, price),
	measurements     = COALESCE($5, measurements),
	updated_at       = NOW()
WHERE id = $1 AND order_id = $2
RETURNING id, order_id, clothing_type_id, price, measurements, created_at, updated_at
`

type UpdateOrderItemParams struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	ClothingTypeID pgtype.UUID
	Price          pgtype.Int8
	Measurements   []byte
}

func (q *Queries) UpdateOrderItem(ctx context.Context, arg UpdateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, updateOrderItem,
		arg.ID, arg.OrderID, arg.ClothingTypeID, arg.Price, arg.Measurements)
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.ClothingTypeID, &i.Price, &i.Measurements, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const deleteOrderItem = `
DELETE FROM order_items WHERE id = $1 AND order_id = $2
RETURNING id
`

type DeleteOrderItemParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) DeleteOrderItem(ctx context.Context, arg DeleteOrderItemParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, deleteOrderItem, arg.ID, arg.OrderID).Scan(&id)
	return id, err
}

// --- Sub-order items ---

const createSubOrderItem = `
INSERT INTO sub_order_items (order_item_id, clothing_type_id, price, measurements)
VALUES ($1, $2, $3, $4)
RETURNING id, order_item_id, clothing_type_id, price, measurements, created_at, updated_at
`

type CreateSubOrderItemParams struct {
	OrderItemID    uuid.UUID
	ClothingTypeID uuid.UUID
	Price          int64
	Measurements   []byte
}

func (q *Queries) CreateSubOrderItem(ctx context.Context, arg CreateSubOrderItemParams) (SubOrderItem, error) {
	row := q.db.QueryRow(ctx, createSubOrderItem,
		arg.OrderItemID, arg.ClothingTypeID, arg.Price, arg.Measurements)
	var s SubOrderItem
	err := row.Scan(&s.ID, &s.OrderItemID, &s.ClothingTypeID, &s.Price, &s.Measurements, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const getSubOrderItem = `
SELECT id, order_item_id, clothing_type_id, price, measurements, created_at, updated_at
FROM sub_order_items WHERE id = $1 AND order_item_id = $2
`

type GetSubOrderItemParams struct {
	ID          uuid.UUID
	OrderItemID uuid.UUID
}

func (q *Queries) GetSubOrderItem(ctx context.Context, arg GetSubOrderItemParams) (SubOrderItem, error) {
	row := q.db.QueryRow(ctx, getSubOrderItem, arg.ID, arg.OrderItemID)
	var s SubOrderItem
	err := row.Scan(&s.ID, &s.OrderItemID, &s.ClothingTypeID, &s.Price, &s.Measurements, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const listSubOrderItemsByOrderItem = `
SELECT id, order_item_id, clothing_type_id, price, measurements, created_at, updated_at
FROM sub_order_items WHERE order_item_id = $1
ORDER BY created_at
`

func (q *Queries) ListSubOrderItemsByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]SubOrderItem, error) {
	rows, err := q.db.Query(ctx, listSubOrderItemsByOrderItem, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SubOrderItem
	for rows.Next() {
		var s SubOrderItem
		if err := rows.Scan(&s.ID, &s.OrderItemID, &s.ClothingTypeID, &s.Price, &s.Measurements, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const updateSubOrderItem = `
UPDATE sub_order_items SET
	clothing_type_id = COALESCE($3, clothing_type_id),
	price            = COALESCE($4, price),
	measurements     = COALESCE($5, measurements),
	updated_at       = NOW()
WHERE id = $1 AND order_item_id = $2
RETURNING id, order_item_id, clothing_type_id, price, measurements, created_at, updated_at
`

type UpdateSubOrderItemParams struct {
	ID             uuid.UUID
	OrderItemID    uuid.UUID
	ClothingTypeID pgtype.UUID
	Price          pgtype.Int8
	Measurements   []byte
}

func (q *Queries) UpdateSubOrderItem(ctx context.Context, arg UpdateSubOrderItemParams) (SubOrderItem, error) {
	row := q.db.QueryRow(ctx, updateSubOrderItem,
		arg.ID, arg.OrderItemID, arg.ClothingTypeID, arg.Price, arg.Measurements)
	var s SubOrderItem
	err := row.Scan(&s.ID, &s.OrderItemID, &s.ClothingTypeID, &s.Price, &s.Measurements, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const deleteSubOrderItem = `
DELETE FROM sub_order_items WHERE id = $1 AND order_item_id = $2
RETURNING id
`

type DeleteSubOrderItemParams struct {
	ID          uuid.UUID
	OrderItemID uuid.UUID
}

func (q *Queries) DeleteSubOrderItem(ctx context.Context, arg DeleteSubOrderItemParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, deleteSubOrderItem, arg.ID, arg.OrderItemID).Scan(&id)
	return id, err
}
