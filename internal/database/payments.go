package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createPayment = `
INSERT INTO payments (order_id, amount, mode, reference, updated_by_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, amount, mode, reference, is_deleted, updated_by_id, created_at, updated_at
`

type CreatePaymentParams struct {
	OrderID     uuid.UUID
	Amount      int64
	Mode        string
	Reference   pgtype.Text
	UpdatedByID uuid.UUID
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.OrderID, arg.Amount, arg.Mode, arg.Reference, arg.UpdatedByID)
	return scanPayment(row)
}

const getPayment = `
SELECT p.id, p.order_id, p.amount, p.mode, p.reference, p.is_deleted, p.updated_by_id,
	p.created_at, p.updated_at,
	o.name, s.first_name, s.last_name
FROM payments p
JOIN orders o ON o.id = p.order_id
JOIN staff s ON s.id = p.updated_by_id
WHERE p.id = $1
`

// GetPaymentRow joins the order and staff summaries the detail endpoints
// render. Soft-deleted payments are intentionally still retrievable here
// so the audit trail stays reachable.
type GetPaymentRow struct {
	Payment        Payment
	OrderName      string
	StaffFirstName string
	StaffLastName  string
}

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (GetPaymentRow, error) {
	row := q.db.QueryRow(ctx, getPayment, id)
	var r GetPaymentRow
	err := row.Scan(&r.Payment.ID, &r.Payment.OrderID, &r.Payment.Amount, &r.Payment.Mode,
		&r.Payment.Reference, &r.Payment.IsDeleted, &r.Payment.UpdatedByID,
		&r.Payment.CreatedAt, &r.Payment.UpdatedAt,
		&r.OrderName, &r.StaffFirstName, &r.StaffLastName)
	return r, err
}

const listPayments = `
SELECT p.id, p.order_id, p.amount, p.mode, p.reference, p.is_deleted, p.updated_by_id,
	p.created_at, p.updated_at,
	o.name, s.first_name, s.last_name
FROM payments p
JOIN orders o ON o.id = p.order_id
JOIN staff s ON s.id = p.updated_by_id
WHERE p.is_deleted = FALSE
ORDER BY p.created_at DESC
LIMIT $1 OFFSET $2
`

type ListPaymentsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListPayments(ctx context.Context, arg ListPaymentsParams) ([]GetPaymentRow, error) {
	rows, err := q.db.Query(ctx, listPayments, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetPaymentRow
	for rows.Next() {
		var r GetPaymentRow
		if err := rows.Scan(&r.Payment.ID, &r.Payment.OrderID, &r.Payment.Amount, &r.Payment.Mode,
			&r.Payment.Reference, &r.Payment.IsDeleted, &r.Payment.UpdatedByID,
			&r.Payment.CreatedAt, &r.Payment.UpdatedAt,
			&r.OrderName, &r.StaffFirstName, &r.StaffLastName); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const countPayments = `SELECT COUNT(*) FROM payments WHERE is_deleted = FALSE`

func (q *Queries) CountPayments(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countPayments).Scan(&n)
	return n, err
}

const listPaymentsByOrder = `
SELECT p.id, p.order_id, p.amount, p.mode, p.reference, p.is_deleted, p.updated_by_id,
	p.created_at, p.updated_at,
	o.name, s.first_name, s.last_name
FROM payments p
JOIN orders o ON o.id = p.order_id
JOIN staff s ON s.id = p.updated_by_id
WHERE p.order_id = $1 AND p.is_deleted = FALSE
ORDER BY p.updated_at DESC
`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]GetPaymentRow, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetPaymentRow
	for rows.Next() {
		var r GetPaymentRow
		if err := rows.Scan(&r.Payment.ID, &r.Payment.OrderID, &r.Payment.Amount, &r.Payment.Mode,
			&r.Payment.Reference, &r.Payment.IsDeleted, &r.Payment.UpdatedByID,
			&r.Payment.CreatedAt, &r.Payment.UpdatedAt,
			&r.OrderName, &r.StaffFirstName, &r.StaffLastName); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updatePayment = `
UPDATE payments SET
	amount        = COALESCE($2, amount),
	mode          = COALESCE($3, mode),
	reference     = COALESCE($4, reference),
	updated_by_id = $5,
	updated_at    = NOW()
WHERE id = $1
RETURNING id, order_id, amount, mode, reference, is_deleted, updated_by_id, created_at, updated_at
`

type UpdatePaymentParams struct {
	ID          uuid.UUID
	Amount      pgtype.Int8
	Mode        pgtype.Text
	Reference   pgtype.Text
	UpdatedByID uuid.UUID
}

func (q *Queries) UpdatePayment(ctx context.Context, arg UpdatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, updatePayment,
		arg.ID, arg.Amount, arg.Mode, arg.Reference, arg.UpdatedByID)
	return scanPayment(row)
}

const softDeletePayment = `
UPDATE payments SET is_deleted = TRUE, updated_by_id = $2, updated_at = NOW()
WHERE id = $1 AND is_deleted = FALSE
RETURNING id, order_id, amount, mode, reference, is_deleted, updated_by_id, created_at, updated_at
`

type SoftDeletePaymentParams struct {
	ID          uuid.UUID
	UpdatedByID uuid.UUID
}

func (q *Queries) SoftDeletePayment(ctx context.Context, arg SoftDeletePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, softDeletePayment, arg.ID, arg.UpdatedByID)
	return scanPayment(row)
}

func scanPayment(row rowScanner) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Mode, &p.Reference, &p.IsDeleted,
		&p.UpdatedByID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
