package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const sumOrderItemsTotal = `
SELECT COALESCE((SELECT SUM(price) FROM order_items WHERE order_id = $1), 0)
	 + COALESCE((SELECT SUM(s.price)
				FROM sub_order_items s
				JOIN order_items i ON i.id = s.order_item_id
				WHERE i.order_id = $1), 0)
`

// SumOrderItemsTotal computes an order's total price: item prices plus all
// nested sub-item prices. SUM over bigint comes back as numeric.
func (q *Queries) SumOrderItemsTotal(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	err := q.db.QueryRow(ctx, sumOrderItemsTotal, orderID).Scan(&n)
	return n, err
}

const sumPaymentsByOrder = `
SELECT COALESCE(SUM(amount), 0)
FROM payments
WHERE order_id = $1 AND is_deleted = FALSE
`

func (q *Queries) SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	err := q.db.QueryRow(ctx, sumPaymentsByOrder, orderID).Scan(&n)
	return n, err
}

const getOrderStats = `
SELECT COUNT(*),
	COUNT(*) FILTER (WHERE status = 'COMPLETED'),
	COUNT(*) FILTER (WHERE status = 'IN_PROGRESS'),
	COUNT(*) FILTER (WHERE delivery = 'PENDING'),
	COUNT(*) FILTER (WHERE delivery = 'DELIVERED')
FROM orders
`

type GetOrderStatsRow struct {
	TotalOrders     int64
	Completed       int64
	InProgress      int64
	PendingDelivery int64
	Delivered       int64
}

func (q *Queries) GetOrderStats(ctx context.Context) (GetOrderStatsRow, error) {
	var r GetOrderStatsRow
	err := q.db.QueryRow(ctx, getOrderStats).Scan(
		&r.TotalOrders, &r.Completed, &r.InProgress, &r.PendingDelivery, &r.Delivered)
	return r, err
}

const sumItemRevenueBetween = `
SELECT COALESCE((SELECT SUM(i.price)
				FROM order_items i
				JOIN orders o ON o.id = i.order_id
				WHERE o.created_at >= $1 AND o.created_at < $2), 0)
	 + COALESCE((SELECT SUM(s.price)
				FROM sub_order_items s
				JOIN order_items i ON i.id = s.order_item_id
				JOIN orders o ON o.id = i.order_id
				WHERE o.created_at >= $1 AND o.created_at < $2), 0)
`

type RevenueWindowParams struct {
	Start time.Time
	End   time.Time
}

// SumItemRevenueBetween totals the item and sub-item prices of orders created
// in [Start, End), the revenue side of the monthly payment stats.
func (q *Queries) SumItemRevenueBetween(ctx context.Context, arg RevenueWindowParams) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	err := q.db.QueryRow(ctx, sumItemRevenueBetween, arg.Start, arg.End).Scan(&n)
	return n, err
}

const sumPaymentsForOrdersBetween = `
SELECT COALESCE(SUM(p.amount), 0)
FROM payments p
JOIN orders o ON o.id = p.order_id
WHERE o.created_at >= $1 AND o.created_at < $2 AND p.is_deleted = FALSE
`

func (q *Queries) SumPaymentsForOrdersBetween(ctx context.Context, arg RevenueWindowParams) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	err := q.db.QueryRow(ctx, sumPaymentsForOrdersBetween, arg.Start, arg.End).Scan(&n)
	return n, err
}
