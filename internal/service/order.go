package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kdotgoat/toms-api/internal/database"
)

var (
	// ErrEmptyItems is returned when an order is created without any items.
	ErrEmptyItems = errors.New("order must have at least one item")
	// ErrOrderNotFound is returned when the referenced parent order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderItemNotFound is returned when the referenced parent item does not exist.
	ErrOrderItemNotFound = errors.New("order item not found")
)

// InvalidClothingTypesError reports every missing clothing-type reference in
// a request at once, so the client can fix the whole payload in one go.
type InvalidClothingTypesError struct {
	IDs []uuid.UUID
}

func (e *InvalidClothingTypesError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	sort.Strings(ids)
	return "invalid clothing type ids: " + strings.Join(ids, ", ")
}

// InvalidMeasurementKeysError reports measurement keys that are not part of
// the referenced clothing type's declared field list.
type InvalidMeasurementKeysError struct {
	ClothingType string
	Keys         []string
}

func (e *InvalidMeasurementKeysError) Error() string {
	keys := append([]string(nil), e.Keys...)
	sort.Strings(keys)
	return fmt.Sprintf("measurements for %s have unknown fields: %s", e.ClothingType, strings.Join(keys, ", "))
}

// IsValidationError reports whether err should surface as a 400 to the client.
func IsValidationError(err error) bool {
	var ict *InvalidClothingTypesError
	var imk *InvalidMeasurementKeysError
	return errors.Is(err, ErrEmptyItems) || errors.As(err, &ict) || errors.As(err, &imk)
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders and items.
// Satisfied by *database.Queries bound to either the pool or a transaction.
type OrderStore interface {
	ListClothingTypesByIDs(ctx context.Context, ids []uuid.UUID) ([]database.ClothingType, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateSubOrderItem(ctx context.Context, arg database.CreateSubOrderItemParams) (database.SubOrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error)
	TouchOrder(ctx context.Context, arg database.TouchOrderParams) (uuid.UUID, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx), letting the
// service run store calls inside its own transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	Name            string
	PhoneNumber     string
	Type            string
	DueDate         time.Time
	AdditionalNotes string
	CreatedBy       uuid.UUID
	Items           []OrderItemRequest
}

// OrderItemRequest is a top-level item with optional nested pieces.
type OrderItemRequest struct {
	ClothingTypeID uuid.UUID
	Price          int64
	Measurements   map[string]interface{}
	SubOrder       []SubOrderItemRequest
}

// SubOrderItemRequest is a garment nested under an order item.
type SubOrderItemRequest struct {
	ClothingTypeID uuid.UUID
	Price          int64
	Measurements   map[string]interface{}
}

// CreateOrderResult is the created order with its nested items.
type CreateOrderResult struct {
	Order database.Order
	Items []OrderItemResult
}

// OrderItemResult pairs an item with its sub-items.
type OrderItemResult struct {
	Item     database.OrderItem
	SubItems []database.SubOrderItem
}

// OrderService handles multi-row order mutations that must be atomic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// CreateOrder validates every clothing-type reference and measurement key,
// then inserts the order, its items, and their sub-items in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return CreateOrderResult{}, ErrEmptyItems
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	store := s.newStore(tx)

	typesByID, err := s.resolveClothingTypes(ctx, store, collectTypeIDs(req.Items))
	if err != nil {
		return CreateOrderResult{}, err
	}
	for _, item := range req.Items {
		if err := checkMeasurementKeys(typesByID[item.ClothingTypeID], item.Measurements); err != nil {
			return CreateOrderResult{}, err
		}
		for _, sub := range item.SubOrder {
			if err := checkMeasurementKeys(typesByID[sub.ClothingTypeID], sub.Measurements); err != nil {
				return CreateOrderResult{}, err
			}
		}
	}

	notes := pgtype.Text{}
	if req.AdditionalNotes != "" {
		notes = pgtype.Text{String: req.AdditionalNotes, Valid: true}
	}
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		Name:            req.Name,
		PhoneNumber:     req.PhoneNumber,
		Type:            req.Type,
		DueDate:         req.DueDate,
		AdditionalNotes: notes,
		CreatedByID:     req.CreatedBy,
	})
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("insert order: %w", err)
	}

	result := CreateOrderResult{Order: order, Items: make([]OrderItemResult, 0, len(req.Items))}
	for _, item := range req.Items {
		created, err := s.insertItemTree(ctx, store, order.ID, item)
		if err != nil {
			return CreateOrderResult{}, err
		}
		result.Items = append(result.Items, created)
	}

	if err := tx.Commit(ctx); err != nil {
		return CreateOrderResult{}, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// AddOrderItem appends an item (and its sub-items) to an existing order and
// stamps the order as updated by the acting staff member.
func (s *OrderService) AddOrderItem(ctx context.Context, orderID, updatedBy uuid.UUID, item OrderItemRequest) (OrderItemResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return OrderItemResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	store := s.newStore(tx)

	if _, err := store.GetOrder(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderItemResult{}, ErrOrderNotFound
		}
		return OrderItemResult{}, fmt.Errorf("get order: %w", err)
	}

	typesByID, err := s.resolveClothingTypes(ctx, store, collectTypeIDs([]OrderItemRequest{item}))
	if err != nil {
		return OrderItemResult{}, err
	}
	if err := checkMeasurementKeys(typesByID[item.ClothingTypeID], item.Measurements); err != nil {
		return OrderItemResult{}, err
	}
	for _, sub := range item.SubOrder {
		if err := checkMeasurementKeys(typesByID[sub.ClothingTypeID], sub.Measurements); err != nil {
			return OrderItemResult{}, err
		}
	}

	created, err := s.insertItemTree(ctx, store, orderID, item)
	if err != nil {
		return OrderItemResult{}, err
	}

	if _, err := store.TouchOrder(ctx, database.TouchOrderParams{ID: orderID, UpdatedByID: updatedBy}); err != nil {
		return OrderItemResult{}, fmt.Errorf("touch order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return OrderItemResult{}, fmt.Errorf("commit tx: %w", err)
	}
	return created, nil
}

// AddSubOrderItem appends a nested piece to an existing order item.
func (s *OrderService) AddSubOrderItem(ctx context.Context, orderID, itemID, updatedBy uuid.UUID, sub SubOrderItemRequest) (database.SubOrderItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.SubOrderItem{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	store := s.newStore(tx)

	if _, err := store.GetOrderItem(ctx, database.GetOrderItemParams{ID: itemID, OrderID: orderID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.SubOrderItem{}, ErrOrderItemNotFound
		}
		return database.SubOrderItem{}, fmt.Errorf("get order item: %w", err)
	}

	typesByID, err := s.resolveClothingTypes(ctx, store, []uuid.UUID{sub.ClothingTypeID})
	if err != nil {
		return database.SubOrderItem{}, err
	}
	if err := checkMeasurementKeys(typesByID[sub.ClothingTypeID], sub.Measurements); err != nil {
		return database.SubOrderItem{}, err
	}

	measurements, err := marshalMeasurements(sub.Measurements)
	if err != nil {
		return database.SubOrderItem{}, err
	}
	created, err := store.CreateSubOrderItem(ctx, database.CreateSubOrderItemParams{
		OrderItemID:    itemID,
		ClothingTypeID: sub.ClothingTypeID,
		Price:          sub.Price,
		Measurements:   measurements,
	})
	if err != nil {
		return database.SubOrderItem{}, fmt.Errorf("insert sub order item: %w", err)
	}

	if _, err := store.TouchOrder(ctx, database.TouchOrderParams{ID: orderID, UpdatedByID: updatedBy}); err != nil {
		return database.SubOrderItem{}, fmt.Errorf("touch order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.SubOrderItem{}, fmt.Errorf("commit tx: %w", err)
	}
	return created, nil
}

func (s *OrderService) insertItemTree(ctx context.Context, store OrderStore, orderID uuid.UUID, item OrderItemRequest) (OrderItemResult, error) {
	measurements, err := marshalMeasurements(item.Measurements)
	if err != nil {
		return OrderItemResult{}, err
	}
	created, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
		OrderID:        orderID,
		ClothingTypeID: item.ClothingTypeID,
		Price:          item.Price,
		Measurements:   measurements,
	})
	if err != nil {
		return OrderItemResult{}, fmt.Errorf("insert order item: %w", err)
	}

	result := OrderItemResult{Item: created}
	for _, sub := range item.SubOrder {
		subMeasurements, err := marshalMeasurements(sub.Measurements)
		if err != nil {
			return OrderItemResult{}, err
		}
		createdSub, err := store.CreateSubOrderItem(ctx, database.CreateSubOrderItemParams{
			OrderItemID:    created.ID,
			ClothingTypeID: sub.ClothingTypeID,
			Price:          sub.Price,
			Measurements:   subMeasurements,
		})
		if err != nil {
			return OrderItemResult{}, fmt.Errorf("insert sub order item: %w", err)
		}
		result.SubItems = append(result.SubItems, createdSub)
	}
	return result, nil
}

// resolveClothingTypes batch-fetches the referenced types and fails with the
// full set of unknown ids if any are missing.
func (s *OrderService) resolveClothingTypes(ctx context.Context, store OrderStore, ids []uuid.UUID) (map[uuid.UUID]database.ClothingType, error) {
	found, err := store.ListClothingTypesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list clothing types: %w", err)
	}
	byID := make(map[uuid.UUID]database.ClothingType, len(found))
	for _, ct := range found {
		byID[ct.ID] = ct
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &InvalidClothingTypesError{IDs: missing}
	}
	return byID, nil
}

// checkMeasurementKeys compares case-insensitively: declared fields are
// stored lowercased, but clients send keys like "Waist".
func checkMeasurementKeys(ct database.ClothingType, measurements map[string]interface{}) error {
	if len(measurements) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(ct.Measurements))
	for _, field := range ct.Measurements {
		allowed[strings.ToLower(field)] = true
	}
	var unknown []string
	for key := range measurements {
		if !allowed[strings.ToLower(key)] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		return &InvalidMeasurementKeysError{ClothingType: ct.Name, Keys: unknown}
	}
	return nil
}

func marshalMeasurements(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		m = map[string]interface{}{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal measurements: %w", err)
	}
	return data, nil
}

// collectTypeIDs returns the unique clothing-type ids referenced by items
// and their sub-items, preserving first-seen order.
func collectTypeIDs(items []OrderItemRequest) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, item := range items {
		add(item.ClothingTypeID)
		for _, sub := range item.SubOrder {
			add(sub.ClothingTypeID)
		}
	}
	return ids
}
