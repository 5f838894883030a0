package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kdotgoat/toms-api/internal/database"
	"github.com/kdotgoat/toms-api/internal/enum"
	"github.com/kdotgoat/toms-api/internal/middleware"
	"github.com/kdotgoat/toms-api/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// EventBroadcaster pushes realtime events to connected dashboard clients.
// Satisfied by *ws.Hub.
type EventBroadcaster interface {
	Broadcast(eventType string, payload interface{})
}

// OrderStore defines the database methods needed by order handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CountOrders(ctx context.Context) (int64, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	TouchOrder(ctx context.Context, arg database.TouchOrderParams) (uuid.UUID, error)

	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error)
	UpdateOrderItem(ctx context.Context, arg database.UpdateOrderItemParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, arg database.DeleteOrderItemParams) (uuid.UUID, error)

	ListSubOrderItemsByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]database.SubOrderItem, error)
	GetSubOrderItem(ctx context.Context, arg database.GetSubOrderItemParams) (database.SubOrderItem, error)
	UpdateSubOrderItem(ctx context.Context, arg database.UpdateSubOrderItemParams) (database.SubOrderItem, error)
	DeleteSubOrderItem(ctx context.Context, arg database.DeleteSubOrderItemParams) (uuid.UUID, error)

	GetClothingType(ctx context.Context, id uuid.UUID) (database.ClothingType, error)
	SumOrderItemsTotal(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	GetOrderStats(ctx context.Context) (database.GetOrderStatsRow, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.GetPaymentRow, error)
	GetStaffByID(ctx context.Context, id uuid.UUID) (database.Staff, error)
}

// OrderCreator is the transactional slice of the order service the handlers
// delegate multi-row creation to.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (service.CreateOrderResult, error)
	AddOrderItem(ctx context.Context, orderID, updatedBy uuid.UUID, item service.OrderItemRequest) (service.OrderItemResult, error)
	AddSubOrderItem(ctx context.Context, orderID, itemID, updatedBy uuid.UUID, sub service.SubOrderItemRequest) (database.SubOrderItem, error)
}

// OrderHandler handles order CRUD, nested item endpoints and order stats.
type OrderHandler struct {
	store OrderStore
	svc   OrderCreator
	hub   EventBroadcaster
}

func NewOrderHandler(store OrderStore, svc OrderCreator, hub EventBroadcaster) *OrderHandler {
	return &OrderHandler{store: store, svc: svc, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats", h.Stats)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Get("/payments", h.Payments)
		r.Post("/items", h.AddItem)
		r.Route("/items/{itemId}", func(r chi.Router) {
			r.Patch("/", h.UpdateItem)
			r.Delete("/", h.DeleteItem)
			r.Post("/suborders", h.AddSubOrderItem)
			r.Patch("/suborders/{subOrderId}", h.UpdateSubOrderItem)
			r.Delete("/suborders/{subOrderId}", h.DeleteSubOrderItem)
		})
	})
}

// --- Request / Response types ---

type createOrderRequest struct {
	Name            string             `json:"name"`
	PhoneNumber     string             `json:"phoneNumber"`
	Type            string             `json:"type"`
	DueDate         time.Time          `json:"dueDate"`
	AdditionalNotes string             `json:"additionalNotes"`
	Items           []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ClothingTypeID string                 `json:"clothingTypeId"`
	Price          *int64                 `json:"price"`
	Measurements   map[string]interface{} `json:"measurements"`
	SubOrder       []subOrderItemRequest  `json:"subOrder"`
}

type subOrderItemRequest struct {
	ClothingTypeID string                 `json:"clothingTypeId"`
	Price          *int64                 `json:"price"`
	Measurements   map[string]interface{} `json:"measurements"`
}

type updateOrderRequest struct {
	Name            *string    `json:"name"`
	PhoneNumber     *string    `json:"phoneNumber"`
	Type            *string    `json:"type"`
	Status          *string    `json:"status"`
	Delivery        *string    `json:"delivery"`
	DueDate         *time.Time `json:"dueDate"`
	AdditionalNotes *string    `json:"additionalNotes"`
}

type updateItemRequest struct {
	ClothingTypeID *string                `json:"clothingTypeId"`
	Price          *int64                 `json:"price"`
	Measurements   map[string]interface{} `json:"measurements"`
}

type deleteOrderRequest struct {
	Password string `json:"password"`
}

type orderSummaryResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	PhoneNumber   string    `json:"phoneNumber"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Delivery      string    `json:"delivery"`
	DueDate       time.Time `json:"dueDate"`
	TotalPrice    int64     `json:"totalPrice"`
	TotalPayments int64     `json:"totalPayments"`
	Balance       int64     `json:"balance"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type orderDetailResponse struct {
	orderSummaryResponse
	AdditionalNotes *string             `json:"additionalNotes"`
	CreatedByID     uuid.UUID           `json:"createdById"`
	UpdatedByID     *uuid.UUID          `json:"updatedById"`
	Items           []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID             uuid.UUID              `json:"id"`
	ClothingTypeID uuid.UUID              `json:"clothingTypeId"`
	Price          int64                  `json:"price"`
	Measurements   map[string]interface{} `json:"measurements"`
	SubOrder       []subOrderItemResponse `json:"subOrder"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type subOrderItemResponse struct {
	ID             uuid.UUID              `json:"id"`
	ClothingTypeID uuid.UUID              `json:"clothingTypeId"`
	Price          int64                  `json:"price"`
	Measurements   map[string]interface{} `json:"measurements"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type orderStatsResponse struct {
	TotalOrders     int64 `json:"totalOrders"`
	Completed       int64 `json:"completed"`
	InProgress      int64 `json:"inProgress"`
	PendingDelivery int64 `json:"pendingDelivery"`
	Delivered       int64 `json:"delivered"`
}

func validOrderType(t string) bool {
	switch t {
	case enum.OrderTypeIndividual, enum.OrderTypeGroup:
		return true
	}
	return false
}

func validOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusInProgress,
		enum.OrderStatusCompleted, enum.OrderStatusCancelled:
		return true
	}
	return false
}

func validDelivery(d string) bool {
	switch d {
	case enum.DeliveryPending, enum.DeliveryDelivered:
		return true
	}
	return false
}

func decodeMeasurements(raw []byte) map[string]interface{} {
	m := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			log.Printf("ERROR: decode stored measurements: %v", err)
		}
	}
	return m
}

func toOrderSummary(o database.Order, totalPrice, totalPayments int64) orderSummaryResponse {
	return orderSummaryResponse{
		ID:            o.ID,
		Name:          o.Name,
		PhoneNumber:   o.PhoneNumber,
		Type:          o.Type,
		Status:        o.Status,
		Delivery:      o.Delivery,
		DueDate:       o.DueDate,
		TotalPrice:    totalPrice,
		TotalPayments: totalPayments,
		Balance:       totalPrice - totalPayments,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toOrderDetail(o database.Order, items []orderItemResponse, totalPrice, totalPayments int64) orderDetailResponse {
	resp := orderDetailResponse{
		orderSummaryResponse: toOrderSummary(o, totalPrice, totalPayments),
		CreatedByID:          o.CreatedByID,
		Items:                items,
	}
	if o.AdditionalNotes.Valid {
		resp.AdditionalNotes = &o.AdditionalNotes.String
	}
	if o.UpdatedByID.Valid {
		id := uuid.UUID(o.UpdatedByID.Bytes)
		resp.UpdatedByID = &id
	}
	return resp
}

func toItemResponse(item database.OrderItem, subs []database.SubOrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:             item.ID,
		ClothingTypeID: item.ClothingTypeID,
		Price:          item.Price,
		Measurements:   decodeMeasurements(item.Measurements),
		SubOrder:       make([]subOrderItemResponse, len(subs)),
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
	for i, s := range subs {
		resp.SubOrder[i] = toSubItemResponse(s)
	}
	return resp
}

func toSubItemResponse(s database.SubOrderItem) subOrderItemResponse {
	return subOrderItemResponse{
		ID:             s.ID,
		ClothingTypeID: s.ClothingTypeID,
		Price:          s.Price,
		Measurements:   decodeMeasurements(s.Measurements),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// --- Handlers ---

// List returns paginated order summaries with derived totals.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		Limit:  defaultPageSize,
		Offset: int32((page - 1) * defaultPageSize),
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	total, err := h.store.CountOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: count orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderSummaryResponse, len(orders))
	for i, o := range orders {
		totalPrice, totalPayments, err := h.orderTotals(r.Context(), o.ID)
		if err != nil {
			log.Printf("ERROR: order totals: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp[i] = toOrderSummary(o, totalPrice, totalPayments)
	}

	writeSuccess(w, http.StatusOK, "", envelope{
		"orders":     resp,
		"pagination": buildPagination(page, total),
	})
}

// Create inserts an order with its nested items in one transaction.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "customer name and phone number are required")
		return
	}
	if !validOrderType(req.Type) {
		writeError(w, http.StatusBadRequest, "type must be INDIVIDUAL or GROUP")
		return
	}
	if !req.DueDate.After(time.Now()) {
		writeError(w, http.StatusBadRequest, "due date must be in the future")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "order must have at least one item")
		return
	}

	svcItems := make([]service.OrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItem, err := toServiceItem(item)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		svcItems[i] = svcItem
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		Name:            normalizeName(req.Name),
		PhoneNumber:     req.PhoneNumber,
		Type:            req.Type,
		DueDate:         req.DueDate,
		AdditionalNotes: req.AdditionalNotes,
		CreatedBy:       claims.StaffID,
		Items:           svcItems,
	})
	if err != nil {
		if service.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items := make([]orderItemResponse, len(result.Items))
	var totalPrice int64
	for i, it := range result.Items {
		items[i] = toItemResponse(it.Item, it.SubItems)
		totalPrice += it.Item.Price
		for _, s := range it.SubItems {
			totalPrice += s.Price
		}
	}
	detail := toOrderDetail(result.Order, items, totalPrice, 0)

	h.hub.Broadcast("order.created", detail)
	writeSuccess(w, http.StatusCreated, "order created", envelope{"order": detail})
}

// Stats returns the dashboard counters in a single pass.
func (h *OrderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetOrderStats(r.Context())
	if err != nil {
		log.Printf("ERROR: order stats: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "", envelope{"stats": orderStatsResponse{
		TotalOrders:     stats.TotalOrders,
		Completed:       stats.Completed,
		InProgress:      stats.InProgress,
		PendingDelivery: stats.PendingDelivery,
		Delivered:       stats.Delivered,
	}})
}

// Get returns a single order with nested items and derived totals.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	detail, err := h.loadDetail(r.Context(), order)
	if err != nil {
		log.Printf("ERROR: load order detail: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "", envelope{"order": detail})
}

// Update applies a partial update; omitted fields are left unchanged.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := database.UpdateOrderParams{ID: id, UpdatedByID: claims.StaffID}
	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "customer name cannot be empty")
			return
		}
		params.Name = pgtype.Text{String: normalizeName(*req.Name), Valid: true}
	}
	if req.PhoneNumber != nil {
		if *req.PhoneNumber == "" {
			writeError(w, http.StatusBadRequest, "phone number cannot be empty")
			return
		}
		params.PhoneNumber = pgtype.Text{String: *req.PhoneNumber, Valid: true}
	}
	if req.Type != nil {
		if !validOrderType(*req.Type) {
			writeError(w, http.StatusBadRequest, "type must be INDIVIDUAL or GROUP")
			return
		}
		params.Type = pgtype.Text{String: *req.Type, Valid: true}
	}
	if req.Status != nil {
		if !validOrderStatus(*req.Status) {
			writeError(w, http.StatusBadRequest, "invalid order status")
			return
		}
		params.Status = pgtype.Text{String: *req.Status, Valid: true}
	}
	if req.Delivery != nil {
		if !validDelivery(*req.Delivery) {
			writeError(w, http.StatusBadRequest, "delivery must be PENDING or DELIVERED")
			return
		}
		params.Delivery = pgtype.Text{String: *req.Delivery, Valid: true}
	}
	if req.DueDate != nil {
		if !req.DueDate.After(time.Now()) {
			writeError(w, http.StatusBadRequest, "due date must be in the future")
			return
		}
		params.DueDate = pgtype.Timestamptz{Time: *req.DueDate, Valid: true}
	}
	if req.AdditionalNotes != nil {
		params.AdditionalNotes = pgtype.Text{String: *req.AdditionalNotes, Valid: true}
	}

	order, err := h.store.UpdateOrder(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: update order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	detail, err := h.loadDetail(r.Context(), order)
	if err != nil {
		log.Printf("ERROR: load order detail: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.hub.Broadcast("order.updated", detail)
	writeSuccess(w, http.StatusOK, "order updated", envelope{"order": detail})
}

// Delete removes an order and everything under it. The acting staff member
// re-enters their password to confirm; items and payments go with the order
// through the FK cascade.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req deleteOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "password confirmation is required")
		return
	}

	actor, err := h.store.GetStaffByID(r.Context(), claims.StaffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		log.Printf("ERROR: get acting staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(actor.HashedPassword), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "password is incorrect")
		return
	}

	if _, err := h.store.DeleteOrder(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: delete order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.hub.Broadcast("order.deleted", envelope{"id": id})
	writeSuccess(w, http.StatusOK, "order deleted", nil)
}

// Payments lists the non-deleted payments recorded against an order,
// newest activity first.
func (h *OrderHandler) Payments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	if _, err := h.store.GetOrder(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order for payments: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	rows, err := h.store.ListPaymentsByOrder(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list order payments: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]paymentResponse, len(rows))
	for i, row := range rows {
		resp[i] = toPaymentResponse(row)
	}
	writeSuccess(w, http.StatusOK, "", envelope{"payments": resp})
}

// AddItem appends an item (with optional nested pieces) to an order.
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req orderItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcItem, err := toServiceItem(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.AddOrderItem(r.Context(), orderID, claims.StaffID, svcItem)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		if service.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("ERROR: add order item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	item := toItemResponse(result.Item, result.SubItems)
	h.hub.Broadcast("order.updated", envelope{"id": orderID, "item": item})
	writeSuccess(w, http.StatusCreated, "item added", envelope{"item": item})
}

// UpdateItem applies a partial update to an order item. When either the
// clothing type or the measurements change, the keys are re-checked against
// the effective type's field list.
func (h *OrderHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orderID, itemID, ok := parseItemPath(w, r)
	if !ok {
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.store.GetOrderItem(r.Context(), database.GetOrderItemParams{ID: itemID, OrderID: orderID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order item not found")
			return
		}
		log.Printf("ERROR: get order item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	params := database.UpdateOrderItemParams{ID: itemID, OrderID: orderID}
	effectiveType := item.ClothingTypeID
	if req.ClothingTypeID != nil {
		ctID, err := uuid.Parse(*req.ClothingTypeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid clothing type ID")
			return
		}
		params.ClothingTypeID = pgtype.UUID{Bytes: ctID, Valid: true}
		effectiveType = ctID
	}
	if req.Price != nil {
		if *req.Price < 0 {
			writeError(w, http.StatusBadRequest, "price cannot be negative")
			return
		}
		params.Price = pgtype.Int8{Int64: *req.Price, Valid: true}
	}
	if req.Measurements != nil {
		if ok := h.checkMeasurements(w, r, effectiveType, req.Measurements); !ok {
			return
		}
		raw, err := json.Marshal(req.Measurements)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid measurements")
			return
		}
		params.Measurements = raw
	} else if req.ClothingTypeID != nil {
		// Changing the type without new measurements: the stored keys must
		// still fit the new type's field list.
		if ok := h.checkMeasurements(w, r, effectiveType, decodeMeasurements(item.Measurements)); !ok {
			return
		}
	}

	updated, err := h.store.UpdateOrderItem(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order item not found")
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "clothing type does not exist")
			return
		}
		log.Printf("ERROR: update order item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !h.touchOrder(w, r, orderID, claims.StaffID) {
		return
	}

	subs, err := h.store.ListSubOrderItemsByOrderItem(r.Context(), updated.ID)
	if err != nil {
		log.Printf("ERROR: list sub order items: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := toItemResponse(updated, subs)
	h.hub.Broadcast("order.updated", envelope{"id": orderID, "item": resp})
	writeSuccess(w, http.StatusOK, "item updated", envelope{"item": resp})
}

// DeleteItem removes an order item and its nested pieces.
func (h *OrderHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orderID, itemID, ok := parseItemPath(w, r)
	if !ok {
		return
	}

	if _, err := h.store.DeleteOrderItem(r.Context(), database.DeleteOrderItemParams{ID: itemID, OrderID: orderID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order item not found")
			return
		}
		log.Printf("ERROR: delete order item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !h.touchOrder(w, r, orderID, claims.StaffID) {
		return
	}

	h.hub.Broadcast("order.updated", envelope{"id": orderID, "deletedItemId": itemID})
	writeSuccess(w, http.StatusOK, "item deleted", nil)
}

// AddSubOrderItem appends a nested piece under an order item.
func (h *OrderHandler) AddSubOrderItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orderID, itemID, ok := parseItemPath(w, r)
	if !ok {
		return
	}

	var req subOrderItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcSub, err := toServiceSubItem(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.svc.AddSubOrderItem(r.Context(), orderID, itemID, claims.StaffID, svcSub)
	if err != nil {
		if errors.Is(err, service.ErrOrderItemNotFound) {
			writeError(w, http.StatusNotFound, "order item not found")
			return
		}
		if service.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("ERROR: add sub order item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := toSubItemResponse(created)
	h.hub.Broadcast("order.updated", envelope{"id": orderID, "subOrderItem": resp})
	writeSuccess(w, http.StatusCreated, "sub order item added", envelope{"subOrderItem": resp})
}

// UpdateSubOrderItem applies a partial update to a nested piece.
func (h *OrderHandler) UpdateSubOrderItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orderID, itemID, ok := parseItemPath(w, r)
	if !ok {
		return
	}
	subID, err := uuid.Parse(chi.URLParam(r, "subOrderId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sub order item ID")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The parent item must belong to the order in the URL.
	if _, err := h.store.GetOrderItem(r.Context(), database.GetOrderItemParams{ID: itemID, OrderID: orderID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order item not found")
			return
		}
		log.Printf("ERROR: get order item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sub, err := h.store.GetSubOrderItem(r.Context(), database.GetSubOrderItemParams{ID: subID, OrderItemID: itemID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "sub order item not found")
			return
		}
		log.Printf("ERROR: get sub order item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	params := database.UpdateSubOrderItemParams{ID: subID, OrderItemID: itemID}
	effectiveType := sub.ClothingTypeID
	if req.ClothingTypeID != nil {
		ctID, err := uuid.Parse(*req.ClothingTypeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid clothing type ID")
			return
		}
		params.ClothingTypeID = pgtype.UUID{Bytes: ctID, Valid: true}
		effectiveType = ctID
	}
	if req.Price != nil {
		if *req.Price < 0 {
			writeError(w, http.StatusBadRequest, "price cannot be negative")
			return
		}
		params.Price = pgtype.Int8{Int64: *req.Price, Valid: true}
	}
	if req.Measurements != nil {
		if ok := h.checkMeasurements(w, r, effectiveType, req.Measurements); !ok {
			return
		}
		raw, err := json.Marshal(req.Measurements)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid measurements")
			return
		}
		params.Measurements = raw
	} else if req.ClothingTypeID != nil {
		if ok := h.checkMeasurements(w, r, effectiveType, decodeMeasurements(sub.Measurements)); !ok {
			return
		}
	}

	updated, err := h.store.UpdateSubOrderItem(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "sub order item not found")
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "clothing type does not exist")
			return
		}
		log.Printf("ERROR: update sub order item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !h.touchOrder(w, r, orderID, claims.StaffID) {
		return
	}

	resp := toSubItemResponse(updated)
	h.hub.Broadcast("order.updated", envelope{"id": orderID, "subOrderItem": resp})
	writeSuccess(w, http.StatusOK, "sub order item updated", envelope{"subOrderItem": resp})
}

// DeleteSubOrderItem removes a nested piece.
func (h *OrderHandler) DeleteSubOrderItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orderID, itemID, ok := parseItemPath(w, r)
	if !ok {
		return
	}
	subID, err := uuid.Parse(chi.URLParam(r, "subOrderId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sub order item ID")
		return
	}

	if _, err := h.store.GetOrderItem(r.Context(), database.GetOrderItemParams{ID: itemID, OrderID: orderID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order item not found")
			return
		}
		log.Printf("ERROR: get order item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if _, err := h.store.DeleteSubOrderItem(r.Context(), database.DeleteSubOrderItemParams{ID: subID, OrderItemID: itemID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "sub order item not found")
			return
		}
		log.Printf("ERROR: delete sub order item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !h.touchOrder(w, r, orderID, claims.StaffID) {
		return
	}

	h.hub.Broadcast("order.updated", envelope{"id": orderID, "deletedSubOrderItemId": subID})
	writeSuccess(w, http.StatusOK, "sub order item deleted", nil)
}

// --- Helpers ---

func (h *OrderHandler) orderTotals(ctx context.Context, orderID uuid.UUID) (int64, int64, error) {
	priceSum, err := h.store.SumOrderItemsTotal(ctx, orderID)
	if err != nil {
		return 0, 0, err
	}
	paymentSum, err := h.store.SumPaymentsByOrder(ctx, orderID)
	if err != nil {
		return 0, 0, err
	}
	return numericToInt64(priceSum), numericToInt64(paymentSum), nil
}

func (h *OrderHandler) loadDetail(ctx context.Context, order database.Order) (orderDetailResponse, error) {
	dbItems, err := h.store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return orderDetailResponse{}, err
	}

	items := make([]orderItemResponse, len(dbItems))
	for i, item := range dbItems {
		subs, err := h.store.ListSubOrderItemsByOrderItem(ctx, item.ID)
		if err != nil {
			return orderDetailResponse{}, err
		}
		items[i] = toItemResponse(item, subs)
	}

	totalPrice, totalPayments, err := h.orderTotals(ctx, order.ID)
	if err != nil {
		return orderDetailResponse{}, err
	}
	return toOrderDetail(order, items, totalPrice, totalPayments), nil
}

// checkMeasurements verifies the keys against the clothing type's declared
// fields, writing the error response itself. Returns false when the request
// has been answered.
func (h *OrderHandler) checkMeasurements(w http.ResponseWriter, r *http.Request, clothingTypeID uuid.UUID, measurements map[string]interface{}) bool {
	if len(measurements) == 0 {
		return true
	}

	ct, err := h.store.GetClothingType(r.Context(), clothingTypeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusBadRequest, "clothing type does not exist")
			return false
		}
		log.Printf("ERROR: get clothing type: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return false
	}

	// Declared fields are stored lowercased; keys arrive in client casing.
	allowed := make(map[string]bool, len(ct.Measurements))
	for _, f := range ct.Measurements {
		allowed[strings.ToLower(f)] = true
	}
	for key := range measurements {
		if !allowed[strings.ToLower(key)] {
			writeError(w, http.StatusBadRequest, "measurement field "+key+" is not defined for "+ct.Name)
			return false
		}
	}
	return true
}

// touchOrder stamps updated_by/updated_at on the parent order after a
// nested mutation, writing the error response itself. Returns false when
// the request has been answered.
func (h *OrderHandler) touchOrder(w http.ResponseWriter, r *http.Request, orderID, staffID uuid.UUID) bool {
	if _, err := h.store.TouchOrder(r.Context(), database.TouchOrderParams{ID: orderID, UpdatedByID: staffID}); err != nil {
		log.Printf("ERROR: touch order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return false
	}
	return true
}

func parseItemPath(w http.ResponseWriter, r *http.Request) (orderID, itemID uuid.UUID, ok bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return uuid.Nil, uuid.Nil, false
	}
	itemID, err = uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order item ID")
		return uuid.Nil, uuid.Nil, false
	}
	return orderID, itemID, true
}

func toServiceItem(req orderItemRequest) (service.OrderItemRequest, error) {
	ctID, err := uuid.Parse(req.ClothingTypeID)
	if err != nil {
		return service.OrderItemRequest{}, errors.New("invalid clothing type ID")
	}
	if req.Price == nil {
		return service.OrderItemRequest{}, errors.New("item price is required")
	}
	if *req.Price < 0 {
		return service.OrderItemRequest{}, errors.New("price cannot be negative")
	}

	item := service.OrderItemRequest{
		ClothingTypeID: ctID,
		Price:          *req.Price,
		Measurements:   req.Measurements,
	}
	for _, sub := range req.SubOrder {
		svcSub, err := toServiceSubItem(sub)
		if err != nil {
			return service.OrderItemRequest{}, err
		}
		item.SubOrder = append(item.SubOrder, svcSub)
	}
	return item, nil
}

func toServiceSubItem(req subOrderItemRequest) (service.SubOrderItemRequest, error) {
	ctID, err := uuid.Parse(req.ClothingTypeID)
	if err != nil {
		return service.SubOrderItemRequest{}, errors.New("invalid clothing type ID")
	}
	if req.Price == nil {
		return service.SubOrderItemRequest{}, errors.New("item price is required")
	}
	if *req.Price < 0 {
		return service.SubOrderItemRequest{}, errors.New("price cannot be negative")
	}
	return service.SubOrderItemRequest{
		ClothingTypeID: ctID,
		Price:          *req.Price,
		Measurements:   req.Measurements,
	}, nil
}
