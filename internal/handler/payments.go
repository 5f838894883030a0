package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kdotgoat/toms-api/internal/database"
	"github.com/kdotgoat/toms-api/internal/enum"
	"github.com/kdotgoat/toms-api/internal/middleware"
	"golang.org/x/crypto/bcrypt"
)

// PaymentStore defines the database methods needed by payment handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PaymentStore interface {
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.GetPaymentRow, error)
	ListPayments(ctx context.Context, arg database.ListPaymentsParams) ([]database.GetPaymentRow, error)
	CountPayments(ctx context.Context) (int64, error)
	UpdatePayment(ctx context.Context, arg database.UpdatePaymentParams) (database.Payment, error)
	SoftDeletePayment(ctx context.Context, arg database.SoftDeletePaymentParams) (database.Payment, error)
	SumItemRevenueBetween(ctx context.Context, arg database.RevenueWindowParams) (pgtype.Numeric, error)
	SumPaymentsForOrdersBetween(ctx context.Context, arg database.RevenueWindowParams) (pgtype.Numeric, error)
	GetStaffByID(ctx context.Context, id uuid.UUID) (database.Staff, error)
}

// PaymentHandler handles payment recording, corrections and monthly stats.
type PaymentHandler struct {
	store PaymentStore
	hub   EventBroadcaster
}

func NewPaymentHandler(store PaymentStore, hub EventBroadcaster) *PaymentHandler {
	return &PaymentHandler{store: store, hub: hub}
}

// RegisterRoutes registers the payment endpoints available to all staff.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// RegisterAdminRoutes registers the ledger views gated to ADMIN staff.
func (h *PaymentHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/stats", h.Stats)
}

// --- Request / Response types ---

type createPaymentRequest struct {
	OrderID   string `json:"orderId"`
	Amount    *int64 `json:"amount"`
	Mode      string `json:"mode"`
	Reference string `json:"reference"`
}

type updatePaymentRequest struct {
	Amount    *int64  `json:"amount"`
	Mode      *string `json:"mode"`
	Reference *string `json:"reference"`
}

type deletePaymentRequest struct {
	Password string `json:"password"`
}

type paymentResponse struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"orderId"`
	OrderName   string    `json:"orderName,omitempty"`
	Amount      int64     `json:"amount"`
	Mode        string    `json:"mode"`
	Reference   *string   `json:"reference"`
	IsDeleted   bool      `json:"isDeleted"`
	UpdatedByID uuid.UUID `json:"updatedById"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type paymentStatsResponse struct {
	Month           int   `json:"month"`
	ExpectedRevenue int64 `json:"expectedRevenue"`
	TotalPayments   int64 `json:"totalPayments"`
	PendingRevenue  int64 `json:"pendingRevenue"`
}

func validPaymentMode(mode string) bool {
	switch mode {
	case enum.PaymentModeCash, enum.PaymentModeMpesa, enum.PaymentModeBankTransfer:
		return true
	}
	return false
}

// referenceRequired reports whether the mode carries an external transaction
// code that must be recorded.
func referenceRequired(mode string) bool {
	return mode == enum.PaymentModeMpesa || mode == enum.PaymentModeBankTransfer
}

func toPaymentResponse(row database.GetPaymentRow) paymentResponse {
	resp := toBarePaymentResponse(row.Payment)
	resp.OrderName = row.OrderName
	resp.UpdatedBy = strings.TrimSpace(row.StaffFirstName + " " + row.StaffLastName)
	return resp
}

func toBarePaymentResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:          p.ID,
		OrderID:     p.OrderID,
		Amount:      p.Amount,
		Mode:        p.Mode,
		IsDeleted:   p.IsDeleted,
		UpdatedByID: p.UpdatedByID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Reference.Valid {
		resp.Reference = &p.Reference.String
	}
	return resp
}

// --- Handlers ---

// Create records a payment against an order.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}
	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount is required")
		return
	}
	if *req.Amount < 0 {
		writeError(w, http.StatusBadRequest, "amount cannot be negative")
		return
	}
	if !validPaymentMode(req.Mode) {
		writeError(w, http.StatusBadRequest, "mode must be CASH, MPESA or BANK_TRANSFER")
		return
	}

	var reference pgtype.Text
	if referenceRequired(req.Mode) {
		if strings.TrimSpace(req.Reference) == "" {
			writeError(w, http.StatusBadRequest, "transaction reference is required for "+req.Mode)
			return
		}
		reference = pgtype.Text{String: strings.ToUpper(strings.TrimSpace(req.Reference)), Valid: true}
	} else if req.Reference != "" {
		reference = pgtype.Text{String: strings.ToUpper(strings.TrimSpace(req.Reference)), Valid: true}
	}

	payment, err := h.store.CreatePayment(r.Context(), database.CreatePaymentParams{
		OrderID:     orderID,
		Amount:      *req.Amount,
		Mode:        req.Mode,
		Reference:   reference,
		UpdatedByID: claims.StaffID,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "order does not exist")
			return
		}
		log.Printf("ERROR: create payment: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := toBarePaymentResponse(payment)
	h.hub.Broadcast("payment.added", resp)
	writeSuccess(w, http.StatusCreated, "payment recorded", envelope{"payment": resp})
}

// Get returns a payment with its order and staff context. Soft-deleted
// payments remain visible here so corrections can be audited.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	row, err := h.store.GetPayment(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		log.Printf("ERROR: get payment: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "", envelope{"payment": toPaymentResponse(row)})
}

// Update corrects the amount, mode or reference of a payment.
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	current, err := h.store.GetPayment(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		log.Printf("ERROR: get payment: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	params := database.UpdatePaymentParams{ID: id, UpdatedByID: claims.StaffID}
	if req.Amount != nil {
		if *req.Amount < 0 {
			writeError(w, http.StatusBadRequest, "amount cannot be negative")
			return
		}
		params.Amount = pgtype.Int8{Int64: *req.Amount, Valid: true}
	}
	effectiveMode := current.Payment.Mode
	if req.Mode != nil {
		if !validPaymentMode(*req.Mode) {
			writeError(w, http.StatusBadRequest, "mode must be CASH, MPESA or BANK_TRANSFER")
			return
		}
		effectiveMode = *req.Mode
		params.Mode = pgtype.Text{String: *req.Mode, Valid: true}
	}
	effectiveReference := current.Payment.Reference.String
	if req.Reference != nil {
		effectiveReference = strings.ToUpper(strings.TrimSpace(*req.Reference))
		params.Reference = pgtype.Text{String: effectiveReference, Valid: true}
	}
	// The reference rule holds for the row as it will read after the
	// update, so switching a CASH payment to MPESA needs a reference too.
	if referenceRequired(effectiveMode) && effectiveReference == "" {
		writeError(w, http.StatusBadRequest, "transaction reference is required for "+effectiveMode)
		return
	}

	payment, err := h.store.UpdatePayment(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		log.Printf("ERROR: update payment: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := toBarePaymentResponse(payment)
	h.hub.Broadcast("payment.updated", resp)
	writeSuccess(w, http.StatusOK, "payment updated", envelope{"payment": resp})
}

// Delete soft-deletes a payment after the acting staff member confirms
// their password. The row stays for the audit trail but drops out of
// lists and totals.
func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	var req deletePaymentRequest
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

	payment, err := h.store.SoftDeletePayment(r.Context(), database.SoftDeletePaymentParams{
		ID:          id,
		UpdatedByID: claims.StaffID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		log.Printf("ERROR: delete payment: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.hub.Broadcast("payment.deleted", envelope{"id": payment.ID, "orderId": payment.OrderID})
	writeSuccess(w, http.StatusOK, "payment deleted", nil)
}

// List returns the paginated payment ledger, newest first.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)

	rows, err := h.store.ListPayments(r.Context(), database.ListPaymentsParams{
		Limit:  defaultPageSize,
		Offset: int32((page - 1) * defaultPageSize),
	})
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	total, err := h.store.CountPayments(r.Context())
	if err != nil {
		log.Printf("ERROR: count payments: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]paymentResponse, len(rows))
	for i, row := range rows {
		resp[i] = toPaymentResponse(row)
	}

	writeSuccess(w, http.StatusOK, "", envelope{
		"payments":   resp,
		"pagination": buildPagination(page, total),
	})
}

// Stats compares the revenue booked in a month of the current year against
// the payments actually collected for those orders.
func (h *PaymentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	monthParam := r.URL.Query().Get("month")
	if monthParam == "" {
		writeError(w, http.StatusBadRequest, "month query parameter is required")
		return
	}
	month, err := strconv.Atoi(monthParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be a number")
		return
	}
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	now := time.Now()
	start := time.Date(now.Year(), time.Month(month), 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0)
	window := database.RevenueWindowParams{Start: start, End: end}

	revenue, err := h.store.SumItemRevenueBetween(r.Context(), window)
	if err != nil {
		log.Printf("ERROR: sum item revenue: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	collected, err := h.store.SumPaymentsForOrdersBetween(r.Context(), window)
	if err != nil {
		log.Printf("ERROR: sum collected payments: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	expected := numericToInt64(revenue)
	got := numericToInt64(collected)
	writeSuccess(w, http.StatusOK, "", envelope{"stats": paymentStatsResponse{
		Month:           month,
		ExpectedRevenue: expected,
		TotalPayments:   got,
		PendingRevenue:  expected - got,
	}})
}
