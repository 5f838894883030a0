package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kdotgoat/toms-api/internal/database"
	"github.com/kdotgoat/toms-api/internal/handler"
	"github.com/kdotgoat/toms-api/internal/middleware"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock payment store ---

type mockPaymentStore struct {
	createFn       func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	getFn          func(ctx context.Context, id uuid.UUID) (database.GetPaymentRow, error)
	listFn         func(ctx context.Context, arg database.ListPaymentsParams) ([]database.GetPaymentRow, error)
	countFn        func(ctx context.Context) (int64, error)
	updateFn       func(ctx context.Context, arg database.UpdatePaymentParams) (database.Payment, error)
	softDeleteFn   func(ctx context.Context, arg database.SoftDeletePaymentParams) (database.Payment, error)
	sumRevenueFn   func(ctx context.Context, arg database.RevenueWindowParams) (pgtype.Numeric, error)
	sumCollectedFn func(ctx context.Context, arg database.RevenueWindowParams) (pgtype.Numeric, error)
	getStaffByIDFn func(ctx context.Context, id uuid.UUID) (database.Staff, error)
}

func (m *mockPaymentStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	if m.createFn != nil {
		return m.createFn(ctx, arg)
	}
	return database.Payment{}, pgx.ErrNoRows
}

func (m *mockPaymentStore) GetPayment(ctx context.Context, id uuid.UUID) (database.GetPaymentRow, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return database.GetPaymentRow{}, pgx.ErrNoRows
}

func (m *mockPaymentStore) ListPayments(ctx context.Context, arg database.ListPaymentsParams) ([]database.GetPaymentRow, error) {
	if m.listFn != nil {
		return m.listFn(ctx, arg)
	}
	return []database.GetPaymentRow{}, nil
}

func (m *mockPaymentStore) CountPayments(ctx context.Context) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockPaymentStore) UpdatePayment(ctx context.Context, arg database.UpdatePaymentParams) (database.Payment, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, arg)
	}
	return database.Payment{}, pgx.ErrNoRows
}

func (m *mockPaymentStore) SoftDeletePayment(ctx context.Context, arg database.SoftDeletePaymentParams) (database.Payment, error) {
	if m.softDeleteFn != nil {
		return m.softDeleteFn(ctx, arg)
	}
	return database.Payment{}, pgx.ErrNoRows
}

func (m *mockPaymentStore) SumItemRevenueBetween(ctx context.Context, arg database.RevenueWindowParams) (pgtype.Numeric, error) {
	if m.sumRevenueFn != nil {
		return m.sumRevenueFn(ctx, arg)
	}
	return pgtype.Numeric{}, nil
}

func (m *mockPaymentStore) SumPaymentsForOrdersBetween(ctx context.Context, arg database.RevenueWindowParams) (pgtype.Numeric, error) {
	if m.sumCollectedFn != nil {
		return m.sumCollectedFn(ctx, arg)
	}
	return pgtype.Numeric{}, nil
}

func (m *mockPaymentStore) GetStaffByID(ctx context.Context, id uuid.UUID) (database.Staff, error) {
	if m.getStaffByIDFn != nil {
		return m.getStaffByIDFn(ctx, id)
	}
	return database.Staff{}, pgx.ErrNoRows
}

// --- Test helpers ---

func setupPaymentRouter(store *mockPaymentStore, hub *mockBroadcaster) *chi.Mux {
	h := handler.NewPaymentHandler(store, hub)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/payments", h.RegisterRoutes)
	r.Route("/admin/payments", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		h.RegisterAdminRoutes(r)
	})
	return r
}

// --- Create ---

func TestPaymentCreate_HappyPath(t *testing.T) {
	claims := testClaims("STAFF")
	orderID := uuid.New()
	hub := &mockBroadcaster{}

	store := &mockPaymentStore{
		createFn: func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
			if arg.OrderID != orderID {
				t.Errorf("orderID: got %v, want %v", arg.OrderID, orderID)
			}
			if arg.UpdatedByID != claims.StaffID {
				t.Errorf("updatedBy: got %v, want %v", arg.UpdatedByID, claims.StaffID)
			}
			if !arg.Reference.Valid || arg.Reference.String != "QX12AB34CD" {
				t.Errorf("reference: got %+v, want QX12AB34CD uppercased", arg.Reference)
			}
			return database.Payment{
				ID:          uuid.New(),
				OrderID:     arg.OrderID,
				Amount:      arg.Amount,
				Mode:        arg.Mode,
				Reference:   arg.Reference,
				UpdatedByID: arg.UpdatedByID,
			}, nil
		},
	}

	router := setupPaymentRouter(store, hub)
	rr := doAuthRequest(t, router, "POST", "/payments", map[string]interface{}{
		"orderId":   orderID.String(),
		"amount":    5000,
		"mode":      "MPESA",
		"reference": "qx12ab34cd",
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201, body: %s", rr.Code, rr.Body.String())
	}
	if !hub.seen("payment.added") {
		t.Error("expected payment.added event")
	}
}

func TestPaymentCreate_MpesaRequiresReference(t *testing.T) {
	claims := testClaims("STAFF")
	router := setupPaymentRouter(&mockPaymentStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "POST", "/payments", map[string]interface{}{
		"orderId": uuid.New().String(),
		"amount":  5000,
		"mode":    "MPESA",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestPaymentCreate_CashWithoutReference(t *testing.T) {
	claims := testClaims("STAFF")

	store := &mockPaymentStore{
		createFn: func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
			if arg.Reference.Valid {
				t.Errorf("reference should be null for cash, got %+v", arg.Reference)
			}
			return database.Payment{ID: uuid.New(), OrderID: arg.OrderID, Amount: arg.Amount, Mode: arg.Mode}, nil
		},
	}

	router := setupPaymentRouter(store, &mockBroadcaster{})
	rr := doAuthRequest(t, router, "POST", "/payments", map[string]interface{}{
		"orderId": uuid.New().String(),
		"amount":  2000,
		"mode":    "CASH",
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201, body: %s", rr.Code, rr.Body.String())
	}
}

func TestPaymentCreate_NegativeAmount(t *testing.T) {
	claims := testClaims("STAFF")
	router := setupPaymentRouter(&mockPaymentStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "POST", "/payments", map[string]interface{}{
		"orderId": uuid.New().String(),
		"amount":  -500,
		"mode":    "CASH",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestPaymentCreate_InvalidMode(t *testing.T) {
	claims := testClaims("STAFF")
	router := setupPaymentRouter(&mockPaymentStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "POST", "/payments", map[string]interface{}{
		"orderId": uuid.New().String(),
		"amount":  500,
		"mode":    "CHEQUE",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestPaymentCreate_OrderDoesNotExist(t *testing.T) {
	claims := testClaims("STAFF")

	store := &mockPaymentStore{
		createFn: func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
			return database.Payment{}, &pgconn.PgError{Code: "23503"}
		},
	}

	router := setupPaymentRouter(store, &mockBroadcaster{})
	rr := doAuthRequest(t, router, "POST", "/payments", map[string]interface{}{
		"orderId": uuid.New().String(),
		"amount":  500,
		"mode":    "CASH",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

// --- Get ---

func TestPaymentGet_IncludesSoftDeleted(t *testing.T) {
	claims := testClaims("STAFF")
	paymentID := uuid.New()

	store := &mockPaymentStore{
		getFn: func(ctx context.Context, id uuid.UUID) (database.GetPaymentRow, error) {
			return database.GetPaymentRow{
				Payment: database.Payment{
					ID:        paymentID,
					OrderID:   uuid.New(),
					Amount:    3000,
					Mode:      "CASH",
					IsDeleted: true,
				},
				OrderName:      "Wanjiku Kamau",
				StaffFirstName: "Amina",
				StaffLastName:  "Odhiambo",
			}, nil
		},
	}

	router := setupPaymentRouter(store, &mockBroadcaster{})
	rr := doAuthRequest(t, router, "GET", "/payments/"+paymentID.String(), nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	payment := resp["payment"].(map[string]interface{})
	if !payment["isDeleted"].(bool) {
		t.Error("expected isDeleted=true to be visible")
	}
	if payment["updatedBy"].(string) != "Amina Odhiambo" {
		t.Errorf("updatedBy: got %v, want Amina Odhiambo", payment["updatedBy"])
	}
}

func TestPaymentGet_NotFound(t *testing.T) {
	claims := testClaims("STAFF")
	router := setupPaymentRouter(&mockPaymentStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "GET", "/payments/"+uuid.NewString(), nil, claims)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

// --- Update ---

func TestPaymentUpdate_PartialFields(t *testing.T) {
	claims := testClaims("STAFF")
	paymentID := uuid.New()

	store := &mockPaymentStore{
		getFn: func(ctx context.Context, id uuid.UUID) (database.GetPaymentRow, error) {
			return database.GetPaymentRow{Payment: database.Payment{ID: paymentID, Amount: 5000, Mode: "CASH"}}, nil
		},
		updateFn: func(ctx context.Context, arg database.UpdatePaymentParams) (database.Payment, error) {
			if !arg.Amount.Valid || arg.Amount.Int64 != 7500 {
				t.Errorf("amount param: got %+v, want 7500", arg.Amount)
			}
			if arg.Mode.Valid {
				t.Error("mode should not be set on an amount-only patch")
			}
			return database.Payment{ID: paymentID, Amount: 7500, Mode: "CASH", UpdatedByID: claims.StaffID}, nil
		},
	}

	router := setupPaymentRouter(store, &mockBroadcaster{})
	rr := doAuthRequest(t, router, "PATCH", "/payments/"+paymentID.String(), map[string]interface{}{
		"amount": 7500,
	}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body: %s", rr.Code, rr.Body.String())
	}
}

func TestPaymentUpdate_ModeSwitchNeedsReference(t *testing.T) {
	claims := testClaims("STAFF")
	paymentID := uuid.New()

	store := &mockPaymentStore{
		getFn: func(ctx context.Context, id uuid.UUID) (database.GetPaymentRow, error) {
			return database.GetPaymentRow{Payment: database.Payment{ID: paymentID, Amount: 5000, Mode: "CASH"}}, nil
		},
		updateFn: func(ctx context.Context, arg database.UpdatePaymentParams) (database.Payment, error) {
			t.Error("update should not run when the new mode lacks a reference")
			return database.Payment{}, pgx.ErrNoRows
		},
	}

	router := setupPaymentRouter(store, &mockBroadcaster{})
	rr := doAuthRequest(t, router, "PATCH", "/payments/"+paymentID.String(), map[string]interface{}{
		"mode": "MPESA",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400, body: %s", rr.Code, rr.Body.String())
	}
}

func TestPaymentUpdate_ModeSwitchWithReference(t *testing.T) {
	claims := testClaims("STAFF")
	paymentID := uuid.New()

	store := &mockPaymentStore{
		getFn: func(ctx context.Context, id uuid.UUID) (database.GetPaymentRow, error) {
			return database.GetPaymentRow{Payment: database.Payment{ID: paymentID, Amount: 5000, Mode: "CASH"}}, nil
		},
		updateFn: func(ctx context.Context, arg database.UpdatePaymentParams) (database.Payment, error) {
			if !arg.Mode.Valid || arg.Mode.String != "MPESA" {
				t.Errorf("mode param: got %+v, want MPESA", arg.Mode)
			}
			if !arg.Reference.Valid || arg.Reference.String != "QR55XK21PL" {
				t.Errorf("reference param: got %+v, want QR55XK21PL", arg.Reference)
			}
			return database.Payment{ID: paymentID, Amount: 5000, Mode: "MPESA",
				Reference: pgtype.Text{String: "QR55XK21PL", Valid: true}, UpdatedByID: claims.StaffID}, nil
		},
	}

	router := setupPaymentRouter(store, &mockBroadcaster{})
	rr := doAuthRequest(t, router, "PATCH", "/payments/"+paymentID.String(), map[string]interface{}{
		"mode":      "MPESA",
		"reference": " qr55xk21pl ",
	}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body: %s", rr.Code, rr.Body.String())
	}
}

// --- Delete ---

func TestPaymentDelete_RequiresPassword(t *testing.T) {
	claims := testClaims("STAFF")
	router := setupPaymentRouter(&mockPaymentStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "DELETE", "/payments/"+uuid.NewString(), map[string]interface{}{}, claims)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestPaymentDelete_SoftDeletes(t *testing.T) {
	claims := testClaims("STAFF")
	paymentID := uuid.New()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret-word"), bcrypt.DefaultCost)
	hub := &mockBroadcaster{}

	var deleted database.SoftDeletePaymentParams
	store := &mockPaymentStore{
		getStaffByIDFn: func(ctx context.Context, id uuid.UUID) (database.Staff, error) {
			return database.Staff{ID: claims.StaffID, HashedPassword: string(hash)}, nil
		},
		softDeleteFn: func(ctx context.Context, arg database.SoftDeletePaymentParams) (database.Payment, error) {
			deleted = arg
			return database.Payment{ID: arg.ID, OrderID: uuid.New(), IsDeleted: true}, nil
		},
	}

	router := setupPaymentRouter(store, hub)
	rr := doAuthRequest(t, router, "DELETE", "/payments/"+paymentID.String(), map[string]interface{}{
		"password": "secret-word",
	}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body: %s", rr.Code, rr.Body.String())
	}
	if deleted.ID != paymentID {
		t.Errorf("deleted: got %v, want %v", deleted.ID, paymentID)
	}
	if deleted.UpdatedByID != claims.StaffID {
		t.Errorf("deletedBy: got %v, want %v", deleted.UpdatedByID, claims.StaffID)
	}
	if !hub.seen("payment.deleted") {
		t.Error("expected payment.deleted event")
	}
}

// --- Admin list ---

func TestPaymentList_AdminOnly(t *testing.T) {
	claims := testClaims("STAFF")
	router := setupPaymentRouter(&mockPaymentStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "GET", "/admin/payments", nil, claims)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", rr.Code)
	}
}

func TestPaymentList_Paginated(t *testing.T) {
	claims := testClaims("ADMIN")

	store := &mockPaymentStore{
		listFn: func(ctx context.Context, arg database.ListPaymentsParams) ([]database.GetPaymentRow, error) {
			if arg.Limit != 10 || arg.Offset != 10 {
				t.Errorf("pagination: got limit=%d offset=%d, want 10/10", arg.Limit, arg.Offset)
			}
			return []database.GetPaymentRow{{
				Payment: database.Payment{ID: uuid.New(), OrderID: uuid.New(), Amount: 4000, Mode: "CASH"},
			}}, nil
		},
		countFn: func(ctx context.Context) (int64, error) { return 11, nil },
	}

	router := setupPaymentRouter(store, &mockBroadcaster{})
	rr := doAuthRequest(t, router, "GET", "/admin/payments?page=2", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	pagination := resp["pagination"].(map[string]interface{})
	if pagination["totalPages"].(float64) != 2 {
		t.Errorf("totalPages: got %v, want 2", pagination["totalPages"])
	}
	if pagination["hasNextPage"].(bool) {
		t.Error("page 2 of 2 should not have a next page")
	}
}

// --- Admin stats ---

func TestPaymentStats_MonthWindow(t *testing.T) {
	claims := testClaims("ADMIN")

	var gotWindow database.RevenueWindowParams
	store := &mockPaymentStore{
		sumRevenueFn: func(ctx context.Context, arg database.RevenueWindowParams) (pgtype.Numeric, error) {
			gotWindow = arg
			return testNumeric("30000"), nil
		},
		sumCollectedFn: func(ctx context.Context, arg database.RevenueWindowParams) (pgtype.Numeric, error) {
			return testNumeric("18000"), nil
		},
	}

	router := setupPaymentRouter(store, &mockBroadcaster{})
	rr := doAuthRequest(t, router, "GET", "/admin/payments/stats?month=3", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body: %s", rr.Code, rr.Body.String())
	}

	if gotWindow.Start.Month() != time.March || gotWindow.Start.Day() != 1 {
		t.Errorf("window start: got %v, want first of March", gotWindow.Start)
	}
	if gotWindow.End.Month() != time.April {
		t.Errorf("window end: got %v, want first of April", gotWindow.End)
	}
	if gotWindow.Start.Year() != time.Now().Year() {
		t.Errorf("window year: got %d, want current year", gotWindow.Start.Year())
	}

	resp := decodeResponse(t, rr)
	stats := resp["stats"].(map[string]interface{})
	if stats["expectedRevenue"].(float64) != 30000 {
		t.Errorf("expectedRevenue: got %v, want 30000", stats["expectedRevenue"])
	}
	if stats["pendingRevenue"].(float64) != 12000 {
		t.Errorf("pendingRevenue: got %v, want 12000", stats["pendingRevenue"])
	}
}

func TestPaymentStats_InvalidMonth(t *testing.T) {
	claims := testClaims("ADMIN")
	router := setupPaymentRouter(&mockPaymentStore{}, &mockBroadcaster{})

	for _, month := range []string{"0", "13", "march", ""} {
		rr := doAuthRequest(t, router, "GET", "/admin/payments/stats?month="+month, nil, claims)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("month %q: got %d, want 400", month, rr.Code)
		}
	}
}
