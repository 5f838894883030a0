package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kdotgoat/toms-api/internal/database"
	"github.com/kdotgoat/toms-api/internal/enum"
	"github.com/kdotgoat/toms-api/internal/middleware"
	"golang.org/x/crypto/bcrypt"
)

// StaffStore defines the database methods needed by staff handlers.
type StaffStore interface {
	CreateStaff(ctx context.Context, arg database.CreateStaffParams) (database.Staff, error)
	GetStaffByID(ctx context.Context, id uuid.UUID) (database.Staff, error)
	ListStaff(ctx context.Context) ([]database.Staff, error)
	UpdateStaff(ctx context.Context, arg database.UpdateStaffParams) (database.Staff, error)
	DeleteStaff(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// StaffHandler handles the admin-only staff directory endpoints.
type StaffHandler struct {
	store StaffStore
}

func NewStaffHandler(store StaffStore) *StaffHandler {
	return &StaffHandler{store: store}
}

// RegisterRoutes registers staff endpoints. Expected to be mounted inside the
// admin-gated subrouter.
func (h *StaffHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
	})
}

func validStaffRole(role string) bool {
	switch role {
	case enum.StaffRoleAdmin, enum.StaffRoleStaff:
		return true
	}
	return false
}

// --- Request types ---

type createStaffRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
}

type updateStaffRequest struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	PhoneNumber *string `json:"phoneNumber"`
	Role        *string `json:"role"`
}

type deleteStaffRequest struct {
	Password string `json:"password"`
}

// --- Handlers ---

// List returns all staff members, newest first.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	staff, err := h.store.ListStaff(r.Context())
	if err != nil {
		log.Printf("ERROR: list staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]staffResponse, len(staff))
	for i, s := range staff {
		resp[i] = toStaffResponse(s)
	}
	writeSuccess(w, http.StatusOK, "", envelope{"staff": resp})
}

// Get returns a single staff member by ID.
func (h *StaffHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid staff ID")
		return
	}

	staff, err := h.store.GetStaffByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "staff not found")
			return
		}
		log.Printf("ERROR: get staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "", envelope{"staff": toStaffResponse(staff)})
}

// Create adds a staff member with the requested role. The initial password is
// the phone number, same as self-service registration.
func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FirstName == "" || req.LastName == "" || req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "first name, last name and phone number are required")
		return
	}
	if !validPhone.MatchString(req.PhoneNumber) {
		writeError(w, http.StatusBadRequest, "phone number must start with 07 or 01 and have 10 digits")
		return
	}
	role := req.Role
	if role == "" {
		role = enum.StaffRoleStaff
	}
	if !validStaffRole(role) {
		writeError(w, http.StatusBadRequest, "role must be ADMIN or STAFF")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.PhoneNumber), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash password: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	staff, err := h.store.CreateStaff(r.Context(), database.CreateStaffParams{
		FirstName:      normalizeName(req.FirstName),
		LastName:       normalizeName(req.LastName),
		PhoneNumber:    req.PhoneNumber,
		HashedPassword: string(hashed),
		Role:           role,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "phone number already registered")
			return
		}
		log.Printf("ERROR: create staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusCreated, "staff created", envelope{"staff": toStaffResponse(staff)})
}

// Update applies a partial update; omitted fields are left unchanged.
func (h *StaffHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid staff ID")
		return
	}

	var req updateStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := database.UpdateStaffParams{ID: id}
	if req.FirstName != nil {
		if *req.FirstName == "" {
			writeError(w, http.StatusBadRequest, "first name cannot be empty")
			return
		}
		params.FirstName = pgtype.Text{String: normalizeName(*req.FirstName), Valid: true}
	}
	if req.LastName != nil {
		if *req.LastName == "" {
			writeError(w, http.StatusBadRequest, "last name cannot be empty")
			return
		}
		params.LastName = pgtype.Text{String: normalizeName(*req.LastName), Valid: true}
	}
	if req.PhoneNumber != nil {
		if !validPhone.MatchString(*req.PhoneNumber) {
			writeError(w, http.StatusBadRequest, "phone number must start with 07 or 01 and have 10 digits")
			return
		}
		params.PhoneNumber = pgtype.Text{String: *req.PhoneNumber, Valid: true}
	}
	if req.Role != nil {
		if !validStaffRole(*req.Role) {
			writeError(w, http.StatusBadRequest, "role must be ADMIN or STAFF")
			return
		}
		params.Role = pgtype.Text{String: *req.Role, Valid: true}
	}

	staff, err := h.store.UpdateStaff(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "staff not found")
			return
		}
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "phone number already registered")
			return
		}
		log.Printf("ERROR: update staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "staff updated", envelope{"staff": toStaffResponse(staff)})
}

// Delete permanently removes a staff member. The acting admin re-enters their
// own password to confirm.
func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid staff ID")
		return
	}

	var req deleteStaffRequest
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

	if _, err := h.store.DeleteStaff(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "staff not found")
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "staff member has orders or payments on record")
			return
		}
		log.Printf("ERROR: delete staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "staff deleted", nil)
}
