package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kdotgoat/toms-api/internal/auth"
	"github.com/kdotgoat/toms-api/internal/database"
	"github.com/kdotgoat/toms-api/internal/enum"
	"github.com/kdotgoat/toms-api/internal/middleware"
	"golang.org/x/crypto/bcrypt"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetStaffByPhone(ctx context.Context, phoneNumber string) (database.Staff, error)
	GetStaffByID(ctx context.Context, id uuid.UUID) (database.Staff, error)
	CreateStaff(ctx context.Context, arg database.CreateStaffParams) (database.Staff, error)
	UpdateStaffPassword(ctx context.Context, arg database.UpdateStaffPasswordParams) (uuid.UUID, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store AuthStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret}
}

// RegisterPublicRoutes registers the endpoints reachable without a token.
func (h *AuthHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

// RegisterRoutes registers the endpoints behind the auth middleware.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Get("/auth/me", h.Me)
	r.Patch("/auth/password", h.ChangePassword)
	r.Post("/auth/logout", h.Logout)
}

// --- Request / Response types ---

type loginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type registerRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type staffResponse struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	PhoneNumber string    `json:"phoneNumber"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toStaffResponse(s database.Staff) staffResponse {
	return staffResponse{
		ID:          s.ID,
		FirstName:   s.FirstName,
		LastName:    s.LastName,
		PhoneNumber: s.PhoneNumber,
		Role:        s.Role,
		CreatedAt:   s.CreatedAt,
	}
}

// --- Handlers ---

// Login handles phone number + password authentication.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PhoneNumber == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "phone number and password are required")
		return
	}

	staff, err := h.store.GetStaffByPhone(r.Context(), req.PhoneNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("ERROR: login lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(staff.HashedPassword), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, staff.ID, staff.Role, staff.PhoneNumber, staff.FirstName, staff.LastName)
	if err != nil {
		log.Printf("ERROR: generate token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "login successful", envelope{
		"token": token,
		"staff": toStaffResponse(staff),
	})
}

// Register creates a new STAFF account. The initial password is the phone
// number itself; the new member changes it on first login.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
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
		Role:           enum.StaffRoleStaff,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "phone number already registered")
			return
		}
		log.Printf("ERROR: register staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusCreated, "staff registered", envelope{"staff": toStaffResponse(staff)})
}

// Me returns the authenticated staff member's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	staff, err := h.store.GetStaffByID(r.Context(), claims.StaffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		log.Printf("ERROR: get current staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "", envelope{"staff": toStaffResponse(staff)})
}

// ChangePassword verifies the current password before setting a new one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "current and new passwords are required")
		return
	}
	if len(req.NewPassword) < 6 {
		writeError(w, http.StatusBadRequest, "new password must be at least 6 characters")
		return
	}

	staff, err := h.store.GetStaffByID(r.Context(), claims.StaffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		log.Printf("ERROR: get staff for password change: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(staff.HashedPassword), []byte(req.CurrentPassword)); err != nil {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash new password: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if _, err := h.store.UpdateStaffPassword(r.Context(), database.UpdateStaffPasswordParams{
		ID:             staff.ID,
		HashedPassword: string(hashed),
	}); err != nil {
		log.Printf("ERROR: update password: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "password updated", nil)
}

// Logout is stateless: tokens expire on their own, the endpoint exists so
// clients have a uniform place to end a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "logged out", nil)
}
