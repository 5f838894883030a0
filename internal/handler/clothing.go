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
	"github.com/kdotgoat/toms-api/internal/database"
	"github.com/kdotgoat/toms-api/internal/middleware"
)

// ClothingTypeStore defines the database methods needed by clothing type
// handlers. Satisfied by *database.Queries.
type ClothingTypeStore interface {
	CreateClothingType(ctx context.Context, arg database.CreateClothingTypeParams) (database.ClothingType, error)
	GetClothingType(ctx context.Context, id uuid.UUID) (database.ClothingType, error)
	ListClothingTypes(ctx context.Context) ([]database.ClothingType, error)
}

// ClothingTypeHandler manages the garment catalogue and the measurement
// fields each garment carries.
type ClothingTypeHandler struct {
	store ClothingTypeStore
}

func NewClothingTypeHandler(store ClothingTypeStore) *ClothingTypeHandler {
	return &ClothingTypeHandler{store: store}
}

func (h *ClothingTypeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
}

type createClothingTypeRequest struct {
	Name         string   `json:"name"`
	Measurements []string `json:"measurements"`
}

type clothingTypeResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Measurements []string  `json:"measurements"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toClothingTypeResponse(ct database.ClothingType) clothingTypeResponse {
	return clothingTypeResponse{
		ID:           ct.ID,
		Name:         ct.Name,
		Measurements: ct.Measurements,
		CreatedAt:    ct.CreatedAt,
	}
}

// List returns the full garment catalogue; the front end caches it, so no
// pagination here.
func (h *ClothingTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.ListClothingTypes(r.Context())
	if err != nil {
		log.Printf("ERROR: list clothing types: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]clothingTypeResponse, len(types))
	for i, ct := range types {
		resp[i] = toClothingTypeResponse(ct)
	}
	writeSuccess(w, http.StatusOK, "", envelope{"clothingTypes": resp})
}

// Create registers a garment with its measurement field list. Names are
// stored lowercase so "Suit" and "suit" collide.
func (h *ClothingTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createClothingTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Measurements) == 0 {
		writeError(w, http.StatusBadRequest, "at least one measurement field is required")
		return
	}

	fields := make([]string, 0, len(req.Measurements))
	seen := make(map[string]bool, len(req.Measurements))
	for _, f := range req.Measurements {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			writeError(w, http.StatusBadRequest, "measurement fields cannot be empty")
			return
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}

	ct, err := h.store.CreateClothingType(r.Context(), database.CreateClothingTypeParams{
		Name:         name,
		Measurements: fields,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "clothing type already exists")
			return
		}
		log.Printf("ERROR: create clothing type: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusCreated, "clothing type created", envelope{"clothingType": toClothingTypeResponse(ct)})
}

// Get returns a single clothing type.
func (h *ClothingTypeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid clothing type ID")
		return
	}

	ct, err := h.store.GetClothingType(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "clothing type not found")
			return
		}
		log.Printf("ERROR: get clothing type: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "", envelope{"clothingType": toClothingTypeResponse(ct)})
}
