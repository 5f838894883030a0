package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kdotgoat/toms-api/internal/config"
	"github.com/kdotgoat/toms-api/internal/database"
	"github.com/kdotgoat/toms-api/internal/handler"
	mw "github.com/kdotgoat/toms-api/internal/middleware"
	"github.com/kdotgoat/toms-api/internal/service"
	"github.com/kdotgoat/toms-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "https://toms.kdotgoat.co.ke"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterPublicRoutes(r)

	// WebSocket feed; authenticates via token query param before upgrading.
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	orderHandler := handler.NewOrderHandler(queries, orderService, hub)
	paymentHandler := handler.NewPaymentHandler(queries, hub)
	clothingHandler := handler.NewClothingTypeHandler(queries)
	staffHandler := handler.NewStaffHandler(queries)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterRoutes(r)
		r.Route("/orders", orderHandler.RegisterRoutes)
		r.Route("/payments", paymentHandler.RegisterRoutes)
		r.Route("/clothing-types", clothingHandler.RegisterRoutes)

		// Admin-only surfaces: the staff directory and the payment ledger.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAdmin)
			r.Route("/staff", staffHandler.RegisterRoutes)
			r.Route("/admin/payments", paymentHandler.RegisterAdminRoutes)
		})
	})

	return r
}
