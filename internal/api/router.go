package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/domain/model"
)

func NewRouter(s *Server, validator middleware.Validator, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "route not found", Code: "NotFound"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "InvalidArgument"})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Catalog; admins may also see archived products
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuthMiddleware(validator))

		r.Get("/products", s.ListProducts)
		r.Get("/products/filters", s.ProductFilters)
		r.Get("/products/{id}", s.GetProduct)
	})

	// Auth
	r.Post("/auth/register", s.Register)
	r.Post("/auth/login", s.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(validator))

		r.Get("/auth/me", s.Me)
		r.Get("/profile", s.Me)
		r.Put("/profile", s.UpdateProfile)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.GetCart)
			r.Post("/items", s.AddCartItem)
			r.Put("/items/{productId}", s.UpdateCartItem)
			r.Delete("/items/{productId}", s.RemoveCartItem)
		})

		r.Get("/checkout/review", s.ReviewCheckout)
		r.Post("/checkout", s.PlaceOrder)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", s.ListOrders)
			r.Get("/{id}", s.GetOrder)
			r.Post("/{id}/cancel", s.CancelOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))

			r.Get("/orders", s.AdminListOrders)
			r.Post("/orders/{id}/status", s.AdminSetOrderStatus)

			r.Post("/inventory", s.AdminRecordInventory)
			r.Get("/inventory/{productId}", s.AdminInventoryHistory)
			r.Get("/inventory/{productId}/reconcile", s.AdminReconcile)

			r.Post("/products", s.AdminCreateProduct)
			r.Put("/products/{id}", s.AdminUpdateProduct)
			r.Delete("/products/{id}", s.AdminArchiveProduct)
			r.Post("/products/{id}/restore", s.AdminRestoreProduct)

			r.Get("/users", s.AdminListUsers)
		})
	})

	return r
}
