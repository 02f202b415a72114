package api

import (
	"net/http"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/domain/inventory"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/user"
)

// Server holds the services behind the HTTP surface.
type Server struct {
	Catalog  *catalog.Service
	Carts    *cart.Service
	Ledger   *inventory.Ledger
	Checkout *order.Orchestrator
	Orders   *order.Service
	Users    *user.Service
}

// session returns the caller's session. Behind the optional auth middleware an
// anonymous caller gets the zero session, which is not an admin.
func session(r *http.Request) auth.Session {
	s, _ := auth.SessionFrom(r.Context())
	return s
}
