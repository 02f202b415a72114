package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/domain/order"
)

type checkoutRequest struct {
	Shipping      *model.ShippingDetails `json:"shipping"`
	PaymentMethod string                 `json:"payment_method"`
}

type checkoutResponse struct {
	OrderID     string            `json:"order_id"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Status      model.OrderStatus `json:"status"`
}

type reviewResponse struct {
	Lines         []model.OrderLine `json:"lines"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	PaymentMethod string            `json:"payment_method"`
}

// ReviewCheckout shows what placing the order would buy at current prices.
// Nothing is reserved.
func (s *Server) ReviewCheckout(w http.ResponseWriter, r *http.Request) {
	d, err := s.Checkout.BeginCheckout(r.Context(), session(r).UserID, order.CheckoutOptions{})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reviewResponse{Lines: d.Lines, TotalAmount: d.TotalAmount, PaymentMethod: d.PaymentMethod})
}

// PlaceOrder checks out the caller's cart. An empty body is allowed.
func (s *Server) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err)
			return
		}
	}

	o, err := s.Checkout.Checkout(r.Context(), session(r).UserID, order.CheckoutOptions{
		Shipping:      req.Shipping,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse{OrderID: o.ID, TotalAmount: o.TotalAmount, Status: o.Status})
}

// ListOrders returns the caller's orders, or every order for an admin.
func (s *Server) ListOrders(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	var filter model.OrderFilter
	if !sess.IsAdmin() {
		filter.UserID = sess.UserID
	}

	orders, err := s.Orders.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	id := chi.URLParam(r, "id")

	var (
		o   *model.Order
		err error
	)
	if sess.IsAdmin() {
		o, err = s.Orders.Get(r.Context(), id)
	} else {
		o, err = s.Orders.GetForUser(r.Context(), sess.UserID, id)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// CancelOrder lets a customer cancel their own Pending order. Admins may
// cancel any order the lifecycle allows.
func (s *Server) CancelOrder(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	id := chi.URLParam(r, "id")

	var (
		o   *model.Order
		err error
	)
	if sess.IsAdmin() {
		o, err = s.Orders.Transition(r.Context(), id, model.OrderCancelled, sess.UserID)
	} else {
		o, err = s.Orders.CancelOwn(r.Context(), sess.UserID, id)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
