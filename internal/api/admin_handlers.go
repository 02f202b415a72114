package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/apperr"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/domain/inventory"
	"github.com/example/ec-storefront/internal/domain/model"
)

type setStatusRequest struct {
	Status model.OrderStatus `json:"status"`
}

type inventoryRequest struct {
	ProductID       string           `json:"product_id"`
	ChangeType      model.ChangeType `json:"change_type"`
	QuantityChanged int              `json:"quantity_changed"`
	Authoritative   bool             `json:"authoritative"`
	Remarks         string           `json:"remarks"`
}

type productRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	InitialStock int             `json:"initial_stock"`
}

func (s *Server) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	filter := model.OrderFilter{Status: model.OrderStatus(r.URL.Query().Get("status"))}
	orders, err := s.Orders.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) AdminSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	o, err := s.Orders.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, session(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// AdminRecordInventory records a manual stock change. Sales and
// cancellations come only from the order flow.
func (s *Server) AdminRecordInventory(w http.ResponseWriter, r *http.Request) {
	var req inventoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.ProductID == "" {
		respondError(w, r, apperr.Invalid("product_id is required"))
		return
	}
	if req.ChangeType != model.ChangeRestock && req.ChangeType != model.ChangeAdjustment {
		respondError(w, r, apperr.Invalid("change_type must be Restock or Adjustment"))
		return
	}

	entry, err := s.Ledger.Record(r.Context(), inventory.RecordInput{
		ProductID:       req.ProductID,
		ChangeType:      req.ChangeType,
		QuantityChanged: req.QuantityChanged,
		Actor:           session(r).UserID,
		Authoritative:   req.Authoritative,
		Remarks:         req.Remarks,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (s *Server) AdminInventoryHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Ledger.History(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) AdminReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.Ledger.Reconcile(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	p, err := s.Catalog.CreateProduct(r.Context(), req.input(), session(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.InitialStock != 0 {
		respondError(w, r, apperr.Invalid("stock changes go through /admin/inventory"))
		return
	}

	p, err := s.Catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// AdminArchiveProduct takes a product off sale. Its ledger and past orders
// are kept.
func (s *Server) AdminArchiveProduct(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, true)
}

func (s *Server) AdminRestoreProduct(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, false)
}

func (s *Server) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	p, err := s.Catalog.SetArchived(r.Context(), chi.URLParam(r, "id"), archived)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Users.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (req productRequest) input() catalog.ProductInput {
	return catalog.ProductInput{
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		UnitPrice:    req.UnitPrice,
		InitialStock: req.InitialStock,
	}
}
