package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/apperr"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/domain/model"
)

func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.ProductFilter{
		Search:          q.Get("search"),
		Category:        q.Get("category"),
		IncludeArchived: session(r).IsAdmin() && q.Get("include_archived") == "true",
	}
	var err error
	if filter.MinPrice, err = priceParam(q, "min_price"); err != nil {
		respondError(w, r, err)
		return
	}
	if filter.MaxPrice, err = priceParam(q, "max_price"); err != nil {
		respondError(w, r, err)
		return
	}
	page, err := intParam(q, "page", 1)
	if err != nil {
		respondError(w, r, err)
		return
	}
	pageSize, err := intParam(q, "pageSize", catalog.DefaultPageSize)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.Catalog.ListProducts(r.Context(), filter, page, pageSize)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) ProductFilters(w http.ResponseWriter, r *http.Request) {
	facets, err := s.Catalog.Facets(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, facets)
}

func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.Catalog.ViewProduct(r.Context(), chi.URLParam(r, "id"), session(r).IsAdmin())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func priceParam(q url.Values, name string) (*decimal.Decimal, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Invalid(name + " must be a number")
	}
	return &d, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid(name + " must be an integer")
	}
	return n, nil
}
