package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/domain/inventory"
	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/example/ec-storefront/internal/infrastructure/store/mocks"
)

type testAPI struct {
	handler http.Handler
	store   *mocks.MockStore
	server  *Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	s := mocks.NewMockStore()
	gateway := auth.NewGateway("api-test-secret-key-0123456789abcdef", time.Hour)
	ledger := inventory.NewLedger(s, inventory.WithOrderLookup(s))
	carts := cart.NewService(s, s)

	srv := &Server{
		Catalog:  catalog.NewService(s, ledger),
		Carts:    carts,
		Ledger:   ledger,
		Checkout: order.NewOrchestrator(carts, ledger, s, nil, order.Config{}),
		Orders:   order.NewService(s, ledger, nil, order.Config{}),
		Users:    user.NewService(s, gateway),
	}
	return &testAPI{
		handler: NewRouter(srv, gateway, zerolog.Nop()),
		store:   s,
		server:  srv,
	}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[errorResponse](t, rec)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Error)
}

func (a *testAPI) customer(t *testing.T, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: email, Password: "password123", FullName: "Test Customer"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[user.Credential](t, rec).Token
}

func (a *testAPI) admin(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	_, err := a.server.Users.EnsureAdmin(ctx, "admin@example.com", "admin-password")
	require.NoError(t, err)
	cred, err := a.server.Users.Login(ctx, "admin@example.com", "admin-password")
	require.NoError(t, err)
	return cred.Token
}

func (a *testAPI) product(t *testing.T, name, category, price string, stock int) string {
	t.Helper()
	p, err := a.server.Catalog.CreateProduct(context.Background(), catalog.ProductInput{
		Name:         name,
		Category:     category,
		UnitPrice:    decimal.RequireFromString(price),
		InitialStock: stock,
	}, "seed")
	require.NoError(t, err)
	return p.ID
}

func (a *testAPI) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := a.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

// ============================================
// Catalog
// ============================================

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListProducts_Pagination(t *testing.T) {
	a := newTestAPI(t)
	for i := 0; i < 33; i++ {
		a.product(t, fmt.Sprintf("Item %02d", i), "misc", "1.00", 0)
	}

	page3 := decode[catalog.Page](t, a.do(t, http.MethodGet, "/products?page=3", "", nil))
	assert.Equal(t, 33, page3.TotalCount)
	assert.Equal(t, 16, page3.PageSize)
	assert.Equal(t, 3, page3.TotalPages)
	assert.Len(t, page3.Items, 1)

	clamped := decode[catalog.Page](t, a.do(t, http.MethodGet, "/products?page=99", "", nil))
	assert.Equal(t, 3, clamped.Page)
	assert.Len(t, clamped.Items, 1)

	first := decode[catalog.Page](t, a.do(t, http.MethodGet, "/products?pageSize=10", "", nil))
	assert.Equal(t, 1, first.Page)
	assert.Len(t, first.Items, 10)
}

func TestListProducts_Filters(t *testing.T) {
	a := newTestAPI(t)
	a.product(t, "Desk Lamp", "lighting", "25.00", 3)
	a.product(t, "Floor Lamp", "lighting", "80.00", 3)
	a.product(t, "Mug", "kitchen", "8.50", 3)

	byRange := decode[catalog.Page](t, a.do(t, http.MethodGet, "/products?min_price=10&max_price=50", "", nil))
	swapped := decode[catalog.Page](t, a.do(t, http.MethodGet, "/products?min_price=50&max_price=10", "", nil))
	require.Len(t, byRange.Items, 1)
	assert.Equal(t, "Desk Lamp", byRange.Items[0].Name)
	assert.Equal(t, byRange.Items, swapped.Items)

	search := decode[catalog.Page](t, a.do(t, http.MethodGet, "/products?search=lamp&category=lighting", "", nil))
	assert.Equal(t, 2, search.TotalCount)

	all := decode[catalog.Page](t, a.do(t, http.MethodGet, "/products?category=all", "", nil))
	assert.Equal(t, 3, all.TotalCount)

	facets := decode[model.CatalogFacets](t, a.do(t, http.MethodGet, "/products/filters", "", nil))
	assert.ElementsMatch(t, []string{"kitchen", "lighting"}, facets.Categories)
	assert.True(t, facets.MaxPrice.Equal(decimal.NewFromInt(80)))
}

func TestListProducts_BadParams(t *testing.T) {
	a := newTestAPI(t)

	for _, q := range []string{"min_price=abc", "page=two", "pageSize=0", "pageSize=1000", "max_price=-1"} {
		t.Run(q, func(t *testing.T) {
			assertError(t, a.do(t, http.MethodGet, "/products?"+q, "", nil), http.StatusBadRequest, "InvalidArgument")
		})
	}
}

func TestGetProduct(t *testing.T) {
	a := newTestAPI(t)
	id := a.product(t, "Mug", "kitchen", "8.50", 4)

	rec := a.do(t, http.MethodGet, "/products/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[model.Product](t, rec)
	assert.Equal(t, 4, p.StockQuantity)

	assertError(t, a.do(t, http.MethodGet, "/products/nope", "", nil), http.StatusNotFound, "NotFound")
}

// ============================================
// Auth
// ============================================

func TestRegisterAndLogin(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: "ann@example.com", Password: "password123", FullName: "Ann"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cred := decode[user.Credential](t, rec)
	assert.NotEmpty(t, cred.Token)
	assert.Equal(t, model.RoleCustomer, cred.User.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	assertError(t, a.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: "ann@example.com", Password: "password123", FullName: "Ann"}),
		http.StatusConflict, "Conflict")

	rec = a.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "ann@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)

	me := decode[model.User](t, a.do(t, http.MethodGet, "/auth/me", decode[user.Credential](t, rec).Token, nil))
	assert.Equal(t, "ann@example.com", me.Email)

	assertError(t, a.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "ann@example.com", Password: "wrong-password"}),
		http.StatusUnauthorized, "Unauthorized")
}

func TestStrictJSONDecoding(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{"unknown field", `{"email":"a@b.cd","password":"password123","full_name":"A","admin":true}`},
		{"malformed", `{"email":`},
		{"empty", ``},
		{"two objects", `{"email":"a@b.cd","password":"password123","full_name":"A"}{}`},
		{"wrong type", `{"email":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, a.do(t, http.MethodPost, "/auth/register", "", tt.body), http.StatusBadRequest, "InvalidArgument")
		})
	}
}

func TestProtectedRoutesNeedCredential(t *testing.T) {
	a := newTestAPI(t)

	for _, path := range []string{"/cart", "/orders", "/admin/orders"} {
		assertError(t, a.do(t, http.MethodGet, path, "", nil), http.StatusUnauthorized, "Unauthorized")
	}
	assertError(t, a.do(t, http.MethodPost, "/checkout", "garbage", nil), http.StatusUnauthorized, "Unauthorized")
}

// ============================================
// Cart
// ============================================

func TestCartFlow(t *testing.T) {
	a := newTestAPI(t)
	token := a.customer(t, "ann@example.com")
	lamp := a.product(t, "Lamp", "lighting", "19.99", 3)

	rec := a.do(t, http.MethodPost, "/cart/items", token, addCartItemRequest{ProductID: lamp, Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[cart.View](t, rec)
	assert.Equal(t, 2, view.ItemCount)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("39.98")))

	assertError(t, a.do(t, http.MethodPost, "/cart/items", token, addCartItemRequest{ProductID: lamp, Quantity: 2}),
		http.StatusConflict, "InsufficientStock")
	assertError(t, a.do(t, http.MethodPost, "/cart/items", token, addCartItemRequest{ProductID: "ghost", Quantity: 1}),
		http.StatusNotFound, "NotFound")
	assertError(t, a.do(t, http.MethodPost, "/cart/items", token, addCartItemRequest{ProductID: lamp, Quantity: 0}),
		http.StatusBadRequest, "InvalidArgument")

	view = decode[cart.View](t, a.do(t, http.MethodGet, "/cart", token, nil))
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)

	rec = a.do(t, http.MethodPut, "/cart/items/"+lamp, token, updateCartItemRequest{Quantity: 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[cart.View](t, rec).ItemCount)

	assertError(t, a.do(t, http.MethodPut, "/cart/items/"+lamp, token, updateCartItemRequest{Quantity: 4}),
		http.StatusConflict, "InsufficientStock")

	rec = a.do(t, http.MethodDelete, "/cart/items/"+lamp, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, decode[cart.View](t, a.do(t, http.MethodGet, "/cart", token, nil)).Lines)
}

func TestCartRejectsOversizedQuantity(t *testing.T) {
	a := newTestAPI(t)
	token := a.customer(t, "ann@example.com")
	lamp := a.product(t, "Lamp", "lighting", "19.99", 3)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/cart/items", token, addCartItemRequest{ProductID: lamp, Quantity: 1}).Code)

	for _, q := range []string{"9223372036854775807", "2147483648", "99999999999999999999"} {
		t.Run(q, func(t *testing.T) {
			body := fmt.Sprintf(`{"product_id":%q,"quantity":%s}`, lamp, q)
			assertError(t, a.do(t, http.MethodPost, "/cart/items", token, body), http.StatusBadRequest, "InvalidArgument")
			assertError(t, a.do(t, http.MethodPut, "/cart/items/"+lamp, token, `{"quantity":`+q+`}`), http.StatusBadRequest, "InvalidArgument")
		})
	}

	view := decode[cart.View](t, a.do(t, http.MethodGet, "/cart", token, nil))
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 1, view.Lines[0].Quantity)
}

// ============================================
// Checkout & orders
// ============================================

func TestCheckoutReview(t *testing.T) {
	a := newTestAPI(t)
	ann := a.customer(t, "ann@example.com")
	lamp := a.product(t, "Lamp", "lighting", "19.99", 5)
	bulb := a.product(t, "Bulb", "lighting", "2.50", 5)

	assertError(t, a.do(t, http.MethodGet, "/checkout/review", ann, nil), http.StatusBadRequest, "EmptyCart")

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/cart/items", ann, addCartItemRequest{ProductID: lamp, Quantity: 2}).Code)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/cart/items", ann, addCartItemRequest{ProductID: bulb, Quantity: 4}).Code)

	rec := a.do(t, http.MethodGet, "/checkout/review", ann, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	review := decode[reviewResponse](t, rec)
	assert.Len(t, review.Lines, 2)
	assert.True(t, review.TotalAmount.Equal(decimal.RequireFromString("49.98")))
	assert.Equal(t, model.PaymentCOD, review.PaymentMethod)
	assert.NotContains(t, rec.Body.String(), "order_id")

	assert.Equal(t, 5, a.stock(t, lamp))
	assert.Equal(t, 5, a.stock(t, bulb))
	assert.Len(t, decode[cart.View](t, a.do(t, http.MethodGet, "/cart", ann, nil)).Lines, 2)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/checkout/review", "", nil).Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	a := newTestAPI(t)
	token := a.customer(t, "ann@example.com")

	assertError(t, a.do(t, http.MethodPost, "/checkout", token, nil), http.StatusBadRequest, "EmptyCart")
}

func TestCheckout_LastUnitTwoBuyers(t *testing.T) {
	a := newTestAPI(t)
	id := a.product(t, "Last One", "misc", "50.00", 1)
	tokens := []string{a.customer(t, "ann@example.com"), a.customer(t, "bob@example.com")}
	for _, tok := range tokens {
		require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/cart/items", tok, addCartItemRequest{ProductID: id, Quantity: 1}).Code)
	}

	codes := make([]int, len(tokens))
	var g errgroup.Group
	for i, tok := range tokens {
		g.Go(func() error {
			codes[i] = a.do(t, http.MethodPost, "/checkout", tok, nil).Code
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, codes)
	assert.Equal(t, 0, a.stock(t, id))
}

func TestCheckoutAndOrderLifecycle(t *testing.T) {
	a := newTestAPI(t)
	ann := a.customer(t, "ann@example.com")
	bob := a.customer(t, "bob@example.com")
	admin := a.admin(t)
	lamp := a.product(t, "Lamp", "lighting", "19.99", 5)

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/cart/items", ann, addCartItemRequest{ProductID: lamp, Quantity: 2}).Code)
	rec := a.do(t, http.MethodPost, "/checkout", ann, checkoutRequest{
		Shipping: &model.ShippingDetails{FullName: "Ann", Address: "1 Main St", ContactNumber: "555-0100"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	placed := decode[checkoutResponse](t, rec)
	assert.Equal(t, model.OrderPending, placed.Status)
	assert.True(t, placed.TotalAmount.Equal(decimal.RequireFromString("39.98")))
	assert.Equal(t, 3, a.stock(t, lamp))

	orders := decode[[]model.Order](t, a.do(t, http.MethodGet, "/orders", ann, nil))
	require.Len(t, orders, 1)
	assert.Empty(t, decode[[]model.Order](t, a.do(t, http.MethodGet, "/orders", bob, nil)))

	assertError(t, a.do(t, http.MethodGet, "/orders/"+placed.OrderID, bob, nil), http.StatusNotFound, "NotFound")
	assertError(t, a.do(t, http.MethodPost, "/orders/"+placed.OrderID+"/cancel", bob, nil), http.StatusNotFound, "NotFound")
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/orders/"+placed.OrderID, admin, nil).Code)

	rec = a.do(t, http.MethodPost, "/admin/orders/"+placed.OrderID+"/status", admin, setStatusRequest{Status: model.OrderProcessing})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assertError(t, a.do(t, http.MethodPost, "/orders/"+placed.OrderID+"/cancel", ann, nil), http.StatusConflict, "InvalidTransition")
	assertError(t, a.do(t, http.MethodPost, "/admin/orders/"+placed.OrderID+"/status", admin, setStatusRequest{Status: model.OrderCompleted}),
		http.StatusConflict, "InvalidTransition")

	rec = a.do(t, http.MethodPost, "/orders/"+placed.OrderID+"/cancel", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.OrderCancelled, decode[model.Order](t, rec).Status)
	assert.Equal(t, 5, a.stock(t, lamp))

	cancelled := decode[[]model.Order](t, a.do(t, http.MethodGet, "/admin/orders?status=Cancelled", admin, nil))
	assert.Len(t, cancelled, 1)
	assertError(t, a.do(t, http.MethodGet, "/admin/orders?status=Lost", admin, nil), http.StatusBadRequest, "InvalidArgument")
}

func TestCustomerCancelsPendingOrder(t *testing.T) {
	a := newTestAPI(t)
	ann := a.customer(t, "ann@example.com")
	lamp := a.product(t, "Lamp", "lighting", "19.99", 5)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/cart/items", ann, addCartItemRequest{ProductID: lamp, Quantity: 2}).Code)
	placed := decode[checkoutResponse](t, a.do(t, http.MethodPost, "/checkout", ann, nil))

	rec := a.do(t, http.MethodPost, "/orders/"+placed.OrderID+"/cancel", ann, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, a.stock(t, lamp))
	assertError(t, a.do(t, http.MethodPost, "/orders/"+placed.OrderID+"/cancel", ann, nil), http.StatusConflict, "InvalidTransition")
}

func TestInternalErrorsDoNotLeak(t *testing.T) {
	a := newTestAPI(t)
	ann := a.customer(t, "ann@example.com")
	lamp := a.product(t, "Lamp", "lighting", "19.99", 5)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/cart/items", ann, addCartItemRequest{ProductID: lamp, Quantity: 1}).Code)
	a.store.CreateOrderErr = errors.New("pq: relation orders_secret does not exist")

	rec := a.do(t, http.MethodPost, "/checkout", ann, nil)

	assertError(t, rec, http.StatusInternalServerError, "Internal")
	assert.NotContains(t, rec.Body.String(), "orders_secret")
	assert.Equal(t, 5, a.stock(t, lamp))
}

// ============================================
// Admin
// ============================================

func TestAdminRoutesNeedAdminRole(t *testing.T) {
	a := newTestAPI(t)
	ann := a.customer(t, "ann@example.com")

	assertError(t, a.do(t, http.MethodGet, "/admin/orders", ann, nil), http.StatusForbidden, "Forbidden")
	assertError(t, a.do(t, http.MethodPost, "/admin/products", ann, productRequest{Name: "X", Category: "y"}), http.StatusForbidden, "Forbidden")
}

func TestAdminInventory(t *testing.T) {
	a := newTestAPI(t)
	admin := a.admin(t)
	lamp := a.product(t, "Lamp", "lighting", "19.99", 5)

	rec := a.do(t, http.MethodPost, "/admin/inventory", admin, inventoryRequest{ProductID: lamp, ChangeType: model.ChangeRestock, QuantityChanged: 10, Remarks: "delivery"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[model.InventoryLogEntry](t, rec)
	assert.Equal(t, 15, entry.ResultingStock)

	assertError(t, a.do(t, http.MethodPost, "/admin/inventory", admin, inventoryRequest{ProductID: lamp, ChangeType: model.ChangeSale, QuantityChanged: -1}),
		http.StatusBadRequest, "InvalidArgument")
	assertError(t, a.do(t, http.MethodPost, "/admin/inventory", admin, inventoryRequest{ProductID: lamp, ChangeType: model.ChangeAdjustment, QuantityChanged: -100}),
		http.StatusBadRequest, "InvalidArgument")
	assertError(t, a.do(t, http.MethodPost, "/admin/inventory", admin, inventoryRequest{ProductID: "ghost", ChangeType: model.ChangeRestock, QuantityChanged: 1}),
		http.StatusNotFound, "NotFound")

	rec = a.do(t, http.MethodPost, "/admin/inventory", admin, inventoryRequest{ProductID: lamp, ChangeType: model.ChangeAdjustment, QuantityChanged: -100, Authoritative: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	clamped := decode[model.InventoryLogEntry](t, rec)
	assert.True(t, clamped.Clamped)
	assert.Equal(t, 0, clamped.ResultingStock)
	assert.Equal(t, -15, clamped.QuantityChanged)

	history := decode[[]model.InventoryLogEntry](t, a.do(t, http.MethodGet, "/admin/inventory/"+lamp, admin, nil))
	require.Len(t, history, 3)
	assert.Equal(t, int64(1), history[0].Sequence)
	assert.Equal(t, model.ChangeAdjustment, history[2].ChangeType)

	report := decode[inventory.Reconciliation](t, a.do(t, http.MethodGet, "/admin/inventory/"+lamp+"/reconcile", admin, nil))
	assert.True(t, report.Consistent)
	assert.Equal(t, 0, report.LedgerSum)

	assertError(t, a.do(t, http.MethodGet, "/admin/inventory/ghost", admin, nil), http.StatusNotFound, "NotFound")
}

func TestAdminProducts(t *testing.T) {
	a := newTestAPI(t)
	admin := a.admin(t)

	rec := a.do(t, http.MethodPost, "/admin/products", admin, productRequest{
		Name: "Kettle", Category: "kitchen", UnitPrice: decimal.RequireFromString("30.00"), InitialStock: 7,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Product](t, rec)
	assert.Equal(t, 7, created.StockQuantity)

	rec = a.do(t, http.MethodPut, "/admin/products/"+created.ID, admin, productRequest{
		Name: "Electric Kettle", Category: "kitchen", UnitPrice: decimal.RequireFromString("35.00"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.Product](t, rec)
	assert.Equal(t, "Electric Kettle", updated.Name)
	assert.Equal(t, 7, updated.StockQuantity)

	assertError(t, a.do(t, http.MethodPut, "/admin/products/"+created.ID, admin, productRequest{Name: "K", Category: "kitchen", InitialStock: 3}),
		http.StatusBadRequest, "InvalidArgument")
	assertError(t, a.do(t, http.MethodPut, "/admin/products/ghost", admin, productRequest{Name: "K", Category: "kitchen"}),
		http.StatusNotFound, "NotFound")
	assertError(t, a.do(t, http.MethodPost, "/admin/products", admin, productRequest{Name: " ", Category: "kitchen"}),
		http.StatusBadRequest, "InvalidArgument")
}

func TestAdminProducts_RejectsSubCentPrice(t *testing.T) {
	a := newTestAPI(t)
	admin := a.admin(t)

	rec := a.do(t, http.MethodPost, "/admin/products", admin, `{"name":"Kettle","category":"kitchen","unit_price":"19.999"}`)
	assertError(t, rec, http.StatusBadRequest, "InvalidArgument")
	rec = a.do(t, http.MethodPost, "/admin/products", admin, `{"name":"Kettle","category":"kitchen","unit_price":"1e10"}`)
	assertError(t, rec, http.StatusBadRequest, "InvalidArgument")

	page := decode[catalog.Page](t, a.do(t, http.MethodGet, "/products", "", nil))
	assert.Zero(t, page.TotalCount)
}

func TestAdminArchiveProduct(t *testing.T) {
	a := newTestAPI(t)
	admin := a.admin(t)
	ann := a.customer(t, "ann@example.com")
	lamp := a.product(t, "Lamp", "lighting", "19.99", 5)
	a.product(t, "Mug", "kitchen", "8.50", 5)

	assertError(t, a.do(t, http.MethodDelete, "/admin/products/"+lamp, ann, nil), http.StatusForbidden, "Forbidden")

	rec := a.do(t, http.MethodDelete, "/admin/products/"+lamp, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[model.Product](t, rec).Archived)

	assertError(t, a.do(t, http.MethodGet, "/products/"+lamp, "", nil), http.StatusNotFound, "NotFound")
	assertError(t, a.do(t, http.MethodGet, "/products/"+lamp, ann, nil), http.StatusNotFound, "NotFound")
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/products/"+lamp, admin, nil).Code)

	assert.Equal(t, 1, decode[catalog.Page](t, a.do(t, http.MethodGet, "/products", "", nil)).TotalCount)
	assert.Equal(t, 1, decode[catalog.Page](t, a.do(t, http.MethodGet, "/products?include_archived=true", "", nil)).TotalCount)
	assert.Equal(t, 1, decode[catalog.Page](t, a.do(t, http.MethodGet, "/products?include_archived=true", ann, nil)).TotalCount)
	assert.Equal(t, 2, decode[catalog.Page](t, a.do(t, http.MethodGet, "/products?include_archived=true", admin, nil)).TotalCount)
	assert.Equal(t, []string{"kitchen"}, decode[model.CatalogFacets](t, a.do(t, http.MethodGet, "/products/filters", "", nil)).Categories)

	assertError(t, a.do(t, http.MethodPost, "/cart/items", ann, addCartItemRequest{ProductID: lamp, Quantity: 1}), http.StatusNotFound, "NotFound")

	// A bad credential on a public route is treated as anonymous.
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/products", "not-a-token", nil).Code)

	rec = a.do(t, http.MethodPost, "/admin/products/"+lamp+"/restore", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[model.Product](t, rec).Archived)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/products/"+lamp, "", nil).Code)
	assert.Equal(t, 5, a.stock(t, lamp))

	assertError(t, a.do(t, http.MethodDelete, "/admin/products/ghost", admin, nil), http.StatusNotFound, "NotFound")
}

func TestAdminInventory_HidesInFlightSale(t *testing.T) {
	a := newTestAPI(t)
	admin := a.admin(t)
	ann := a.customer(t, "ann@example.com")
	lamp := a.product(t, "Lamp", "lighting", "19.99", 5)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/cart/items", ann, addCartItemRequest{ProductID: lamp, Quantity: 2}).Code)

	var during []model.InventoryLogEntry
	a.store.CreateOrderCallback = func(ctx context.Context, o *model.Order) error {
		during = decode[[]model.InventoryLogEntry](t, a.do(t, http.MethodGet, "/admin/inventory/"+lamp, admin, nil))
		return nil
	}
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/checkout", ann, nil).Code)

	require.Len(t, during, 1)
	assert.Equal(t, model.ChangeRestock, during[0].ChangeType)
	after := decode[[]model.InventoryLogEntry](t, a.do(t, http.MethodGet, "/admin/inventory/"+lamp, admin, nil))
	require.Len(t, after, 2)
	assert.Equal(t, model.ChangeSale, after[1].ChangeType)
}

func TestAdminListUsers(t *testing.T) {
	a := newTestAPI(t)
	admin := a.admin(t)
	ann := a.customer(t, "ann@example.com")

	assertError(t, a.do(t, http.MethodGet, "/admin/users", ann, nil), http.StatusForbidden, "Forbidden")

	rec := a.do(t, http.MethodGet, "/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]model.User](t, rec)
	require.Len(t, users, 2)
	emails := []string{users[0].Email, users[1].Email}
	assert.ElementsMatch(t, []string{"admin@example.com", "ann@example.com"}, emails)
	assert.NotContains(t, rec.Body.String(), "$2a$")
}

func TestProfile(t *testing.T) {
	a := newTestAPI(t)
	ann := a.customer(t, "ann@example.com")

	me := decode[model.User](t, a.do(t, http.MethodGet, "/profile", ann, nil))
	assert.Equal(t, "Test Customer", me.FullName)

	rec := a.do(t, http.MethodPut, "/profile", ann, `{"full_name":"Ann Lee"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Ann Lee", decode[model.User](t, rec).FullName)

	assertError(t, a.do(t, http.MethodPut, "/profile", ann, `{"current_password":"wrong-one","new_password":"new-password-1"}`),
		http.StatusBadRequest, "InvalidArgument")
	assertError(t, a.do(t, http.MethodPut, "/profile", ann, `{"email":"other@example.com"}`),
		http.StatusBadRequest, "InvalidArgument")

	rec = a.do(t, http.MethodPut, "/profile", ann, `{"current_password":"password123","new_password":"new-password-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assertError(t, a.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "ann@example.com", Password: "password123"}),
		http.StatusUnauthorized, "Unauthorized")
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "ann@example.com", Password: "new-password-1"}).Code)

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/profile", "", nil).Code)
}

func TestUnknownRoute(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/nowhere", "", nil)
	assertError(t, rec, http.StatusNotFound, "NotFound")
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
}
