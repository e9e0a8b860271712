package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/memstore"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/promo"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

type testEnv struct {
	handler http.Handler
	promos  *memstore.Promos
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	products := memstore.NewProducts(
		&models.Product{ID: "tee", Name: "Basic Tee", Category: "shirts", Price: 250000, Stock: map[models.Size]int{models.SizeL: 3, models.SizeM: 0}},
		&models.Product{ID: "cap", Name: "Cap", Category: "hats", Price: 50000, Stock: map[models.Size]int{models.SizeFree: 10}},
	)
	promos := memstore.NewPromos(
		&models.PromoCode{ID: "p1", Code: "SAVE20", Kind: models.DiscountPercentage, Value: 20, MaxAmount: 80000, Active: true, Scope: models.ScopeAll, PerUserLimit: 1},
		&models.PromoCode{ID: "p2", Code: "MEMBERS", Kind: models.DiscountFixed, Value: 10000, Active: true, Scope: models.ScopeAll, LoginRequired: true},
	)
	audit := memstore.NewAuditLog()

	hub, err := notify.NewHub(actor.NewActorSystem(), memstore.NewNotifications(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Stop() })

	cfg := &config.Config{Gateway: config.GatewayConfig{Host: "127.0.0.1", Port: 0}}
	gw := NewGateway(cfg, logger, Services{
		Catalog: catalog.NewService(products, nil, audit, logger),
		Carts:   cart.NewService(memstore.NewCarts(), products, time.Hour, logger),
		Checkout: checkout.NewService(checkout.Deps{
			Orders:   memstore.NewOrders(),
			Promos:   promos,
			Products: products,
			Audit:    audit,
			Notifier: hub,
			Logger:   logger,
		}),
		Promos:        promo.NewService(promos, audit, logger),
		Notifications: hub,
	})
	gw.SetupRoutes()
	return &testEnv{handler: gw.Handler(), promos: promos}
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func (e *testEnv) cartWithTees(t *testing.T, userID string, qty int) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/carts", userID, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)

	w = e.do(t, http.MethodPost, "/api/v1/carts/"+created.ID+"/items", userID,
		jsonBody{"product_id": "tee", "size": "l", "quantity": qty})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return created.ID
}

type jsonBody map[string]interface{}

func orderBody(cartID, code string) jsonBody {
	return jsonBody{
		"cart_id":        cartID,
		"customer_name":  "Le Van C",
		"phone":          "0987654321",
		"address_line":   "5 Tran Phu",
		"city":           "Hue",
		"payment_method": "cod",
		"promo_code":     code,
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProducts(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/v1/products?category=hats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Products []models.Product `json:"products"`
		Total    int64            `json:"total"`
	}
	decode(t, w, &list)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, "cap", list.Products[0].ID)

	w = e.do(t, http.MethodGet, "/api/v1/products/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/products?page=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCart_addClampsToStock(t *testing.T) {
	e := newTestEnv(t)
	cartID := e.cartWithTees(t, "", 2)

	w := e.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/items", "", jsonBody{"product_id": "tee", "size": "L", "quantity": 5})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Cart struct {
			Lines     []models.CartLine `json:"lines"`
			Subtotal  int64             `json:"subtotal"`
			ItemCount int               `json:"item_count"`
		} `json:"cart"`
		Adjustment cart.Adjustment `json:"adjustment"`
	}
	decode(t, w, &resp)
	assert.False(t, resp.Adjustment.OK)
	assert.Equal(t, 3, resp.Adjustment.ClampedQuantity)
	assert.Equal(t, 3, resp.Cart.ItemCount)
	assert.Equal(t, int64(750000), resp.Cart.Subtotal)

	w = e.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/items", "", jsonBody{"product_id": "tee", "size": "M", "quantity": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/items", "", jsonBody{"product_id": "tee", "size": "XXL", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCart_updateAndRemove(t *testing.T) {
	e := newTestEnv(t)
	cartID := e.cartWithTees(t, "", 1)

	w := e.do(t, http.MethodPut, "/api/v1/carts/"+cartID+"/items/tee/L", "", jsonBody{"quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPut, "/api/v1/carts/"+cartID+"/items/tee/L", "", jsonBody{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodDelete, "/api/v1/carts/"+cartID+"/items/tee/L", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodDelete, "/api/v1/carts/"+cartID+"/items/tee/L", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodDelete, "/api/v1/carts/"+cartID, "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCheckoutPreview_doesNotRecordUsage(t *testing.T) {
	e := newTestEnv(t)
	cartID := e.cartWithTees(t, "u1", 2)

	for i := 0; i < 3; i++ {
		w := e.do(t, http.MethodPost, "/api/v1/checkout/preview", "u1", jsonBody{"cart_id": cartID, "promo_code": "save20"})
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Summary checkout.Summary `json:"summary"`
		}
		decode(t, w, &resp)
		assert.Equal(t, int64(420000), resp.Summary.Total)
	}

	p, err := e.promos.Get(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.UsedCount)
}

func TestCheckoutPreview_rejectionMessage(t *testing.T) {
	e := newTestEnv(t)
	cartID := e.cartWithTees(t, "", 1)

	w := e.do(t, http.MethodPost, "/api/v1/checkout/preview", "", jsonBody{"cart_id": cartID, "promo_code": "MEMBERS"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Summary      checkout.Summary `json:"summary"`
		PromoMessage string           `json:"promo_message"`
	}
	decode(t, w, &resp)
	assert.Equal(t, apperr.KindLoginRequired, resp.Summary.Promo.Reason)
	assert.Equal(t, promo.Message(apperr.KindLoginRequired), resp.PromoMessage)
}

func TestPlaceOrder(t *testing.T) {
	e := newTestEnv(t)
	cartID := e.cartWithTees(t, "u1", 2)

	w := e.do(t, http.MethodPost, "/api/v1/orders", "u1", orderBody(cartID, "SAVE20"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	decode(t, w, &order)
	assert.Equal(t, int64(420000), order.Total)
	assert.Len(t, order.Lines, 1)

	w = e.do(t, http.MethodGet, "/api/v1/carts/"+cartID, "u1", nil)
	var emptied struct {
		ItemCount int `json:"item_count"`
	}
	decode(t, w, &emptied)
	assert.Zero(t, emptied.ItemCount)

	w = e.do(t, http.MethodGet, "/api/v1/orders/"+order.Code, "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodGet, "/api/v1/orders/"+order.Code, "someone-else", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/orders", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Total int64 `json:"total"`
	}
	decode(t, w, &history)
	assert.Equal(t, int64(1), history.Total)

	w = e.do(t, http.MethodGet, "/api/v1/admin/notifications?unread=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes struct {
		Notifications []models.Notification `json:"notifications"`
	}
	decode(t, w, &notes)
	require.Len(t, notes.Notifications, 1)
	assert.Equal(t, order.Code, notes.Notifications[0].RefID)

	w = e.do(t, http.MethodPost, "/api/v1/admin/notifications/"+notes.Notifications[0].ID+"/read", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPlaceOrder_errors(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name   string
		userID string
		code   string
		mutate func(b jsonBody)
		status int
		reason apperr.Kind
	}{
		{"guest with members code", "", "MEMBERS", nil, http.StatusUnprocessableEntity, apperr.KindLoginRequired},
		{"guest with per-user limited code", "", "SAVE20", nil, http.StatusUnprocessableEntity, apperr.KindLoginRequired},
		{"unknown code", "u1", "NOPE", nil, http.StatusUnprocessableEntity, apperr.KindCodeNotFound},
		{"missing phone", "u1", "", func(b jsonBody) { b["phone"] = "" }, http.StatusBadRequest, apperr.KindInvalidValue},
		{"bad payment", "u1", "", func(b jsonBody) { b["payment_method"] = "card" }, http.StatusBadRequest, apperr.KindInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cartID := e.cartWithTees(t, tt.userID, 1)
			body := orderBody(cartID, tt.code)
			if tt.mutate != nil {
				tt.mutate(body)
			}

			w := e.do(t, http.MethodPost, "/api/v1/orders", tt.userID, body)

			assert.Equal(t, tt.status, w.Code)
			var resp struct {
				Error  string      `json:"error"`
				Reason apperr.Kind `json:"reason"`
			}
			decode(t, w, &resp)
			assert.Equal(t, tt.reason, resp.Reason)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestGetOrder_guestNeedsPhone(t *testing.T) {
	e := newTestEnv(t)
	cartID := e.cartWithTees(t, "", 1)

	w := e.do(t, http.MethodPost, "/api/v1/orders", "", orderBody(cartID, ""))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	decode(t, w, &order)

	tests := []struct {
		name   string
		query  string
		userID string
		status int
	}{
		{"no phone", "", "", http.StatusNotFound},
		{"wrong phone", "?phone=0900000000", "", http.StatusNotFound},
		{"registered user without phone", "", "u1", http.StatusNotFound},
		{"matching phone", "?phone=0987654321", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, http.MethodGet, "/api/v1/orders/"+order.Code+tt.query, tt.userID, nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestCanView(t *testing.T) {
	owned := &models.Order{UserID: "u1", Phone: "0901"}
	guest := &models.Order{Phone: "0901"}

	assert.True(t, canView(owned, "u1", ""))
	assert.False(t, canView(owned, "u2", "0901"))
	assert.True(t, canView(guest, "", " 0901 "))
	assert.False(t, canView(guest, "", ""))
	assert.False(t, canView(guest, "u1", "0902"))
}

func TestListOrders_requiresUser(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminPromoCodes(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/v1/admin/promo-codes", "", jsonBody{"code": "welcome10", "kind": "percentage", "value": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.PromoCode
	decode(t, w, &created)
	assert.Equal(t, "WELCOME10", created.Code)
	assert.True(t, created.Active)

	w = e.do(t, http.MethodPost, "/api/v1/admin/promo-codes", "", jsonBody{"code": "WELCOME10", "kind": "fixed", "value": 1000})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/admin/promo-codes", "", jsonBody{"code": "TOOMUCH", "kind": "percentage", "value": 150})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPut, "/api/v1/admin/promo-codes/"+created.ID, "", jsonBody{"code": "WELCOME10", "kind": "percentage", "value": 15, "active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/v1/admin/promo-codes", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		PromoCodes []models.PromoCode `json:"promo_codes"`
	}
	decode(t, w, &list)
	assert.Len(t, list.PromoCodes, 3)

	w = e.do(t, http.MethodDelete, "/api/v1/admin/promo-codes/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodGet, "/api/v1/admin/promo-codes/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminProducts(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/v1/admin/products", "", jsonBody{"name": "Hoodie", "category": "outerwear", "price": 450000, "stock": jsonBody{"M": 2, "XL": 1}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p models.Product
	decode(t, w, &p)

	w = e.do(t, http.MethodPut, "/api/v1/admin/products/"+p.ID, "", jsonBody{"name": "Hoodie", "price": 0, "stock": jsonBody{"M": 2}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodDelete, "/api/v1/admin/products/"+p.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(apperr.KindCodeExpired))
	assert.Equal(t, http.StatusConflict, statusFor(apperr.KindStockExceeded))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(apperr.KindPersistenceFailure))
	assert.Equal(t, http.StatusInternalServerError, statusFor(apperr.KindInternal))
}
