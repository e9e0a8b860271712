package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/promo"
	"github.com/example/storefront/pkg/models"
)

func caller(c *gin.Context) promo.User {
	id := c.GetHeader(userHeader)
	return promo.User{ID: id, LoggedIn: id != ""}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidValue("query parameter %s must be an integer", key)
	}
	return n, nil
}

func queryBool(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.InvalidValue("query parameter %s must be a boolean", key)
	}
	return b, nil
}

// Products

func (g *Gateway) listProducts(c *gin.Context) {
	filter := models.ProductFilter{
		Category: c.Query("category"),
		Query:    c.Query("q"),
	}
	var err error
	var minPrice, maxPrice int
	if minPrice, err = queryInt(c, "min_price", 0); err != nil {
		g.respondError(c, err)
		return
	}
	if maxPrice, err = queryInt(c, "max_price", 0); err != nil {
		g.respondError(c, err)
		return
	}
	if filter.InStockOnly, err = queryBool(c, "in_stock"); err != nil {
		g.respondError(c, err)
		return
	}
	if filter.Page, err = queryInt(c, "page", 1); err != nil {
		g.respondError(c, err)
		return
	}
	if filter.PageSize, err = queryInt(c, "page_size", 20); err != nil {
		g.respondError(c, err)
		return
	}
	filter.MinPrice = int64(minPrice)
	filter.MaxPrice = int64(maxPrice)
	filter = filter.Normalize()

	products, total, err := g.services.Catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products":  products,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

func (g *Gateway) getProduct(c *gin.Context) {
	p, err := g.services.Catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Carts

type cartView struct {
	*cart.Session
	Subtotal  int64 `json:"subtotal"`
	ItemCount int   `json:"item_count"`
}

func viewOf(s *cart.Session) cartView {
	return cartView{Session: s, Subtotal: s.Subtotal(), ItemCount: s.ItemCount()}
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func parseSize(raw string) (models.Size, error) {
	size, ok := models.ParseSize(raw)
	if !ok {
		return "", apperr.InvalidValue("unknown size %q", raw)
	}
	return size, nil
}

func (g *Gateway) createCart(c *gin.Context) {
	sess, err := g.services.Carts.Create(c.Request.Context(), caller(c).ID)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(sess))
}

func (g *Gateway) getCart(c *gin.Context) {
	sess, err := g.services.Carts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (g *Gateway) clearCart(c *gin.Context) {
	if err := g.services.Carts.Clear(c.Request.Context(), c.Param("id")); err != nil {
		g.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (g *Gateway) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	size, err := parseSize(req.Size)
	if err != nil {
		g.respondError(c, err)
		return
	}

	sess, adj, err := g.services.Carts.AddItem(c.Request.Context(), c.Param("id"), caller(c).ID, req.ProductID, size, req.Quantity)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": viewOf(sess), "adjustment": adj})
}

func (g *Gateway) updateCartItem(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	size, err := parseSize(c.Param("size"))
	if err != nil {
		g.respondError(c, err)
		return
	}

	sess, adj, err := g.services.Carts.UpdateQuantity(c.Request.Context(), c.Param("id"), c.Param("product"), size, req.Quantity)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": viewOf(sess), "adjustment": adj})
}

func (g *Gateway) removeCartItem(c *gin.Context) {
	size, err := parseSize(c.Param("size"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	sess, err := g.services.Carts.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("product"), size)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

// Checkout and orders

type previewRequest struct {
	CartID    string `json:"cart_id" binding:"required"`
	PromoCode string `json:"promo_code"`
}

type placeOrderRequest struct {
	CartID        string               `json:"cart_id" binding:"required"`
	CustomerName  string               `json:"customer_name"`
	Phone         string               `json:"phone"`
	Email         string               `json:"email"`
	AddressLine   string               `json:"address_line"`
	Ward          string               `json:"ward"`
	District      string               `json:"district"`
	City          string               `json:"city"`
	Note          string               `json:"note"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PromoCode     string               `json:"promo_code"`
}

func (g *Gateway) previewCheckout(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := g.services.Carts.Get(c.Request.Context(), req.CartID)
	if err != nil {
		g.respondError(c, err)
		return
	}

	sum, err := g.services.Checkout.Preview(c.Request.Context(), sess.Lines, req.PromoCode, caller(c))
	if err != nil {
		g.respondError(c, err)
		return
	}
	resp := gin.H{"summary": sum}
	if sum.Promo != nil && !sum.Promo.Applicable {
		resp["promo_message"] = promo.Message(sum.Promo.Reason)
	}
	c.JSON(http.StatusOK, resp)
}

func (g *Gateway) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	sess, err := g.services.Carts.Get(ctx, req.CartID)
	if err != nil {
		g.respondError(c, err)
		return
	}

	user := caller(c)
	order, err := g.services.Checkout.PlaceOrder(ctx, checkout.Draft{
		UserID:        user.ID,
		LoggedIn:      user.LoggedIn,
		CustomerName:  req.CustomerName,
		Phone:         req.Phone,
		Email:         req.Email,
		AddressLine:   req.AddressLine,
		Ward:          req.Ward,
		District:      req.District,
		City:          req.City,
		Note:          req.Note,
		PaymentMethod: req.PaymentMethod,
		Lines:         sess.Lines,
		PromoCode:     req.PromoCode,
	})
	if err != nil {
		g.respondError(c, err)
		return
	}

	if err := g.services.Carts.Clear(ctx, req.CartID); err != nil {
		g.logger.Warn("Failed to clear cart after order", zap.String("cart_id", req.CartID), zap.Error(err))
	}
	c.JSON(http.StatusCreated, order)
}

func (g *Gateway) listOrders(c *gin.Context) {
	user := caller(c)
	if !user.LoggedIn {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required", "reason": apperr.KindLoginRequired})
		return
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		g.respondError(c, err)
		return
	}
	pageSize, err := queryInt(c, "page_size", 20)
	if err != nil {
		g.respondError(c, err)
		return
	}

	orders, total, err := g.services.Checkout.ListOrders(c.Request.Context(), user.ID, page, pageSize)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total})
}

func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.services.Checkout.GetOrder(c.Request.Context(), c.Param("code"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	if !canView(order, caller(c).ID, c.Query("phone")) {
		g.respondError(c, apperr.NotFound("order %s not found", c.Param("code")))
		return
	}
	c.JSON(http.StatusOK, order)
}

// canView reports whether the caller may read order. Registered users see
// their own orders; a guest order also needs the phone it was placed with.
func canView(order *models.Order, userID, phone string) bool {
	if order.UserID != "" {
		return order.UserID == userID
	}
	phone = strings.TrimSpace(phone)
	return phone != "" && phone == order.Phone
}

// Admin: promo codes

func (g *Gateway) createPromo(c *gin.Context) {
	var in promo.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := g.services.Promos.Create(c.Request.Context(), in)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (g *Gateway) listPromos(c *gin.Context) {
	list, err := g.services.Promos.List(c.Request.Context())
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promo_codes": list})
}

func (g *Gateway) getPromo(c *gin.Context) {
	p, err := g.services.Promos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (g *Gateway) updatePromo(c *gin.Context) {
	var in promo.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := g.services.Promos.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (g *Gateway) deletePromo(c *gin.Context) {
	if err := g.services.Promos.Delete(c.Request.Context(), c.Param("id")); err != nil {
		g.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Admin: products

func (g *Gateway) createProduct(c *gin.Context) {
	var in catalog.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := g.services.Catalog.CreateProduct(c.Request.Context(), in)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (g *Gateway) updateProduct(c *gin.Context) {
	var in catalog.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := g.services.Catalog.UpdateProduct(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	if err := g.services.Catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		g.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Admin: notifications

func (g *Gateway) listNotifications(c *gin.Context) {
	unread, err := queryBool(c, "unread")
	if err != nil {
		g.respondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		g.respondError(c, err)
		return
	}
	list, err := g.services.Notifications.List(c.Request.Context(), unread, int64(limit))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (g *Gateway) markNotificationRead(c *gin.Context) {
	if err := g.services.Notifications.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		g.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
