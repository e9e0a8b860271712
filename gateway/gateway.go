package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/promo"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

// userHeader carries the caller's identity. A request without it is a guest.
const userHeader = "X-User-ID"

// Checkout is served either in-process by *checkout.Service or remotely by
// the gRPC checkout client.
type Checkout interface {
	Preview(ctx context.Context, lines []models.CartLine, code string, user promo.User) (*checkout.Summary, error)
	PlaceOrder(ctx context.Context, d checkout.Draft) (*models.Order, error)
	GetOrder(ctx context.Context, code string) (*models.Order, error)
	ListOrders(ctx context.Context, userID string, page, pageSize int) ([]*models.Order, int64, error)
}

type Notifications interface {
	List(ctx context.Context, unreadOnly bool, limit int64) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

type Services struct {
	Catalog       *catalog.Service
	Carts         *cart.Service
	Checkout      Checkout
	Promos        *promo.Service
	Notifications Notifications
}

type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
	services Services
}

func NewGateway(cfg *config.Config, logger *zap.Logger, services Services) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	return &Gateway{
		config: cfg,
		logger: logger.Named("gateway"),
		router: router,
		server: &http.Server{
			Addr:              cfg.Gateway.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		services: services,
	}
}

func (g *Gateway) SetupRoutes() {
	// Health check
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes
	v1 := g.router.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		products := v1.Group("/products")
		{
			products.GET("", g.listProducts)
			products.GET("/:id", g.getProduct)
		}

		carts := v1.Group("/carts")
		{
			carts.POST("", g.createCart)
			carts.GET("/:id", g.getCart)
			carts.DELETE("/:id", g.clearCart)
			carts.POST("/:id/items", g.addCartItem)
			carts.PUT("/:id/items/:product/:size", g.updateCartItem)
			carts.DELETE("/:id/items/:product/:size", g.removeCartItem)
		}

		v1.POST("/checkout/preview", g.previewCheckout)

		orders := v1.Group("/orders")
		{
			orders.POST("", g.placeOrder)
			orders.GET("", g.listOrders)
			orders.GET("/:code", g.getOrder)
		}

		admin := v1.Group("/admin")
		{
			promos := admin.Group("/promo-codes")
			{
				promos.POST("", g.createPromo)
				promos.GET("", g.listPromos)
				promos.GET("/:id", g.getPromo)
				promos.PUT("/:id", g.updatePromo)
				promos.DELETE("/:id", g.deletePromo)
			}

			adminProducts := admin.Group("/products")
			{
				adminProducts.POST("", g.createProduct)
				adminProducts.PUT("/:id", g.updateProduct)
				adminProducts.DELETE("/:id", g.deleteProduct)
			}

			notifications := admin.Group("/notifications")
			{
				notifications.GET("", g.listNotifications)
				notifications.POST("/:id/read", g.markNotificationRead)
			}
		}
	}

	// Swagger
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.String("user_id", c.GetHeader(userHeader)),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
