package grpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/promo"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/models"
)

// ClientManager manages the gateway's connection to the checkout service
type ClientManager struct {
	config    *config.Config
	discovery *discovery.ServiceDiscovery
	logger    *zap.Logger

	checkoutClient *CheckoutClient
	checkoutConn   *grpc.ClientConn
}

// NewClientManager creates a new gRPC client manager
func NewClientManager(cfg *config.Config, logger *zap.Logger, disc *discovery.ServiceDiscovery) *ClientManager {
	return &ClientManager{
		config:    cfg,
		discovery: disc,
		logger:    logger.Named("grpc-clients"),
	}
}

// Connect resolves the checkout service and opens a connection to it.
func (m *ClientManager) Connect(ctx context.Context) error {
	name := m.config.Gateway.CheckoutService
	target := m.config.Server.Addr()

	// Try to use service discovery if available
	if m.discovery != nil {
		dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		instances, err := m.discovery.Discover(dctx, name)
		if err == nil && len(instances) > 0 {
			target = instances[0].Addr()
			m.logger.Info("Discovered checkout service", zap.String("address", target))
		} else {
			m.logger.Info("Using default address for checkout service", zap.String("address", target), zap.Error(err))
		}
	}

	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to checkout service: %w", err)
	}

	m.checkoutConn = conn
	m.checkoutClient = NewCheckoutClient(conn, m.config.Checkout.RequestTimeout)

	m.logger.Info("Checkout service client ready", zap.String("target", target))
	return nil
}

// CheckoutClient returns the checkout service client
func (m *ClientManager) CheckoutClient() *CheckoutClient {
	return m.checkoutClient
}

// Close closes all gRPC connections
func (m *ClientManager) Close() error {
	if m.checkoutConn == nil {
		return nil
	}
	if err := m.checkoutConn.Close(); err != nil {
		return fmt.Errorf("checkout connection close error: %w", err)
	}
	return nil
}

// CheckoutClient calls a remote checkout service. Its methods mirror
// checkout.Service and return the same *apperr.Error kinds.
type CheckoutClient struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

func NewCheckoutClient(conn grpc.ClientConnInterface, timeout time.Duration) *CheckoutClient {
	return &CheckoutClient{conn: conn, timeout: timeout}
}

func (c *CheckoutClient) invoke(ctx context.Context, method string, in, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var trailer metadata.MD
	err := c.conn.Invoke(ctx, fullMethod(method), in, out,
		grpc.CallContentSubtype(codecName),
		grpc.Trailer(&trailer),
	)
	return fromStatus(err, trailer)
}

func (c *CheckoutClient) Preview(ctx context.Context, lines []models.CartLine, code string, user promo.User) (*checkout.Summary, error) {
	out := new(checkout.Summary)
	req := &PreviewRequest{Lines: lines, PromoCode: code, UserID: user.ID, LoggedIn: user.LoggedIn}
	if err := c.invoke(ctx, "Preview", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CheckoutClient) PlaceOrder(ctx context.Context, d checkout.Draft) (*models.Order, error) {
	out := new(models.Order)
	if err := c.invoke(ctx, "PlaceOrder", &d, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CheckoutClient) SetQuantity(ctx context.Context, line models.CartLine, quantity int) (cart.Adjustment, error) {
	var out cart.Adjustment
	err := c.invoke(ctx, "SetQuantity", &SetQuantityRequest{Line: line, Quantity: quantity}, &out)
	return out, err
}

func (c *CheckoutClient) GetOrder(ctx context.Context, code string) (*models.Order, error) {
	out := new(models.Order)
	if err := c.invoke(ctx, "GetOrder", &GetOrderRequest{Code: code}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CheckoutClient) ListOrders(ctx context.Context, userID string, page, pageSize int) ([]*models.Order, int64, error) {
	out := new(ListOrdersResponse)
	if err := c.invoke(ctx, "ListOrders", &ListOrdersRequest{UserID: userID, Page: page, PageSize: pageSize}, out); err != nil {
		return nil, 0, err
	}
	return out.Orders, out.Total, nil
}
