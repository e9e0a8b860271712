package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/promo"
	"github.com/example/storefront/pkg/models"
)

// CheckoutServer exposes checkout.Service over gRPC.
type CheckoutServer struct {
	checkout   *checkout.Service
	reconciler *cart.Reconciler
	logger     *zap.Logger
	srv        *grpc.Server
}

func NewCheckoutServer(svc *checkout.Service, products cart.ProductSource, logger *zap.Logger) *CheckoutServer {
	s := &CheckoutServer{
		checkout:   svc,
		reconciler: cart.NewReconciler(products),
		logger:     logger.Named("checkout-grpc"),
	}
	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logCalls))
	RegisterCheckoutServiceServer(s.srv, s)
	return s
}

// Start listens on addr and serves until Stop is called.
func (s *CheckoutServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info("Checkout service started", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *CheckoutServer) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

func (s *CheckoutServer) Stop() {
	s.srv.GracefulStop()
}

func (s *CheckoutServer) Preview(ctx context.Context, req *PreviewRequest) (*checkout.Summary, error) {
	sum, err := s.checkout.Preview(ctx, req.Lines, req.PromoCode, promo.User{ID: req.UserID, LoggedIn: req.LoggedIn})
	return sum, toStatus(ctx, err)
}

func (s *CheckoutServer) PlaceOrder(ctx context.Context, req *checkout.Draft) (*models.Order, error) {
	order, err := s.checkout.PlaceOrder(ctx, *req)
	return order, toStatus(ctx, err)
}

func (s *CheckoutServer) SetQuantity(ctx context.Context, req *SetQuantityRequest) (*cart.Adjustment, error) {
	adj, err := s.reconciler.SetQuantity(ctx, req.Line, req.Quantity)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &adj, nil
}

func (s *CheckoutServer) GetOrder(ctx context.Context, req *GetOrderRequest) (*models.Order, error) {
	order, err := s.checkout.GetOrder(ctx, req.Code)
	return order, toStatus(ctx, err)
}

func (s *CheckoutServer) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	orders, total, err := s.checkout.ListOrders(ctx, req.UserID, req.Page, req.PageSize)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &ListOrdersResponse{Orders: orders, Total: total}, nil
}

func (s *CheckoutServer) logCalls(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		st, _ := status.FromError(err)
		s.logger.Warn("RPC failed", append(fields, zap.String("code", st.Code().String()), zap.String("error", st.Message()))...)
	} else {
		s.logger.Info("RPC", fields...)
	}
	return resp, err
}
