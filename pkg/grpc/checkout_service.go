package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/pkg/models"
)

const checkoutServiceName = "storefront.CheckoutService"

type PreviewRequest struct {
	Lines     []models.CartLine `json:"lines"`
	PromoCode string            `json:"promo_code"`
	UserID    string            `json:"user_id"`
	LoggedIn  bool              `json:"logged_in"`
}

type SetQuantityRequest struct {
	Line     models.CartLine `json:"line"`
	Quantity int             `json:"quantity"`
}

type GetOrderRequest struct {
	Code string `json:"code"`
}

type ListOrdersRequest struct {
	UserID   string `json:"user_id"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type ListOrdersResponse struct {
	Orders []*models.Order `json:"orders"`
	Total  int64           `json:"total"`
}

// CheckoutServiceServer is implemented by the checkout service.
type CheckoutServiceServer interface {
	Preview(context.Context, *PreviewRequest) (*checkout.Summary, error)
	PlaceOrder(context.Context, *checkout.Draft) (*models.Order, error)
	SetQuantity(context.Context, *SetQuantityRequest) (*cart.Adjustment, error)
	GetOrder(context.Context, *GetOrderRequest) (*models.Order, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
}

func RegisterCheckoutServiceServer(s grpc.ServiceRegistrar, srv CheckoutServiceServer) {
	s.RegisterService(&checkoutServiceDesc, srv)
}

var checkoutServiceDesc = grpc.ServiceDesc{
	ServiceName: checkoutServiceName,
	HandlerType: (*CheckoutServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Preview",
			Handler: unaryHandler("Preview", func(srv CheckoutServiceServer, ctx context.Context, in *PreviewRequest) (interface{}, error) {
				return srv.Preview(ctx, in)
			}),
		},
		{
			MethodName: "PlaceOrder",
			Handler: unaryHandler("PlaceOrder", func(srv CheckoutServiceServer, ctx context.Context, in *checkout.Draft) (interface{}, error) {
				return srv.PlaceOrder(ctx, in)
			}),
		},
		{
			MethodName: "SetQuantity",
			Handler: unaryHandler("SetQuantity", func(srv CheckoutServiceServer, ctx context.Context, in *SetQuantityRequest) (interface{}, error) {
				return srv.SetQuantity(ctx, in)
			}),
		},
		{
			MethodName: "GetOrder",
			Handler: unaryHandler("GetOrder", func(srv CheckoutServiceServer, ctx context.Context, in *GetOrderRequest) (interface{}, error) {
				return srv.GetOrder(ctx, in)
			}),
		},
		{
			MethodName: "ListOrders",
			Handler: unaryHandler("ListOrders", func(srv CheckoutServiceServer, ctx context.Context, in *ListOrdersRequest) (interface{}, error) {
				return srv.ListOrders(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/checkout",
}

func fullMethod(method string) string {
	return "/" + checkoutServiceName + "/" + method
}

// unaryHandler adapts a typed method to grpc's untyped handler signature.
func unaryHandler[Req any](method string, call func(CheckoutServiceServer, context.Context, *Req) (interface{}, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CheckoutServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CheckoutServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
