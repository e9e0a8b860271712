package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/example/storefront/internal/apperr"
)

// errorKindKey carries the apperr kind in the response trailer so that the
// client can rebuild the same *apperr.Error.
const errorKindKey = "x-error-kind"

func codeFor(kind apperr.Kind) codes.Code {
	switch kind {
	case apperr.KindNotFound, apperr.KindCodeNotFound:
		return codes.NotFound
	case apperr.KindInvalidValue:
		return codes.InvalidArgument
	case apperr.KindConflict:
		return codes.AlreadyExists
	case apperr.KindLoginRequired:
		return codes.Unauthenticated
	case apperr.KindPersistenceFailure:
		return codes.Unavailable
	case apperr.KindStockExceeded, apperr.KindCodeExpired, apperr.KindCodeInactive,
		apperr.KindUsageLimitReached, apperr.KindNotApplicableToCart:
		return codes.FailedPrecondition
	}
	return codes.Internal
}

// toStatus converts a service error into a gRPC status and records its kind
// in the trailer.
func toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	kind := apperr.KindOf(err)
	msg := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	_ = grpc.SetTrailer(ctx, metadata.Pairs(errorKindKey, string(kind)))
	return status.Error(codeFor(kind), msg)
}

// fromStatus rebuilds an *apperr.Error from a call error and its trailer.
func fromStatus(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return apperr.Persistence("checkout service call failed", err)
	}
	if kinds := trailer.Get(errorKindKey); len(kinds) > 0 {
		return apperr.New(apperr.Kind(kinds[0]), st.Message())
	}
	switch st.Code() {
	case codes.NotFound:
		return apperr.New(apperr.KindNotFound, st.Message())
	case codes.InvalidArgument:
		return apperr.New(apperr.KindInvalidValue, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return apperr.Wrap(apperr.KindPersistenceFailure, "checkout service unavailable", err)
	}
	return apperr.Wrap(apperr.KindInternal, "checkout service call failed", err)
}
