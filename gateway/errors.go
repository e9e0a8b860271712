package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
)

func statusFor(kind apperr.Kind) int {
	switch {
	case kind.IsPromoRejection():
		return http.StatusUnprocessableEntity
	case kind == apperr.KindInvalidValue:
		return http.StatusBadRequest
	case kind == apperr.KindNotFound:
		return http.StatusNotFound
	case kind == apperr.KindConflict, kind == apperr.KindStockExceeded:
		return http.StatusConflict
	case kind == apperr.KindPersistenceFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError renders err as {"error": message, "reason": kind}.
func (g *Gateway) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	code := statusFor(kind)

	msg := "internal error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) && kind != apperr.KindInternal {
		msg = appErr.Message
	}
	if code >= http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("reason", string(kind)),
			zap.Error(err))
	}
	c.JSON(code, gin.H{"error": msg, "reason": kind})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reason": apperr.KindInvalidValue})
}
