package checkout

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/pkg/models"
)

// NewOrderCode returns a human-readable code such as ORD-20261016-093000-4F2A9C01.
func NewOrderCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ORD-" + now.Format("20060102-150405") + "-" + suffix
}

func trimDraft(d Draft) Draft {
	d.CustomerName = strings.TrimSpace(d.CustomerName)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Email = strings.TrimSpace(d.Email)
	d.AddressLine = strings.TrimSpace(d.AddressLine)
	d.Ward = strings.TrimSpace(d.Ward)
	d.District = strings.TrimSpace(d.District)
	d.City = strings.TrimSpace(d.City)
	d.Note = strings.TrimSpace(d.Note)
	d.PromoCode = models.NormalizeCode(d.PromoCode)
	return d
}

func validateDraft(d Draft) error {
	switch {
	case d.CustomerName == "":
		return apperr.InvalidValue("customer name is required")
	case d.Phone == "":
		return apperr.InvalidValue("phone is required")
	case d.Email != "" && !strings.Contains(d.Email, "@"):
		return apperr.InvalidValue("email %q is not valid", d.Email)
	case d.AddressLine == "":
		return apperr.InvalidValue("address is required")
	case d.City == "":
		return apperr.InvalidValue("city is required")
	case !d.PaymentMethod.Valid():
		return apperr.InvalidValue("unknown payment method %q", d.PaymentMethod)
	case len(d.Lines) == 0:
		return apperr.InvalidValue("order must have at least one item")
	}
	for _, l := range d.Lines {
		if l.ProductID == "" {
			return apperr.InvalidValue("order line is missing a product")
		}
		if l.Quantity < 1 {
			return apperr.InvalidValue("quantity for %s must be at least 1", l.ProductID)
		}
		if l.UnitPrice < 0 {
			return apperr.InvalidValue("price for %s must not be negative", l.ProductID)
		}
	}
	return nil
}
