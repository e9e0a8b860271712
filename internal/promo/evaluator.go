package promo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/pkg/models"
)

var hundred = decimal.NewFromInt(100)

// User identifies who is applying a code.
type User struct {
	ID       string `json:"id"`
	LoggedIn bool   `json:"logged_in"`
}

// Result is the outcome of evaluating a code against a cart. A rejected code
// has Applicable=false and a Reason; DiscountAmount is then zero.
type Result struct {
	Applicable       bool        `json:"applicable"`
	Code             string      `json:"code,omitempty"`
	CodeID           string      `json:"-"`
	DiscountAmount   int64       `json:"discount_amount"`
	EligibleSubtotal int64       `json:"eligible_subtotal"`
	Reason           apperr.Kind `json:"reason,omitempty"`
}

// Err converts a rejection into an *apperr.Error.
func (r Result) Err() error {
	if r.Applicable {
		return nil
	}
	return apperr.New(r.Reason, Message(r.Reason))
}

func reject(code string, reason apperr.Kind) Result {
	return Result{Code: code, Reason: reason}
}

// Finder looks up a promo code by its normalized code. A missing code is
// reported as an apperr.KindNotFound error.
type Finder interface {
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
}

// Evaluator checks submitted codes against the promo-code store. It never
// writes to the store.
type Evaluator struct {
	store Finder
	now   func() time.Time
}

type Option func(*Evaluator)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

func NewEvaluator(store Finder, opts ...Option) *Evaluator {
	e := &Evaluator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate looks up code and computes the discount it grants on lines. The
// returned error is non-nil only when the store could not be read.
func (e *Evaluator) Evaluate(ctx context.Context, code string, lines []models.CartLine, user User) (Result, error) {
	normalized := models.NormalizeCode(code)
	if normalized == "" {
		return reject(normalized, apperr.KindCodeNotFound), nil
	}

	p, err := e.store.FindByCode(ctx, normalized)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return reject(normalized, apperr.KindCodeNotFound), nil
		}
		return Result{}, apperr.Persistence("failed to load promo code", err)
	}

	return Compute(p, lines, user, e.now()), nil
}

// Compute applies the discount rules of p to lines at the given instant.
func Compute(p *models.PromoCode, lines []models.CartLine, user User, now time.Time) Result {
	if p == nil {
		return reject("", apperr.KindCodeNotFound)
	}
	if p.Expired(now) {
		return reject(p.Code, apperr.KindCodeExpired)
	}
	if !p.Active {
		return reject(p.Code, apperr.KindCodeInactive)
	}
	// A per-user limit can only be counted against a known user.
	if (p.LoginRequired || p.PerUserLimit > 0) && (!user.LoggedIn || user.ID == "") {
		return reject(p.Code, apperr.KindLoginRequired)
	}
	if p.PerUserLimit > 0 && p.UsageBy(user.ID) >= p.PerUserLimit {
		return reject(p.Code, apperr.KindUsageLimitReached)
	}

	var eligible int64
	matched := false
	for _, line := range lines {
		if line.Quantity <= 0 || !p.InScope(line.ProductID) {
			continue
		}
		matched = true
		eligible += line.Total()
	}
	if !matched {
		return reject(p.Code, apperr.KindNotApplicableToCart)
	}

	return Result{
		Applicable:       true,
		Code:             p.Code,
		CodeID:           p.ID,
		DiscountAmount:   discountFor(p, eligible),
		EligibleSubtotal: eligible,
	}
}

// discountFor never returns more than eligible.
func discountFor(p *models.PromoCode, eligible int64) int64 {
	base := decimal.NewFromInt(eligible)

	var amount decimal.Decimal
	switch p.Kind {
	case models.DiscountFixed:
		amount = decimal.NewFromFloat(p.Value)
	case models.DiscountPercentage:
		// floor keeps the amount at or below subtotal*value/100
		amount = base.Mul(decimal.NewFromFloat(p.Value)).Div(hundred).Floor()
		if p.MaxAmount > 0 {
			amount = decimal.Min(amount, decimal.NewFromInt(p.MaxAmount))
		}
	default:
		return 0
	}

	amount = decimal.Min(amount, base).Round(0)
	if amount.IsNegative() {
		return 0
	}
	return amount.IntPart()
}

// Message is the default user-facing text for a rejection reason.
func Message(reason apperr.Kind) string {
	switch reason {
	case apperr.KindCodeNotFound:
		return "Promo code is invalid"
	case apperr.KindCodeExpired:
		return "Promo code has expired"
	case apperr.KindCodeInactive:
		return "Promo code is no longer active"
	case apperr.KindLoginRequired:
		return "Please log in to use this promo code"
	case apperr.KindUsageLimitReached:
		return "You have already used this promo code the maximum number of times"
	case apperr.KindNotApplicableToCart:
		return "Promo code does not apply to the products in your cart"
	default:
		return "Promo code cannot be applied"
	}
}
