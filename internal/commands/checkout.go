package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/internal/command"
	"github.com/dmitrymomot/chatbridge/internal/payfast"
	"github.com/dmitrymomot/chatbridge/internal/pricing"
	"github.com/dmitrymomot/chatbridge/internal/store"
)

// Currency of every sale.
const Currency = "ZAR"

// checkout prices the current order, records a sale with its payment and
// replies with a hosted payment link.
type checkout struct {
	deps Deps
	calc *pricing.Calculator
}

func newCheckout(d Deps) *checkout {
	return &checkout{deps: d, calc: pricing.NewCalculator(d.Catalog, pricing.WithClock(d.Now))}
}

func (c *checkout) Execute(ctx context.Context, req command.Request) (command.Result, error) {
	if req.User == nil {
		return command.Text(msgUserNotFound), nil
	}
	items := req.User.CurrentOrder
	if len(items) == 0 {
		return command.Text(msgCheckoutEmpty), nil
	}
	if !req.Business.Configured() {
		return command.Text(msgBusinessNotSet), nil
	}

	tally, err := c.calc.Tally(ctx, req.Business.ID, items)
	if err != nil {
		return command.Result{}, fmt.Errorf("tally order: %w", err)
	}
	if len(tally.Errors) > 0 && len(tally.Lines) == 0 {
		return command.Text("❌ Could not process any order items:\n" + strings.Join(tally.Errors, "\n")), nil
	}

	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	now := c.deps.now()
	sale := &store.Sale{
		UserID:      req.User.ID,
		ItemCount:   count,
		Total:       tally.Total,
		RequestedAt: now,
	}
	payment := &store.Payment{
		SenderEmail: req.User.Email,
		Amount:      tally.Total,
		Currency:    Currency,
		InitiatedAt: now,
	}
	if err := c.deps.Sales.CreateSale(ctx, sale, payment); err != nil {
		return command.Result{}, fmt.Errorf("create sale: %w", err)
	}

	paymentURL, err := c.startPayment(ctx, sale, req.User, tally.Total)
	if err != nil {
		return command.Result{}, err
	}

	out := []string{"🛒 *Checkout Summary:*", ""}
	out = append(out, tally.Lines...)
	if len(tally.Errors) > 0 {
		out = append(out, "")
		out = append(out, tally.Errors...)
	}
	out = append(out, "", "*Total: "+pricing.Money(tally.Total)+"*", "")
	if paymentURL != "" {
		out = append(out, "💳 Complete your payment here:\n"+paymentURL)
	} else {
		out = append(out, msgPaymentFailed)
	}

	c.deps.Logger.InfoContext(ctx, "checkout initiated",
		slog.String("user_id", req.User.ID),
		slog.Int64("sale_id", sale.ID),
		slog.Int("items", len(items)),
		slog.String("total", tally.Total.StringFixed(2)))
	return command.Text(strings.Join(out, "\n")), nil
}

// startPayment returns the payment URL, or "" when the gateway refused.
// Only cancellation of ctx is returned as an error.
func (c *checkout) startPayment(ctx context.Context, sale *store.Sale, user *store.User, total decimal.Decimal) (string, error) {
	if c.deps.Payments == nil {
		return "", nil
	}
	u, err := c.deps.Payments.CreatePayment(ctx, payfast.PaymentRequest{
		SaleID:    sale.ID,
		Amount:    total,
		ItemName:  c.deps.Payments.ItemName(sale.ID),
		FirstName: user.UserName,
		Cell:      user.UserIndicatedCell,
		Email:     user.Email,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		c.deps.Logger.ErrorContext(ctx, "payment initiation failed",
			slog.Int64("sale_id", sale.ID),
			logger.Error(err))
		return "", nil
	}
	return u, nil
}
