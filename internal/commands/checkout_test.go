package commands_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/internal/command"
	"github.com/dmitrymomot/chatbridge/internal/commands"
	"github.com/dmitrymomot/chatbridge/internal/order"
	"github.com/dmitrymomot/chatbridge/internal/payfast"
	"github.com/dmitrymomot/chatbridge/internal/store"
)

func checkoutUser() *store.User {
	return &store.User{
		ID:                "u1",
		UserName:          "Ann",
		Email:             "ann@example.com",
		UserIndicatedCell: "0825551234",
		CurrentOrder: order.Lines{
			{Quantity: 1, Code: "M_001", Modifications: "+E_001"},
			{Quantity: 2, Code: "M_024"},
		},
	}
}

func expectSale(sales *MockSales) {
	sales.On("CreateSale", mock.Anything,
		mock.MatchedBy(func(s *store.Sale) bool {
			return s.UserID == "u1" && s.ItemCount == 3 && s.Total.Equal(decimal.RequireFromString("23")) && s.RequestedAt.Equal(testNow)
		}),
		mock.MatchedBy(func(p *store.Payment) bool {
			return p.Currency == "ZAR" && p.SenderEmail == "ann@example.com" && p.Amount.Equal(decimal.RequireFromString("23"))
		}),
	).Run(func(args mock.Arguments) {
		args.Get(1).(*store.Sale).ID = 11
		args.Get(2).(*store.Payment).SaleID = 11
	}).Return(nil).Once()
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	summary := "🛒 *Checkout Summary:*\n\n" +
		"  1x Burger @ R10.00 = R10.00\n" +
		"    +Cheese @ R3.00 × 1 = R3.00\n" +
		"  2x Shake @ R5.00 = R10.00\n\n" +
		"*Total: R23.00*\n\n"

	t.Run("payment link", func(t *testing.T) {
		t.Parallel()
		sales := &MockSales{}
		expectSale(sales)
		gw := &MockGateway{}
		gw.On("ItemName", int64(11)).Return("Order_11")
		gw.On("CreatePayment", mock.Anything, mock.MatchedBy(func(r payfast.PaymentRequest) bool {
			return r.SaleID == 11 && r.ItemName == "Order_11" && r.FirstName == "Ann" &&
				r.Cell == "0825551234" && r.Email == "ann@example.com" && r.Amount.Equal(decimal.RequireFromString("23"))
		})).Return("https://pay.example.com/abc", nil).Once()

		deps := baseDeps()
		deps.Sales = sales
		deps.Payments = gw

		res := execute(t, deps, "#checkout", command.Request{User: checkoutUser(), Business: testBusiness()})
		assert.Equal(t, summary+"💳 Complete your payment here:\nhttps://pay.example.com/abc", res.Body)
		sales.AssertExpectations(t)
		gw.AssertExpectations(t)
	})

	t.Run("gateway failure is a reply line", func(t *testing.T) {
		t.Parallel()
		sales := &MockSales{}
		expectSale(sales)
		gw := &MockGateway{}
		gw.On("ItemName", int64(11)).Return("Order_11")
		gw.On("CreatePayment", mock.Anything, mock.Anything).Return("", payfast.ErrPaymentInitFailed)

		deps := baseDeps()
		deps.Sales = sales
		deps.Payments = gw

		res := execute(t, deps, "#checkout", command.Request{User: checkoutUser(), Business: testBusiness()})
		assert.Equal(t, summary+"❌ Payment initiation failed. Please try again or contact support.", res.Body)
	})

	t.Run("cancellation during payment is returned", func(t *testing.T) {
		t.Parallel()
		sales := &MockSales{}
		expectSale(sales)

		ctx, cancel := context.WithCancel(context.Background())
		gw := &MockGateway{}
		gw.On("ItemName", int64(11)).Return("Order_11")
		gw.On("CreatePayment", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return("", context.Canceled)

		deps := baseDeps()
		deps.Sales = sales
		deps.Payments = gw

		reg, err := command.NewRegistry(commands.Table(deps))
		require.NoError(t, err)
		instances := reg.Match("#checkout")
		require.Len(t, instances, 1)

		res, err := instances[0].Command.Execute(ctx, command.Request{User: checkoutUser(), Business: testBusiness(), Body: "#checkout"})
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, res.Body)
	})

	t.Run("gateway deadline is returned", func(t *testing.T) {
		t.Parallel()
		sales := &MockSales{}
		expectSale(sales)
		gw := &MockGateway{}
		gw.On("ItemName", int64(11)).Return("Order_11")
		gw.On("CreatePayment", mock.Anything, mock.Anything).
			Return("", fmt.Errorf("post: %w", context.DeadlineExceeded))

		deps := baseDeps()
		deps.Sales = sales
		deps.Payments = gw

		reg, err := command.NewRegistry(commands.Table(deps))
		require.NoError(t, err)
		instances := reg.Match("#checkout")
		require.Len(t, instances, 1)

		_, err = instances[0].Command.Execute(context.Background(), command.Request{User: checkoutUser(), Business: testBusiness(), Body: "#checkout"})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("unknown items only", func(t *testing.T) {
		t.Parallel()
		u := &store.User{ID: "u1", CurrentOrder: order.Lines{{Quantity: 1, Code: "Z_999"}}}
		res := execute(t, baseDeps(), "#checkout", command.Request{User: u, Business: testBusiness()})
		assert.Equal(t, "❌ Could not process any order items:\n⚠️ Item Z_999 not found in catalog.", res.Body)
	})

	t.Run("empty order", func(t *testing.T) {
		t.Parallel()
		res := execute(t, baseDeps(), "#checkout", command.Request{User: &store.User{ID: "u1"}, Business: testBusiness()})
		assert.Equal(t, "📋 Your order is empty.\n\nUse #update order to add items first!", res.Body)
	})

	t.Run("no business", func(t *testing.T) {
		t.Parallel()
		res := execute(t, baseDeps(), "#checkout", command.Request{User: checkoutUser()})
		assert.Equal(t, "❌ Business not configured.", res.Body)
	})

	t.Run("sale store failure is an error", func(t *testing.T) {
		t.Parallel()
		sales := &MockSales{}
		sales.On("CreateSale", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("tx aborted"))
		deps := baseDeps()
		deps.Sales = sales

		reg, err := command.NewRegistry(commands.Table(deps))
		require.NoError(t, err)
		inst := reg.Match("#checkout")
		require.Len(t, inst, 1)
		_, err = inst[0].Command.Execute(context.Background(), command.Request{User: checkoutUser(), Business: testBusiness()})
		assert.ErrorContains(t, err, "tx aborted")
	})
}
