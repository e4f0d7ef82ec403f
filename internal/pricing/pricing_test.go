package pricing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/internal/order"
	"github.com/dmitrymomot/chatbridge/internal/pricing"
)

type memCatalog map[string]pricing.Entry

func (m memCatalog) CatalogEntry(_ context.Context, _ int64, code string) (pricing.Entry, error) {
	e, ok := m[code]
	if !ok {
		return pricing.Entry{}, pricing.ErrEntryNotFound
	}
	return e, nil
}

type failingCatalog struct{}

func (failingCatalog) CatalogEntry(context.Context, int64, string) (pricing.Entry, error) {
	return pricing.Entry{}, errors.New("connection refused")
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func catalog() memCatalog {
	return memCatalog{
		"M_024": {
			MenuCode:  "M_024",
			Name:      "Chocolate Shake",
			Price:     decimal.RequireFromString("10.00"),
			OfferType: pricing.SingleItem,
			Special: &pricing.Special{
				Name:     "Summer",
				Discount: decimal.NewFromInt(20),
				Active:   true,
				Start:    now.Add(-time.Hour),
				End:      now.Add(time.Hour),
			},
		},
		"W_001": {
			MenuCode:  "W_001",
			Name:      "Loose Tea",
			Price:     decimal.RequireFromString("0.05"),
			OfferType: pricing.WeightItem,
		},
		"E_001": {
			MenuCode:  "E_001",
			Name:      "Cream",
			Price:     decimal.RequireFromString("2.50"),
			OfferType: pricing.SingleItem,
		},
		"P_001": {
			MenuCode:  "P_001",
			Price:     decimal.RequireFromString("5.00"),
			OfferType: pricing.SingleItem,
			Special: &pricing.Special{
				Name:     "Expired",
				Discount: decimal.NewFromInt(50),
				Active:   true,
				Start:    now.Add(-48 * time.Hour),
				End:      now.Add(-24 * time.Hour),
			},
		},
	}
}

func TestCalculator_Tally(t *testing.T) {
	t.Parallel()

	calc := pricing.NewCalculator(catalog(), pricing.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	t.Run("single item with active special", func(t *testing.T) {
		t.Parallel()
		tally, err := calc.Tally(ctx, 1, []order.Item{{Quantity: 2, Code: "M_024"}})
		require.NoError(t, err)
		assert.Equal(t, "16.00", tally.Total.StringFixed(2))
		assert.Equal(t, []string{
			"  2x Chocolate Shake @ R10.00 = R20.00",
			"    🏷️ Summer: -20% (-R4.00)",
		}, tally.Lines)
		assert.Empty(t, tally.Errors)
	})

	t.Run("weight item", func(t *testing.T) {
		t.Parallel()
		tally, err := calc.Tally(ctx, 1, []order.Item{{Quantity: 250, Code: "W_001"}})
		require.NoError(t, err)
		assert.Equal(t, "12.50", tally.Total.StringFixed(2))
		assert.Equal(t, []string{"  250g Loose Tea @ R0.05/g = R12.50"}, tally.Lines)
	})

	t.Run("modifications priced before discount", func(t *testing.T) {
		t.Parallel()
		tally, err := calc.Tally(ctx, 1, []order.Item{{Quantity: 2, Code: "M_024", Modifications: "+E_001, -E_002, X_9, +E_404"}})
		require.NoError(t, err)
		// (2*10 + 2*2.50) * 0.8
		assert.Equal(t, "20.00", tally.Total.StringFixed(2))
		assert.Equal(t, []string{
			"  2x Chocolate Shake @ R10.00 = R20.00",
			"    +Cream @ R2.50 × 2 = R5.00",
			"    -E_002 (no charge)",
			"    🏷️ Summer: -20% (-R5.00)",
		}, tally.Lines)
		assert.Equal(t, []string{
			"    ⚠️ Invalid modification format: X_9",
			"    ⚠️ Modification E_404 not found in catalog.",
		}, tally.Errors)
	})

	t.Run("expired special and unnamed good", func(t *testing.T) {
		t.Parallel()
		tally, err := calc.Tally(ctx, 1, []order.Item{{Quantity: 1, Code: "P_001"}})
		require.NoError(t, err)
		assert.Equal(t, "5.00", tally.Total.StringFixed(2))
		assert.Equal(t, []string{"  1x P_001 @ R5.00 = R5.00"}, tally.Lines)
	})

	t.Run("unknown item", func(t *testing.T) {
		t.Parallel()
		tally, err := calc.Tally(ctx, 1, []order.Item{{Quantity: 1, Code: "Z_1"}, {Quantity: 1, Code: "E_001"}})
		require.NoError(t, err)
		assert.Equal(t, 1, tally.Priced)
		assert.Equal(t, []string{"⚠️ Item Z_1 not found in catalog."}, tally.Errors)
		assert.Equal(t, "2.50", tally.Total.StringFixed(2))
	})

	t.Run("catalog failure is an error", func(t *testing.T) {
		t.Parallel()
		_, err := pricing.NewCalculator(failingCatalog{}).Tally(ctx, 1, []order.Item{{Quantity: 1, Code: "A_1"}})
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := calc.Tally(cctx, 1, []order.Item{{Quantity: 1, Code: "E_001"}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSpecial_Applies(t *testing.T) {
	t.Parallel()

	sp := &pricing.Special{Discount: decimal.NewFromInt(10), Active: true, Start: now, End: now}
	assert.True(t, sp.Applies(now), "window bounds are inclusive")
	assert.False(t, sp.Applies(now.Add(time.Second)))

	var none *pricing.Special
	assert.False(t, none.Applies(now))

	inactive := *sp
	inactive.Active = false
	assert.False(t, inactive.Applies(now))
}
