// Package pricing tallies an order against a business catalog.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/chatbridge/internal/order"
)

// ErrEntryNotFound is returned by a Catalog for an unknown menu code.
var ErrEntryNotFound = errors.New("pricing: catalog entry not found")

// OfferType selects the line pricing rule.
type OfferType string

const (
	SingleItem OfferType = "SingleItem"
	WeightItem OfferType = "WeightItem"
)

// Special is a percentage discount with a validity window.
type Special struct {
	Name     string
	Discount decimal.Decimal
	Active   bool
	Start    time.Time
	End      time.Time
}

// Applies reports whether the special is in effect at now. Bounds are inclusive.
func (s *Special) Applies(now time.Time) bool {
	if s == nil || !s.Active || !s.Discount.IsPositive() {
		return false
	}
	return !now.Before(s.Start) && !now.After(s.End)
}

// Entry is a catalog item resolved through item, purchasable and offer.
type Entry struct {
	MenuCode  string
	Name      string
	Price     decimal.Decimal
	OfferType OfferType
	Special   *Special
}

// DisplayName falls back to the menu code for unnamed goods.
func (e Entry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.MenuCode
}

// Catalog resolves menu codes for a business.
type Catalog interface {
	CatalogEntry(ctx context.Context, businessID int64, menuCode string) (Entry, error)
}

// Tally is the priced order.
type Tally struct {
	Total  decimal.Decimal
	Lines  []string
	Errors []string
	Priced int
}

// Calculator prices orders.
type Calculator struct {
	catalog Catalog
	now     func() time.Time
}

type Option func(*Calculator)

// WithClock replaces time.Now for special windows.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCalculator(catalog Catalog, opts ...Option) *Calculator {
	c := &Calculator{catalog: catalog, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Money formats an amount with two decimals, e.g. "R16.00".
func Money(d decimal.Decimal) string {
	return "R" + d.StringFixed(2)
}

// Tally prices every line. Unknown items and modifications are reported in
// Tally.Errors; only catalog failures and cancellation return an error.
func (c *Calculator) Tally(ctx context.Context, businessID int64, items []order.Item) (Tally, error) {
	t := Tally{Total: decimal.Zero}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return Tally{}, err
		}

		entry, err := c.catalog.CatalogEntry(ctx, businessID, it.Code)
		if errors.Is(err, ErrEntryNotFound) {
			t.Errors = append(t.Errors, fmt.Sprintf("⚠️ Item %s not found in catalog.", it.Code))
			continue
		}
		if err != nil {
			return Tally{}, fmt.Errorf("pricing: resolve %s: %w", it.Code, err)
		}

		qty := decimal.NewFromInt(int64(it.Quantity))
		lineTotal := qty.Mul(entry.Price)
		if entry.OfferType == WeightItem {
			t.Lines = append(t.Lines, fmt.Sprintf("  %dg %s @ %s/g = %s", it.Quantity, entry.DisplayName(), Money(entry.Price), Money(lineTotal)))
		} else {
			t.Lines = append(t.Lines, fmt.Sprintf("  %dx %s @ %s = %s", it.Quantity, entry.DisplayName(), Money(entry.Price), Money(lineTotal)))
		}

		if it.Modifications != "" {
			modTotal, err := c.modifications(ctx, businessID, it, &t)
			if err != nil {
				return Tally{}, err
			}
			lineTotal = lineTotal.Add(modTotal)
		}

		if sp := entry.Special; sp.Applies(c.now()) {
			discount := lineTotal.Mul(sp.Discount).Div(decimal.NewFromInt(100))
			lineTotal = lineTotal.Sub(discount)
			t.Lines = append(t.Lines, fmt.Sprintf("    🏷️ %s: -%s%% (-%s)", sp.Name, sp.Discount.String(), Money(discount)))
		}

		t.Total = t.Total.Add(lineTotal)
		t.Priced++
	}
	return t, nil
}

func (c *Calculator) modifications(ctx context.Context, businessID int64, it order.Item, t *Tally) (decimal.Decimal, error) {
	total := decimal.Zero
	mods, invalid := order.ParseModifications(it.Modifications)
	for _, raw := range invalid {
		t.Errors = append(t.Errors, "    ⚠️ Invalid modification format: "+raw)
	}
	for _, m := range mods {
		if !m.Add {
			t.Lines = append(t.Lines, "    "+m.Raw+" (no charge)")
			continue
		}
		entry, err := c.catalog.CatalogEntry(ctx, businessID, m.Code)
		if errors.Is(err, ErrEntryNotFound) {
			t.Errors = append(t.Errors, fmt.Sprintf("    ⚠️ Modification %s not found in catalog.", m.Code))
			continue
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("pricing: resolve modification %s: %w", m.Code, err)
		}
		line := decimal.NewFromInt(int64(it.Quantity)).Mul(entry.Price)
		total = total.Add(line)
		t.Lines = append(t.Lines, fmt.Sprintf("    +%s @ %s × %d = %s", entry.DisplayName(), Money(entry.Price), it.Quantity, Money(line)))
	}
	return total, nil
}
