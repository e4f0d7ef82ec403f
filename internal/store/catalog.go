package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/chatbridge/integration/database/pg"
	"github.com/dmitrymomot/chatbridge/internal/pricing"
)

// CatalogEntry resolves a menu code through catalog item, item, purchasable
// and offer, with the product name and the item's special if any.
func (s *Store) CatalogEntry(ctx context.Context, businessID int64, menuCode string) (pricing.Entry, error) {
	var (
		e         pricing.Entry
		offerType string
		spName    *string
		spDisc    decimal.NullDecimal
		spActive  *bool
		spStart   *time.Time
		spEnd     *time.Time
	)
	err := s.conn(ctx).QueryRow(ctx, `SELECT upper(ci.menu_code), coalesce(g.name, ''), o.base_price, ot.type_name,
			sp.name, sp.discount, sp.is_active, sp.starts_at, sp.ends_at
		FROM catalog_items ci
		JOIN catalogs c ON c.id = ci.catalog_id
		JOIN items i ON i.id = ci.item_id
		JOIN purchasables p ON p.id = i.purchasable_id
		JOIN offers o ON o.id = p.offer_id
		JOIN offer_types ot ON ot.id = o.offer_type_id
		JOIN saleables sa ON sa.id = p.saleable_id
		LEFT JOIN products pr ON pr.id = sa.product_id
		LEFT JOIN goods g ON g.id = pr.good_id
		LEFT JOIN specials sp ON sp.id = i.special_id
		WHERE c.business_id = $1 AND upper(ci.menu_code) = upper($2)
		ORDER BY c.id
		LIMIT 1`, businessID, menuCode).
		Scan(&e.MenuCode, &e.Name, &e.Price, &offerType, &spName, &spDisc, &spActive, &spStart, &spEnd)
	if pg.IsNotFoundError(err) {
		return pricing.Entry{}, fmt.Errorf("%w: %s", pricing.ErrEntryNotFound, menuCode)
	}
	if err != nil {
		return pricing.Entry{}, fmt.Errorf("store: resolve %s: %w", menuCode, err)
	}

	e.OfferType = pricing.OfferType(offerType)
	if spName != nil && spDisc.Valid {
		e.Special = &pricing.Special{
			Name:     *spName,
			Discount: spDisc.Decimal,
			Active:   spActive != nil && *spActive,
		}
		if spStart != nil {
			e.Special.Start = *spStart
		}
		if spEnd != nil {
			e.Special.End = *spEnd
		}
	}
	return e, nil
}

// ExistingMenuCodes returns the upper-cased codes from codes that the
// business sells.
func (s *Store) ExistingMenuCodes(ctx context.Context, businessID int64, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	upper := make([]string, len(codes))
	for i, c := range codes {
		upper[i] = strings.ToUpper(c)
	}
	rows, err := s.conn(ctx).Query(ctx, `SELECT DISTINCT upper(ci.menu_code)
		FROM catalog_items ci
		JOIN catalogs c ON c.id = ci.catalog_id
		WHERE c.business_id = $1 AND upper(ci.menu_code) = ANY($2)`, businessID, upper)
	if err != nil {
		return nil, fmt.Errorf("store: check menu codes: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("store: check menu codes: %w", err)
	}
	return found, nil
}
