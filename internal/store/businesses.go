package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/chatbridge/integration/database/pg"
)

// BusinessByCell loads the business registered under a numeric cell.
func (s *Store) BusinessByCell(ctx context.Context, cell int64) (Business, error) {
	var b Business
	err := s.conn(ctx).QueryRow(ctx, `SELECT id, name, cell_number::text, price_list_preamble, greeting_cold, greeting_warm
		FROM businesses WHERE cell_number = $1`, cell).
		Scan(&b.ID, &b.Name, &b.CellNumber, &b.PriceListPreamble, &b.GreetingCold, &b.GreetingWarm)
	if pg.IsNotFoundError(err) {
		return Business{}, ErrNotFound
	}
	if err != nil {
		return Business{}, fmt.Errorf("store: load business: %w", err)
	}
	return b, nil
}

// Listings returns the business price list ordered by menu code. Weight
// items list their per-gram price.
func (s *Store) Listings(ctx context.Context, businessID int64) ([]Listing, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT DISTINCT ON (upper(ci.menu_code))
			upper(ci.menu_code), coalesce(g.name, ''), o.base_price
		FROM catalog_items ci
		JOIN catalogs c ON c.id = ci.catalog_id
		JOIN items i ON i.id = ci.item_id
		JOIN purchasables p ON p.id = i.purchasable_id
		JOIN offers o ON o.id = p.offer_id
		JOIN saleables sa ON sa.id = p.saleable_id
		LEFT JOIN products pr ON pr.id = sa.product_id
		LEFT JOIN goods g ON g.id = pr.good_id
		WHERE c.business_id = $1
		ORDER BY upper(ci.menu_code), c.id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("store: load listings: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Listing, error) {
		var l Listing
		err := row.Scan(&l.MenuCode, &l.Name, &l.Price)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: load listings: %w", err)
	}
	return out, nil
}
