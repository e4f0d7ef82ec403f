package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/chatbridge/internal/payfast"
)

// CreateSale inserts the sale and its payment in one transaction and
// assigns their ids.
func (s *Store) CreateSale(ctx context.Context, sale *Sale, payment *Payment) error {
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO sales (user_id, item_count, total_amount, requested_at)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			sale.UserID, sale.ItemCount, sale.Total, sale.RequestedAt).Scan(&sale.ID); err != nil {
			return err
		}
		payment.SaleID = sale.ID
		return tx.QueryRow(ctx, `INSERT INTO payments (sale_id, sender_email, amount, currency_code, initiated_at)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			payment.SaleID, payment.SenderEmail, payment.Amount, payment.Currency, payment.InitiatedAt).Scan(&payment.ID)
	})
	if err != nil {
		return errors.Join(ErrSaleNotCreated, err)
	}
	return nil
}

// ApplyNotification records a payment notification against the sale's
// payment. A complete payment stamps the success time and completes the
// sale.
func (s *Store) ApplyNotification(ctx context.Context, n payfast.Notification) error {
	now := s.utcNow()
	return s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var pfID *int64
		if id, ok := n.PFPaymentIDInt(); ok {
			pfID = &id
		}
		var succeeded any
		if n.Complete() {
			succeeded = now
		}
		tag, err := tx.Exec(ctx, `UPDATE payments SET
				pf_payment_id = coalesce($2, pf_payment_id),
				succeeded_at = coalesce($3::timestamptz, succeeded_at)
			WHERE id = (SELECT id FROM payments WHERE sale_id = $1 ORDER BY id DESC LIMIT 1)`,
			n.SaleID, pfID, succeeded)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrPaymentNotFound
		}
		if !n.Complete() {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE sales SET completed_at = $2 WHERE id = $1 AND completed_at IS NULL`, n.SaleID, now)
		return err
	})
}
