// Package store persists users, businesses, catalog, sales, payments and
// images in PostgreSQL.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/chatbridge/integration/database/pg"
)

// DB is implemented by *pgxpool.Pool.
type DB interface {
	pg.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the PostgreSQL repository. Methods join a transaction carried
// by the context (pg.WithTx) when there is one.
type Store struct {
	db  DB
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(db DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) conn(ctx context.Context) pg.Querier {
	return pg.Conn(ctx, s.db)
}

// inTx runs fn in a transaction, reusing the one on ctx if present.
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return fn(ctx, tx)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pg.WithTx(ctx, tx), tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) utcNow() time.Time { return s.now().UTC() }
