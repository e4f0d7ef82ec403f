// Package pg manages the PostgreSQL connection pool used by the stores and
// the durable queue.
//
// Connect builds a pgxpool.Pool with exponential retry and pings it before
// returning. Migrate applies the embedded goose migrations through a
// database/sql handle opened on the same pool. Healthcheck returns a check
// for the readiness endpoint.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, migrations.FS, log); err != nil {
//		return err
//	}
//
// Repositories take a Querier so they can run inside a transaction that was
// attached to the context with WithTx:
//
//	tx, err := pool.Begin(ctx)
//	if err != nil {
//		return err
//	}
//	defer tx.Rollback(ctx)
//	ctx = pg.WithTx(ctx, tx)
//	// pg.Conn(ctx, pool) now returns tx
//
// IsNotFoundError, IsDuplicateKeyError, IsForeignKeyViolationError and
// IsTxClosedError classify driver errors.
package pg
