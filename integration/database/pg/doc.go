// Package pg manages PostgreSQL connection pools, goose migrations and transaction
// propagation for storage backends built on pgx.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.MigrateFS(ctx, pool, cfg, migrations.FS, ".", logger); err != nil {
//		return err
//	}
//
// Connect verifies the pool with a ping and retries with exponential backoff. Migrate
// applies migrations from the directory in Config.MigrationsPath; MigrateFS applies
// migrations embedded in a binary.
//
// # Transactions
//
// WithTx attaches a pgx.Tx to a context and TxFromContext retrieves it, so storage code
// can join a transaction opened further up the call chain:
//
//	tx, err := pool.Begin(ctx)
//	if err != nil {
//		return err
//	}
//	defer tx.Rollback(ctx)
//	ctx = pg.WithTx(ctx, tx)
//	// repositories called with ctx use tx
//
// # Errors
//
// IsNotFoundError, IsDuplicateKeyError, IsForeignKeyViolationError and IsTxClosedError
// classify driver errors.
package pg
