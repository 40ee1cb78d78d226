// Package pgstore is a PostgreSQL broker.Registry.
//
// Requests live in the oracle_requests table; fulfilled rows are kept with status
// 'fulfilled' so their ids are never accepted again. Apply the schema with
// pg.MigrateFS(ctx, pool, cfg, migrations.FS, ".", logger).
//
// Begin joins a transaction carried in the context (pg.WithTx) through a savepoint,
// so registry writes can share an application transaction.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/arbiter/core/broker"
	"github.com/dmitrymomot/arbiter/core/ledger"
	"github.com/dmitrymomot/arbiter/integration/database/pg"
)

const (
	statusPending   = "pending"
	statusFulfilled = "fulfilled"

	columns = "id, requester, selector, spec, data, seq, created_at"
)

type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registry stores pending requests in PostgreSQL.
type Registry struct {
	pool *pgxpool.Pool
}

// New creates a registry on pool. The schema must already be migrated.
func New(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

func (r *Registry) db(ctx context.Context) executor {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

func (r *Registry) Begin(ctx context.Context) (broker.RegistryTx, error) {
	var (
		tx  pgx.Tx
		err error
	)
	if outer, ok := pg.TxFromContext(ctx); ok {
		tx, err = outer.Begin(ctx)
	} else {
		tx, err = r.pool.Begin(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &registryTx{tx: tx}, nil
}

func (r *Registry) Get(ctx context.Context, id broker.RequestID) (broker.PendingRequest, error) {
	row := r.db(ctx).QueryRow(ctx,
		"SELECT "+columns+" FROM oracle_requests WHERE id = $1 AND status = $2",
		string(id), statusPending)

	req, err := scan(row)
	if pg.IsNotFoundError(err) {
		return broker.PendingRequest{}, broker.ErrUnknownRequest
	}
	if err != nil {
		return broker.PendingRequest{}, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

func (r *Registry) Pending(ctx context.Context) ([]broker.PendingRequest, error) {
	rows, err := r.db(ctx).Query(ctx,
		"SELECT "+columns+" FROM oracle_requests WHERE status = $1 ORDER BY seq",
		statusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	var out []broker.PendingRequest
	for rows.Next() {
		req, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return out, nil
}

func (r *Registry) LastSeq(ctx context.Context) (uint64, error) {
	var last int64
	if err := r.db(ctx).QueryRow(ctx, "SELECT COALESCE(MAX(seq), 0) FROM oracle_requests").Scan(&last); err != nil {
		return 0, fmt.Errorf("failed to read last sequence: %w", err)
	}
	return uint64(last), nil
}

type registryTx struct {
	tx pgx.Tx
}

func (t *registryTx) Insert(ctx context.Context, req broker.PendingRequest) error {
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO oracle_requests (id, requester, selector, spec, data, seq, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		string(req.ID), string(req.Requester), req.Selector, req.Spec, req.Data,
		int64(req.Seq), statusPending, req.CreatedAt)
	if err != nil {
		if pg.IsTxClosedError(err) {
			return broker.ErrTxDone
		}
		return fmt.Errorf("failed to insert request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return broker.ErrDuplicateRequest
	}
	return nil
}

// Take flips a pending row to fulfilled. The row lock serializes concurrent takers.
func (t *registryTx) Take(ctx context.Context, id broker.RequestID) (broker.PendingRequest, error) {
	row := t.tx.QueryRow(ctx,
		`UPDATE oracle_requests SET status = $2, fulfilled_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+columns,
		string(id), statusFulfilled, time.Now(), statusPending)

	req, err := scan(row)
	switch {
	case pg.IsNotFoundError(err):
		return broker.PendingRequest{}, broker.ErrUnknownRequest
	case pg.IsTxClosedError(err):
		return broker.PendingRequest{}, broker.ErrTxDone
	case err != nil:
		return broker.PendingRequest{}, fmt.Errorf("failed to take request: %w", err)
	}
	return req, nil
}

func (t *registryTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		if pg.IsTxClosedError(err) {
			return broker.ErrTxDone
		}
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (t *registryTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return nil
}

func scan(row pgx.Row) (broker.PendingRequest, error) {
	var (
		req       broker.PendingRequest
		id        string
		requester string
		seq       int64
	)
	if err := row.Scan(&id, &requester, &req.Selector, &req.Spec, &req.Data, &seq, &req.CreatedAt); err != nil {
		return broker.PendingRequest{}, err
	}
	req.ID = broker.RequestID(id)
	req.Requester = ledger.Address(requester)
	req.Seq = uint64(seq)
	return req, nil
}
