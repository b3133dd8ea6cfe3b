// Package postgres implements the order pipeline stores on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// conn returns the transaction bound to ctx by RunInTx, or the pool.
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// Registry bundles the PostgreSQL stores behind repositories.Registry.
type Registry struct {
	pool          *pgxpool.Pool
	orders        *OrderRepository
	notifications *NotificationRepository
	catalog       *CatalogRepository
	health        repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// Open connects a pool to dsn and wires the stores. extraChecks join the database probe in
// readiness.
func Open(ctx context.Context, dsn string, extraChecks ...repositories.DependencyCheck) (*Registry, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	registry, err := NewRegistry(pool, extraChecks...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return registry, nil
}

// NewRegistry wires the stores on an existing pool.
func NewRegistry(pool *pgxpool.Pool, extraChecks ...repositories.DependencyCheck) (*Registry, error) {
	if pool == nil {
		return nil, errors.New("postgres registry: pool is required")
	}
	checks := append([]repositories.DependencyCheck{{
		Name:  "postgres",
		Check: pool.Ping,
	}}, extraChecks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return &Registry{
		pool:          pool,
		orders:        &OrderRepository{pool: pool},
		notifications: &NotificationRepository{pool: pool},
		catalog:       &CatalogRepository{pool: pool},
		health:        health,
	}, nil
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// CatalogWriter exposes Put for seeding.
func (r *Registry) CatalogWriter() *CatalogRepository { return r.catalog }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn in one database transaction. Repositories called with the context passed
// to fn join it. Nested calls reuse the outer transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (txErr error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mapError("tx.begin", err)
	}
	defer func() {
		if txErr != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				txErr = errors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError("tx.commit", err)
	}
	return nil
}

// Close releases the pool.
func (r *Registry) Close(context.Context) error {
	r.pool.Close()
	return nil
}
