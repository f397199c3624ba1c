// Package pgstore implements store.Store on Postgres through pgx.
package pgstore

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/sudo-init-do/govconnect/internal/store"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	q    querier
	tx   pgx.Tx
	sb   sq.StatementBuilderType
}

var _ store.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		q:    pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InTx begins a transaction, or joins the current one when s is already bound.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "pgstore.InTx.Begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	bound := &Store{pool: s.pool, q: tx, tx: tx, sb: s.sb}
	if err := fn(bound); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return pkgerrors.Wrap(err, "pgstore.InTx.Commit")
	}
	return nil
}

// translate maps driver errors onto the store sentinels and wraps the rest.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return store.ErrConflict
		case "22P02":
			// malformed uuid literal: no row can match it
			return store.ErrNotFound
		}
	}
	return pkgerrors.Wrap(err, op)
}

// malformed reports whether any id cannot be stored in a UUID column.
// Lookups keyed by caller-supplied ids treat that as not found.
func malformed(ids ...string) bool {
	for _, id := range ids {
		if uuid.Validate(id) != nil {
			return true
		}
	}
	return false
}
