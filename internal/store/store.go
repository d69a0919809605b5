// Package store implements the relational persistence layer on
// PostgreSQL. Each service owns the SQL for one slice of the schema;
// handlers receive them as narrow interfaces and never see the pool.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

// PgPool is the querying surface shared by *pgxpool.Pool and pgx.Tx,
// so every service runs unchanged inside a transaction.
type PgPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TxBeginner is satisfied by *pgxpool.Pool and pgx.Tx (savepoints).
type TxBeginner interface {
	PgPool
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ErrNotFound is returned by Get-style lookups for absent rows.
var ErrNotFound = errors.New("store: not found")

// IsUniqueViolation reports whether err is a PostgreSQL
// unique-constraint violation (SQLSTATE 23505), the signal for the
// re-read recovery paths.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
func WithTx(ctx context.Context, db TxBeginner, fn func(tx PgPool) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Store bundles the services over one pool and hosts the operations
// that span more than one service atomically.
type Store struct {
	pool TxBeginner

	Servers *ServerService
	Players *PlayerService
	Weapons *WeaponService
	Actions *ActionService
	Events  *EventService
	Matches *MatchService
}

// New builds the service bundle.
func New(pool *pgxpool.Pool, logger *zap.SugaredLogger) *Store {
	return &Store{
		pool:    pool,
		Servers: NewServerService(pool, logger),
		Players: NewPlayerService(pool, logger),
		Weapons: NewWeaponService(pool, logger),
		Actions: NewActionService(pool, logger),
		Events:  NewEventService(pool, logger),
		Matches: NewMatchService(pool, logger),
	}
}

// RecordFrag appends the frag row and upserts the weapon catalog in
// one transaction, so a cross-team kill is booked completely or not at
// all.
func (s *Store) RecordFrag(ctx context.Context, frag *FragRecord) error {
	return WithTx(ctx, s.pool, func(tx PgPool) error {
		if err := s.Events.withDB(tx).InsertFrag(ctx, frag); err != nil {
			return err
		}
		return s.Weapons.withDB(tx).RecordKill(ctx, frag.Game, frag.Weapon, frag.Headshot)
	})
}

// FinalizeMap writes the multi-row end-of-map snapshot atomically: one
// player_history row per participant plus the map_count aggregate.
func (s *Store) FinalizeMap(ctx context.Context, histories []*models.PlayerHistory, game, mapName string, kills, headshots int64) error {
	return WithTx(ctx, s.pool, func(tx PgPool) error {
		matches := s.Matches.withDB(tx)
		for _, h := range histories {
			if err := matches.InsertPlayerHistory(ctx, h); err != nil {
				return err
			}
		}
		return matches.UpsertMapCount(ctx, game, mapName, kills, headshots)
	})
}
