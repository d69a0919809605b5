package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

// ServerService owns the servers table.
type ServerService struct {
	db     PgPool
	logger *zap.SugaredLogger
}

func NewServerService(db PgPool, logger *zap.SugaredLogger) *ServerService {
	return &ServerService{db: db, logger: logger}
}

const serverColumns = `id, address, port, name, game,
	kills, rounds, suicides, headshots, bombs_planted, bombs_defused,
	ct_wins, ts_wins, ct_shots, ct_hits, ts_shots, ts_hits, players,
	map_kills, map_rounds, map_suicides, map_headshots, map_bombs_planted, map_bombs_defused,
	map_ct_wins, map_ts_wins, map_ct_shots, map_ct_hits, map_ts_shots, map_ts_hits,
	act_map, act_players, max_players, map_started, map_changes, last_event`

func scanServer(row pgx.Row) (*models.Server, error) {
	var s models.Server
	err := row.Scan(&s.ID, &s.Address, &s.Port, &s.Name, &s.Game,
		&s.Kills, &s.Rounds, &s.Suicides, &s.Headshots, &s.BombsPlanted, &s.BombsDefused,
		&s.CtWins, &s.TsWins, &s.CtShots, &s.CtHits, &s.TsShots, &s.TsHits, &s.Players,
		&s.MapKills, &s.MapRounds, &s.MapSuicides, &s.MapHeadshots, &s.MapBombsPlanted, &s.MapBombsDefused,
		&s.MapCtWins, &s.MapTsWins, &s.MapCtShots, &s.MapCtHits, &s.MapTsShots, &s.MapTsHits,
		&s.ActMap, &s.ActPlayers, &s.MaxPlayers, &s.MapStarted, &s.MapChanges, &s.LastEvent)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByAddress looks a server up by its (address, port) pair.
func (s *ServerService) FindByAddress(ctx context.Context, address string, port int32) (*models.Server, bool, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE address = $1 AND port = $2`,
		address, port)
	srv, err := scanServer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find server %s:%d: %w", address, port, err)
	}
	return srv, true, nil
}

// Create registers a server row. A concurrent registration surfaces as
// a unique-constraint error the caller recovers by re-reading.
func (s *ServerService) Create(ctx context.Context, address string, port int32, name, game string) (*models.Server, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO servers (address, port, name, game)
		VALUES ($1, $2, $3, $4)
		RETURNING `+serverColumns,
		address, port, name, game)
	srv, err := scanServer(row)
	if err != nil {
		return nil, fmt.Errorf("create server %s:%d: %w", address, port, err)
	}
	s.logger.Infow("registered server", "serverId", srv.ID, "address", address, "port", port, "game", game)
	return srv, nil
}

// Get fetches one server row.
func (s *ServerService) Get(ctx context.Context, id int32) (*models.Server, error) {
	row := s.db.QueryRow(ctx, `SELECT `+serverColumns+` FROM servers WHERE id = $1`, id)
	srv, err := scanServer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("server %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get server %d: %w", id, err)
	}
	return srv, nil
}

// List returns all registered servers ordered by id.
func (s *ServerService) List(ctx context.Context) ([]*models.Server, error) {
	rows, err := s.db.Query(ctx, `SELECT `+serverColumns+` FROM servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var out []*models.Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		out = append(out, srv)
	}
	return out, rows.Err()
}

// deltaColumns pairs every increment field of ServerStatsDelta with its
// column. Kept in one place so Apply and the tests agree.
type deltaColumn struct {
	name  string
	value func(*models.ServerStatsDelta) int64
}

var deltaColumns = []deltaColumn{
	{"kills", func(d *models.ServerStatsDelta) int64 { return d.Kills }},
	{"rounds", func(d *models.ServerStatsDelta) int64 { return d.Rounds }},
	{"suicides", func(d *models.ServerStatsDelta) int64 { return d.Suicides }},
	{"headshots", func(d *models.ServerStatsDelta) int64 { return d.Headshots }},
	{"bombs_planted", func(d *models.ServerStatsDelta) int64 { return d.BombsPlanted }},
	{"bombs_defused", func(d *models.ServerStatsDelta) int64 { return d.BombsDefused }},
	{"ct_wins", func(d *models.ServerStatsDelta) int64 { return d.CtWins }},
	{"ts_wins", func(d *models.ServerStatsDelta) int64 { return d.TsWins }},
	{"ct_shots", func(d *models.ServerStatsDelta) int64 { return d.CtShots }},
	{"ct_hits", func(d *models.ServerStatsDelta) int64 { return d.CtHits }},
	{"ts_shots", func(d *models.ServerStatsDelta) int64 { return d.TsShots }},
	{"ts_hits", func(d *models.ServerStatsDelta) int64 { return d.TsHits }},
	{"players", func(d *models.ServerStatsDelta) int64 { return d.Players }},
	{"map_kills", func(d *models.ServerStatsDelta) int64 { return d.MapKills }},
	{"map_rounds", func(d *models.ServerStatsDelta) int64 { return d.MapRounds }},
	{"map_suicides", func(d *models.ServerStatsDelta) int64 { return d.MapSuicides }},
	{"map_headshots", func(d *models.ServerStatsDelta) int64 { return d.MapHeadshots }},
	{"map_bombs_planted", func(d *models.ServerStatsDelta) int64 { return d.MapBombsPlanted }},
	{"map_bombs_defused", func(d *models.ServerStatsDelta) int64 { return d.MapBombsDefused }},
	{"map_ct_wins", func(d *models.ServerStatsDelta) int64 { return d.MapCtWins }},
	{"map_ts_wins", func(d *models.ServerStatsDelta) int64 { return d.MapTsWins }},
	{"map_ct_shots", func(d *models.ServerStatsDelta) int64 { return d.MapCtShots }},
	{"map_ct_hits", func(d *models.ServerStatsDelta) int64 { return d.MapCtHits }},
	{"map_ts_shots", func(d *models.ServerStatsDelta) int64 { return d.MapTsShots }},
	{"map_ts_hits", func(d *models.ServerStatsDelta) int64 { return d.MapTsHits }},
	{"map_changes", func(d *models.ServerStatsDelta) int64 { return d.MapChanges }},
}

// buildApply renders the UPDATE for a delta: increment semantics for
// counters, assignment for the act_map/act_players/max_players/
// map_started fields. Returns "" when the delta changes nothing.
func buildApply(id int32, delta *models.ServerStatsDelta) (string, []any) {
	args := []any{id}
	var sets []string

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, col := range deltaColumns {
		if v := col.value(delta); v != 0 {
			sets = append(sets, fmt.Sprintf("%s = %s + %s", col.name, col.name, next(v)))
		}
	}
	if delta.ActMap != nil {
		sets = append(sets, "act_map = "+next(*delta.ActMap))
	}
	if delta.ActPlayers != nil {
		sets = append(sets, "act_players = GREATEST(0, "+next(*delta.ActPlayers)+"::int)")
	}
	if delta.MaxPlayers != nil {
		sets = append(sets, "max_players = GREATEST(max_players, "+next(*delta.MaxPlayers)+"::int)")
	}
	if delta.MapStarted != nil {
		sets = append(sets, "map_started = "+next(*delta.MapStarted))
	}
	if len(sets) == 0 {
		return "", nil
	}

	return "UPDATE servers SET " + strings.Join(sets, ", ") + " WHERE id = $1", args
}

// Apply updates a server row in place from a stats delta.
func (s *ServerService) Apply(ctx context.Context, id int32, delta *models.ServerStatsDelta) error {
	if delta.IsZero() {
		return nil
	}
	sql, args := buildApply(id, delta)
	if sql == "" {
		return nil
	}
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("apply server delta %d: %w", id, err)
	}
	return nil
}

// ResetMapCounters zeroes the per-map aggregate family. Called by the
// match handler after a finished map has been flushed; the act_map and
// map_started assignments ride in the same statement so the row never
// shows a half-switched map.
func (s *ServerService) ResetMapCounters(ctx context.Context, id int32, newMap string, startedAt int64) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE servers SET
			map_kills = 0, map_rounds = 0, map_suicides = 0, map_headshots = 0,
			map_bombs_planted = 0, map_bombs_defused = 0,
			map_ct_wins = 0, map_ts_wins = 0,
			map_ct_shots = 0, map_ct_hits = 0, map_ts_shots = 0, map_ts_hits = 0,
			act_map = $2, map_started = $3
		WHERE id = $1`, id, newMap, startedAt); err != nil {
		return fmt.Errorf("reset map counters for server %d: %w", id, err)
	}
	return nil
}

// TouchLastEvent stamps the server's last activity.
func (s *ServerService) TouchLastEvent(ctx context.Context, id int32, unixSeconds int64) error {
	if _, err := s.db.Exec(ctx,
		`UPDATE servers SET last_event = $2 WHERE id = $1`, id, unixSeconds); err != nil {
		return fmt.Errorf("touch server %d: %w", id, err)
	}
	return nil
}
