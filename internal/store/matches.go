package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

// MatchService owns the player_history and map_count tables written on
// map finalization.
type MatchService struct {
	db     PgPool
	logger *zap.SugaredLogger
}

func NewMatchService(db PgPool, logger *zap.SugaredLogger) *MatchService {
	return &MatchService{db: db, logger: logger}
}

// withDB returns a copy bound to another querier, for transactional
// use.
func (s *MatchService) withDB(db PgPool) *MatchService {
	return &MatchService{db: db, logger: s.logger}
}

// InsertPlayerHistory writes one participant's per-map snapshot.
func (s *MatchService) InsertPlayerHistory(ctx context.Context, h *models.PlayerHistory) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO player_history (player_id, server_id, game, map, event_time,
			kills, deaths, assists, damage, objective_score, clutch_wins,
			headshots, shots, hits, suicides, teamkills, mvp_score, mvp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		h.PlayerID, h.ServerID, h.Game, h.Map, h.EventTime,
		h.Kills, h.Deaths, h.Assists, h.Damage, h.ObjectiveScore, h.ClutchWins,
		h.Headshots, h.Shots, h.Hits, h.Suicides, h.Teamkills, h.MVPScore, h.MVP)
	if err != nil {
		return fmt.Errorf("insert player history for %d: %w", h.PlayerID, err)
	}
	return nil
}

// UpsertMapCount books a finished map's kill totals into the per-map
// aggregate.
func (s *MatchService) UpsertMapCount(ctx context.Context, game, mapName string, kills, headshots int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO map_count (game, map, kills, headshots)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game, map) DO UPDATE
		SET kills = map_count.kills + $3, headshots = map_count.headshots + $4`,
		game, mapName, kills, headshots)
	if err != nil {
		return fmt.Errorf("upsert map count %s/%s: %w", game, mapName, err)
	}
	return nil
}
