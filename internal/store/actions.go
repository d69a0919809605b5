package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

// ActionService owns the per-game action catalog. Lookups are cached
// the same way weapon modifiers are.
type ActionService struct {
	db     PgPool
	logger *zap.SugaredLogger

	mu    sync.RWMutex
	cache map[string]actionCacheEntry
	group singleflight.Group
}

type actionCacheEntry struct {
	action  *models.Action
	found   bool
	fetched time.Time
}

func NewActionService(db PgPool, logger *zap.SugaredLogger) *ActionService {
	return &ActionService{db: db, logger: logger, cache: make(map[string]actionCacheEntry)}
}

const actionColumns = `id, game, code, team, description,
	for_player_actions, for_player_player_actions, for_team_actions, for_world_actions,
	reward_player, reward_team, count`

// Lookup finds a catalog entry by (game, code, team). team "" matches
// the team-agnostic entry. Negative results are cached too.
func (s *ActionService) Lookup(ctx context.Context, game, code, team string) (*models.Action, bool, error) {
	key := game + "\x00" + code + "\x00" + team

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Since(entry.fetched) < catalogTTL {
		return entry.action, entry.found, nil
	}

	type result struct {
		action *models.Action
		found  bool
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		row := s.db.QueryRow(ctx, `
			SELECT `+actionColumns+` FROM actions
			WHERE game = $1 AND code = $2 AND team IN ('', $3)
			ORDER BY team DESC LIMIT 1`,
			game, code, team)
		var a models.Action
		err := row.Scan(&a.ID, &a.Game, &a.Code, &a.Team, &a.Description,
			&a.ForPlayerActions, &a.ForPlayerPlayerActions, &a.ForTeamActions, &a.ForWorldActions,
			&a.RewardPlayer, &a.RewardTeam, &a.Count)
		res := result{}
		if err == nil {
			res = result{action: &a, found: true}
		} else if !isNoRows(err) {
			return nil, fmt.Errorf("lookup action %s/%s/%s: %w", game, code, team, err)
		}
		s.mu.Lock()
		s.cache[key] = actionCacheEntry{action: res.action, found: res.found, fetched: time.Now()}
		s.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(result)
	return res.action, res.found, nil
}

// IncrementCount books one occurrence of an action.
func (s *ActionService) IncrementCount(ctx context.Context, id int32) error {
	if _, err := s.db.Exec(ctx,
		`UPDATE actions SET count = count + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("increment action %d: %w", id, err)
	}
	return nil
}

// Seed inserts catalog rows, updating flags and rewards for entries
// that already exist.
func (s *ActionService) Seed(ctx context.Context, actions []models.Action) error {
	for _, a := range actions {
		if _, err := s.db.Exec(ctx, `
			INSERT INTO actions (game, code, team, description,
				for_player_actions, for_player_player_actions, for_team_actions, for_world_actions,
				reward_player, reward_team)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (game, code, team) DO UPDATE SET
				description = EXCLUDED.description,
				for_player_actions = EXCLUDED.for_player_actions,
				for_player_player_actions = EXCLUDED.for_player_player_actions,
				for_team_actions = EXCLUDED.for_team_actions,
				for_world_actions = EXCLUDED.for_world_actions,
				reward_player = EXCLUDED.reward_player,
				reward_team = EXCLUDED.reward_team`,
			a.Game, a.Code, a.Team, a.Description,
			a.ForPlayerActions, a.ForPlayerPlayerActions, a.ForTeamActions, a.ForWorldActions,
			a.RewardPlayer, a.RewardTeam); err != nil {
			return fmt.Errorf("seed action %s/%s: %w", a.Game, a.Code, err)
		}
	}
	return nil
}
