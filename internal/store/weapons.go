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

// catalogTTL bounds how stale the in-memory weapon and action catalogs
// may get.
const catalogTTL = 5 * time.Minute

// WeaponService owns the weapons catalog. Modifier lookups run on
// every kill, so they are served from a TTL cache with single-flight
// fill.
type WeaponService struct {
	db     PgPool
	logger *zap.SugaredLogger

	mu    sync.RWMutex
	cache map[string]weaponCacheEntry
	group singleflight.Group
}

type weaponCacheEntry struct {
	modifier float64
	fetched  time.Time
}

func NewWeaponService(db PgPool, logger *zap.SugaredLogger) *WeaponService {
	return &WeaponService{db: db, logger: logger, cache: make(map[string]weaponCacheEntry)}
}

// withDB returns a copy bound to another querier, for transactional
// use. The cache is shared.
func (s *WeaponService) withDB(db PgPool) *WeaponService {
	return &WeaponService{db: db, logger: s.logger, cache: s.cache}
}

// RecordKill upserts the per-game weapon row for one frag. Unknown
// weapons enter the catalog with the neutral modifier.
func (s *WeaponService) RecordKill(ctx context.Context, game, code string, headshot bool) error {
	hs := 0
	if headshot {
		hs = 1
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO weapons (game, code, name, modifier, kills, headshots)
		VALUES ($1, $2, $2, 1.0, 1, $3)
		ON CONFLICT (game, code) DO UPDATE
		SET kills = weapons.kills + 1, headshots = weapons.headshots + $3`,
		game, code, hs)
	if err != nil {
		return fmt.Errorf("record kill for weapon %s/%s: %w", game, code, err)
	}
	return nil
}

// Modifier returns the skill multiplier for a weapon, 1.0 when the
// weapon is not in the catalog. Concurrent cache misses for the same
// weapon share one query.
func (s *WeaponService) Modifier(ctx context.Context, game, code string) (float64, error) {
	key := game + "\x00" + code

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Since(entry.fetched) < catalogTTL {
		return entry.modifier, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		var modifier float64
		err := s.db.QueryRow(ctx,
			`SELECT modifier FROM weapons WHERE game = $1 AND code = $2`,
			game, code).Scan(&modifier)
		if err != nil {
			if isNoRows(err) {
				modifier = 1.0
			} else {
				return 0.0, fmt.Errorf("weapon modifier %s/%s: %w", game, code, err)
			}
		}
		s.mu.Lock()
		s.cache[key] = weaponCacheEntry{modifier: modifier, fetched: time.Now()}
		s.mu.Unlock()
		return modifier, nil
	})
	if err != nil {
		return 1.0, err
	}
	return v.(float64), nil
}

// TopByKills returns the most-used weapons of a game.
func (s *WeaponService) TopByKills(ctx context.Context, game string, limit int) ([]*models.Weapon, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, game, code, name, modifier, kills, headshots
		FROM weapons WHERE game = $1
		ORDER BY kills DESC LIMIT $2`, game, limit)
	if err != nil {
		return nil, fmt.Errorf("top weapons for %s: %w", game, err)
	}
	defer rows.Close()

	var out []*models.Weapon
	for rows.Next() {
		var w models.Weapon
		if err := rows.Scan(&w.ID, &w.Game, &w.Code, &w.Name, &w.Modifier, &w.Kills, &w.Headshots); err != nil {
			return nil, fmt.Errorf("scan weapon: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// WeaponBreakdown is one row of a player's per-weapon aggregate.
type WeaponBreakdown struct {
	Weapon    string
	Kills     int64
	Headshots int64
}

// PlayerBreakdown groups a player's frags by weapon.
func (s *WeaponService) PlayerBreakdown(ctx context.Context, playerID int32) ([]WeaponBreakdown, error) {
	rows, err := s.db.Query(ctx, `
		SELECT weapon, COUNT(*), COUNT(*) FILTER (WHERE headshot)
		FROM events_frag WHERE killer_id = $1
		GROUP BY weapon ORDER BY COUNT(*) DESC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("weapon breakdown for player %d: %w", playerID, err)
	}
	defer rows.Close()

	var out []WeaponBreakdown
	for rows.Next() {
		var b WeaponBreakdown
		if err := rows.Scan(&b.Weapon, &b.Kills, &b.Headshots); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Seed inserts catalog rows, keeping existing modifiers.
func (s *WeaponService) Seed(ctx context.Context, weapons []models.Weapon) error {
	for _, w := range weapons {
		if _, err := s.db.Exec(ctx, `
			INSERT INTO weapons (game, code, name, modifier)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (game, code) DO UPDATE
			SET name = EXCLUDED.name, modifier = EXCLUDED.modifier`,
			w.Game, w.Code, w.Name, w.Modifier); err != nil {
			return fmt.Errorf("seed weapon %s/%s: %w", w.Game, w.Code, err)
		}
	}
	return nil
}
