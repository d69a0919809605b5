package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

// PlayerService owns the players and player_unique_ids tables. Skill
// writes are clamped to the legal band in SQL so no code path can
// push a rating outside it.
type PlayerService struct {
	db     TxBeginner
	logger *zap.SugaredLogger
}

func NewPlayerService(db TxBeginner, logger *zap.SugaredLogger) *PlayerService {
	return &PlayerService{db: db, logger: logger}
}

const playerColumns = `id, game, last_name, skill, kills, deaths, suicides, teamkills,
	headshots, shots, hits, kill_streak, death_streak, connection_time,
	hide_ranking, last_event, last_skill_change`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	err := row.Scan(&p.ID, &p.Game, &p.LastName, &p.Skill, &p.Kills, &p.Deaths, &p.Suicides, &p.Teamkills,
		&p.Headshots, &p.Shots, &p.Hits, &p.KillStreak, &p.DeathStreak, &p.ConnectionTime,
		&p.HideRanking, &p.LastEvent, &p.LastSkillChange)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// clampedSkill renders an assignment that keeps skill inside
// [MinSkill, MaxSkill] regardless of the delta applied.
const clampedSkill = `skill = LEAST(3000, GREATEST(100, %s))`

// Get fetches one player row.
func (s *PlayerService) Get(ctx context.Context, id int32) (*models.Player, error) {
	row := s.db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	p, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("player %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get player %d: %w", id, err)
	}
	return p, nil
}

// FindUniqueID returns the player linked to a canonical identity.
func (s *PlayerService) FindUniqueID(ctx context.Context, uniqueID, game string) (int32, bool, error) {
	var id int32
	err := s.db.QueryRow(ctx,
		`SELECT player_id FROM player_unique_ids WHERE unique_id = $1 AND game = $2`,
		uniqueID, game).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find unique id %q/%s: %w", uniqueID, game, err)
	}
	return id, true, nil
}

// CreateWithUniqueID inserts the player row and its unique-id link in
// one transaction. A concurrent creation of the same identity surfaces
// as a unique-constraint error the caller recovers by re-reading.
func (s *PlayerService) CreateWithUniqueID(ctx context.Context, name, game, uniqueID string) (*models.Player, error) {
	var player *models.Player
	err := WithTx(ctx, s.db, func(tx PgPool) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO players (game, last_name, skill)
			VALUES ($1, $2, $3)
			RETURNING `+playerColumns,
			game, name, models.DefaultSkill)
		p, err := scanPlayer(row)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO player_unique_ids (unique_id, game, player_id)
			VALUES ($1, $2, $3)`,
			uniqueID, game, p.ID); err != nil {
			return err
		}
		player = p
		return nil
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create player %q/%s: %w", uniqueID, game, err)
	}
	return player, nil
}

// ApplyKillKiller records the killer side of a frag: counters, streaks
// and the new rating. Must run before the victim update so a
// killer-side failure aborts the whole kill.
func (s *PlayerService) ApplyKillKiller(ctx context.Context, id, newSkill int32, headshot bool, now int64) error {
	hs := 0
	if headshot {
		hs = 1
	}
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		UPDATE players SET
			kills = kills + 1,
			headshots = headshots + $2,
			kill_streak = kill_streak + 1,
			death_streak = 0,
			%s,
			last_event = $4,
			last_skill_change = $4
		WHERE id = $1`, fmt.Sprintf(clampedSkill, "$3::int")),
		id, hs, newSkill, now)
	if err != nil {
		return fmt.Errorf("apply kill to killer %d: %w", id, err)
	}
	return nil
}

// ApplyKillVictim records the victim side of a frag.
func (s *PlayerService) ApplyKillVictim(ctx context.Context, id, newSkill int32, now int64) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		UPDATE players SET
			deaths = deaths + 1,
			death_streak = death_streak + 1,
			kill_streak = 0,
			%s,
			last_event = $3,
			last_skill_change = $3
		WHERE id = $1`, fmt.Sprintf(clampedSkill, "$2::int")),
		id, newSkill, now)
	if err != nil {
		return fmt.Errorf("apply kill to victim %d: %w", id, err)
	}
	return nil
}

// ApplySuicide books a self-kill: one death, one suicide, streak reset
// and the fixed skill penalty.
func (s *PlayerService) ApplySuicide(ctx context.Context, id int32, penalty int32, now int64) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		UPDATE players SET
			suicides = suicides + 1,
			deaths = deaths + 1,
			death_streak = death_streak + 1,
			kill_streak = 0,
			%s,
			last_event = $3,
			last_skill_change = $3
		WHERE id = $1`, fmt.Sprintf(clampedSkill, "skill + $2::int")),
		id, penalty, now)
	if err != nil {
		return fmt.Errorf("apply suicide to player %d: %w", id, err)
	}
	return nil
}

// ApplyTeamkillKiller books the killer side of a teamkill.
func (s *PlayerService) ApplyTeamkillKiller(ctx context.Context, id int32, penalty int32, now int64) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		UPDATE players SET
			teamkills = teamkills + 1,
			kill_streak = 0,
			%s,
			last_event = $3,
			last_skill_change = $3
		WHERE id = $1`, fmt.Sprintf(clampedSkill, "skill + $2::int")),
		id, penalty, now)
	if err != nil {
		return fmt.Errorf("apply teamkill to killer %d: %w", id, err)
	}
	return nil
}

// ApplyTeamkillVictim books the victim side of a teamkill. No rating
// change; dying to a teammate is not the victim's fault.
func (s *PlayerService) ApplyTeamkillVictim(ctx context.Context, id int32, now int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE players SET
			deaths = deaths + 1,
			death_streak = death_streak + 1,
			kill_streak = 0,
			last_event = $2
		WHERE id = $1`,
		id, now)
	if err != nil {
		return fmt.Errorf("apply teamkill to victim %d: %w", id, err)
	}
	return nil
}

// AdjustSkill applies a signed rating delta, clamped in SQL.
func (s *PlayerService) AdjustSkill(ctx context.Context, id int32, delta int32, now int64) error {
	if delta == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		UPDATE players SET %s, last_event = $3, last_skill_change = $3
		WHERE id = $1`, fmt.Sprintf(clampedSkill, "skill + $2::int")),
		id, delta, now)
	if err != nil {
		return fmt.Errorf("adjust skill for player %d: %w", id, err)
	}
	return nil
}

// Touch stamps the player's last activity.
func (s *PlayerService) Touch(ctx context.Context, id int32, now int64) error {
	if _, err := s.db.Exec(ctx,
		`UPDATE players SET last_event = $2 WHERE id = $1`, id, now); err != nil {
		return fmt.Errorf("touch player %d: %w", id, err)
	}
	return nil
}

// Rename records a name change.
func (s *PlayerService) Rename(ctx context.Context, id int32, name string, now int64) error {
	if _, err := s.db.Exec(ctx,
		`UPDATE players SET last_name = $2, last_event = $3 WHERE id = $1`,
		id, name, now); err != nil {
		return fmt.Errorf("rename player %d: %w", id, err)
	}
	return nil
}

// AddConnectionTime books a finished session.
func (s *PlayerService) AddConnectionTime(ctx context.Context, id int32, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx,
		`UPDATE players SET connection_time = connection_time + $2 WHERE id = $1`,
		id, seconds); err != nil {
		return fmt.Errorf("add connection time for player %d: %w", id, err)
	}
	return nil
}

// AddShots books weapon-fire and weapon-hit stream counters.
func (s *PlayerService) AddShots(ctx context.Context, id int32, shots, hits int64) error {
	if shots == 0 && hits == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx,
		`UPDATE players SET shots = shots + $2, hits = hits + $3 WHERE id = $1`,
		id, shots, hits); err != nil {
		return fmt.Errorf("add shots for player %d: %w", id, err)
	}
	return nil
}

// TopBySkill returns the skill leaderboard for a game, hidden players
// excluded.
func (s *PlayerService) TopBySkill(ctx context.Context, game string, limit int) ([]*models.Player, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE game = $1 AND NOT hide_ranking
		ORDER BY skill DESC, kills DESC
		LIMIT $2`, game, limit)
	if err != nil {
		return nil, fmt.Errorf("top players for %s: %w", game, err)
	}
	defer rows.Close()

	var out []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
