package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

// EventService appends the per-kind event tables. Every row is
// write-once; there are no updates here.
type EventService struct {
	db     PgPool
	logger *zap.SugaredLogger
}

func NewEventService(db PgPool, logger *zap.SugaredLogger) *EventService {
	return &EventService{db: db, logger: logger}
}

// withDB returns a copy bound to another querier, for transactional
// use.
func (s *EventService) withDB(db PgPool) *EventService {
	return &EventService{db: db, logger: s.logger}
}

func posCoords(p *models.Position) (x, y, z *int32) {
	if p == nil {
		return nil, nil, nil
	}
	return &p.X, &p.Y, &p.Z
}

func (s *EventService) InsertConnect(ctx context.Context, ev *models.Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_connect (event_time, server_id, map, player_id, address)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.Time, ev.ServerID, ev.Map, ev.Actor.PlayerID, ev.Address)
	if err != nil {
		return fmt.Errorf("insert connect event: %w", err)
	}
	return nil
}

func (s *EventService) InsertDisconnect(ctx context.Context, ev *models.Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_disconnect (event_time, server_id, map, player_id, reason)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.Time, ev.ServerID, ev.Map, ev.Actor.PlayerID, ev.Reason)
	if err != nil {
		return fmt.Errorf("insert disconnect event: %w", err)
	}
	return nil
}

func (s *EventService) InsertEntry(ctx context.Context, ev *models.Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_entry (event_time, server_id, map, player_id)
		VALUES ($1, $2, $3, $4)`,
		ev.Time, ev.ServerID, ev.Map, ev.Actor.PlayerID)
	if err != nil {
		return fmt.Errorf("insert entry event: %w", err)
	}
	return nil
}

func (s *EventService) InsertChangeTeam(ctx context.Context, ev *models.Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_change_team (event_time, server_id, map, player_id, new_team)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.Time, ev.ServerID, ev.Map, ev.Actor.PlayerID, ev.NewTeam)
	if err != nil {
		return fmt.Errorf("insert change-team event: %w", err)
	}
	return nil
}

func (s *EventService) InsertChangeRole(ctx context.Context, ev *models.Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_change_role (event_time, server_id, map, player_id, new_role)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.Time, ev.ServerID, ev.Map, ev.Actor.PlayerID, ev.NewRole)
	if err != nil {
		return fmt.Errorf("insert change-role event: %w", err)
	}
	return nil
}

func (s *EventService) InsertChangeName(ctx context.Context, ev *models.Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_change_name (event_time, server_id, map, player_id, old_name, new_name)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.Time, ev.ServerID, ev.Map, ev.Actor.PlayerID, ev.Actor.Name, ev.NewName)
	if err != nil {
		return fmt.Errorf("insert change-name event: %w", err)
	}
	return nil
}

// FragRecord is the row shape shared by the frag and teamkill tables.
type FragRecord struct {
	EventTime  time.Time
	ServerID   int32
	Map        string
	Game       string
	KillerID   int32
	VictimID   int32
	Weapon     string
	Headshot   bool
	KillerTeam string
	VictimTeam string
	KillerPos  *models.Position
	VictimPos  *models.Position
}

func (s *EventService) InsertFrag(ctx context.Context, f *FragRecord) error {
	kx, ky, kz := posCoords(f.KillerPos)
	vx, vy, vz := posCoords(f.VictimPos)
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_frag (event_time, server_id, map, killer_id, victim_id,
			weapon, headshot, killer_team, victim_team,
			killer_x, killer_y, killer_z, victim_x, victim_y, victim_z)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		f.EventTime, f.ServerID, f.Map, f.KillerID, f.VictimID,
		f.Weapon, f.Headshot, f.KillerTeam, f.VictimTeam,
		kx, ky, kz, vx, vy, vz)
	if err != nil {
		return fmt.Errorf("insert frag event: %w", err)
	}
	return nil
}

func (s *EventService) InsertSuicide(ctx context.Context, ev *models.Event) error {
	x, y, z := posCoords(ev.ActorPos)
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_suicide (event_time, server_id, map, player_id, weapon, pos_x, pos_y, pos_z)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.Time, ev.ServerID, ev.Map, ev.Actor.PlayerID, ev.Weapon, x, y, z)
	if err != nil {
		return fmt.Errorf("insert suicide event: %w", err)
	}
	return nil
}

func (s *EventService) InsertTeamkill(ctx context.Context, ev *models.Event) error {
	kx, ky, kz := posCoords(ev.ActorPos)
	vx, vy, vz := posCoords(ev.TargetPos)
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_teamkill (event_time, server_id, map, killer_id, victim_id,
			weapon, headshot, killer_x, killer_y, killer_z, victim_x, victim_y, victim_z)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ev.Time, ev.ServerID, ev.Map, ev.Actor.PlayerID, ev.Target.PlayerID,
		ev.Weapon, ev.Headshot, kx, ky, kz, vx, vy, vz)
	if err != nil {
		return fmt.Errorf("insert teamkill event: %w", err)
	}
	return nil
}

func (s *EventService) InsertChat(ctx context.Context, ev *models.Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_chat (event_time, server_id, map, player_id, message, team_say, dead)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.Time, ev.ServerID, ev.Map, ev.Actor.PlayerID, ev.Message, ev.TeamSay, ev.Dead)
	if err != nil {
		return fmt.Errorf("insert chat event: %w", err)
	}
	return nil
}

func (s *EventService) InsertPlayerAction(ctx context.Context, ev *models.Event, bonus int32) error {
	x, y, z := posCoords(ev.ActorPos)
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_player_action (event_time, server_id, map, player_id, code, bonus, pos_x, pos_y, pos_z)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.Time, ev.ServerID, ev.Map, ev.Actor.PlayerID, ev.ActionCode, bonus, x, y, z)
	if err != nil {
		return fmt.Errorf("insert player-action event: %w", err)
	}
	return nil
}

func (s *EventService) InsertPlayerPlayerAction(ctx context.Context, ev *models.Event, bonus int32) error {
	x, y, z := posCoords(ev.ActorPos)
	vx, vy, vz := posCoords(ev.TargetPos)
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_player_player_action (event_time, server_id, map, player_id, victim_id,
			code, bonus, pos_x, pos_y, pos_z, victim_x, victim_y, victim_z)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ev.Time, ev.ServerID, ev.Map, ev.Actor.PlayerID, ev.Target.PlayerID,
		ev.ActionCode, bonus, x, y, z, vx, vy, vz)
	if err != nil {
		return fmt.Errorf("insert player-player-action event: %w", err)
	}
	return nil
}

func (s *EventService) InsertTeamBonus(ctx context.Context, ev *models.Event, bonus int32) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_team_bonus (event_time, server_id, map, team, code, bonus)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.Time, ev.ServerID, ev.Map, ev.Team, ev.ActionCode, bonus)
	if err != nil {
		return fmt.Errorf("insert team-bonus event: %w", err)
	}
	return nil
}

func (s *EventService) InsertWorldAction(ctx context.Context, ev *models.Event, bonus int32) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO events_world_action (event_time, server_id, map, code, bonus)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.Time, ev.ServerID, ev.Map, ev.ActionCode, bonus)
	if err != nil {
		return fmt.Errorf("insert world-action event: %w", err)
	}
	return nil
}

// CountFragsAsKiller is the games-played proxy of the confidence
// model.
func (s *EventService) CountFragsAsKiller(ctx context.Context, playerID int32) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM events_frag WHERE killer_id = $1`, playerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count frags for player %d: %w", playerID, err)
	}
	return n, nil
}

// RecentEntryPlayers returns the distinct players with an entry event
// on a server since the given time: the round participants.
func (s *EventService) RecentEntryPlayers(ctx context.Context, serverID int32, since time.Time) ([]int32, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT player_id FROM events_entry
		WHERE server_id = $1 AND event_time >= $2`, serverID, since)
	if err != nil {
		return nil, fmt.Errorf("recent entries for server %d: %w", serverID, err)
	}
	defer rows.Close()

	var out []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entry player: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountRecentTeamkills counts a player's teamkills since the given
// time, used for the clean-round bonus.
func (s *EventService) CountRecentTeamkills(ctx context.Context, playerID int32, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM events_teamkill
		WHERE killer_id = $1 AND event_time >= $2`, playerID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count teamkills for player %d: %w", playerID, err)
	}
	return n, nil
}
