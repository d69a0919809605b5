package models

import (
	"fmt"
	"time"
)

// EventKind discriminates the event union. Handlers switch on it.
type EventKind string

const (
	EventPlayerConnect    EventKind = "PLAYER_CONNECT"
	EventPlayerDisconnect EventKind = "PLAYER_DISCONNECT"
	EventPlayerEntry      EventKind = "PLAYER_ENTRY"
	EventPlayerChangeTeam EventKind = "PLAYER_CHANGE_TEAM"
	EventPlayerChangeRole EventKind = "PLAYER_CHANGE_ROLE"
	EventPlayerChangeName EventKind = "PLAYER_CHANGE_NAME"
	EventPlayerKill       EventKind = "PLAYER_KILL"
	EventPlayerSuicide    EventKind = "PLAYER_SUICIDE"
	EventPlayerTeamkill   EventKind = "PLAYER_TEAMKILL"
	EventPlayerKillAssist EventKind = "PLAYER_KILL_ASSIST"
	EventChat             EventKind = "CHAT"

	EventActionPlayer       EventKind = "ACTION_PLAYER"
	EventActionPlayerPlayer EventKind = "ACTION_PLAYER_PLAYER"
	EventActionTeam         EventKind = "ACTION_TEAM"
	EventActionWorld        EventKind = "ACTION_WORLD"

	EventRoundStart EventKind = "ROUND_START"
	EventRoundEnd   EventKind = "ROUND_END"
	EventTeamWin    EventKind = "TEAM_WIN"
	EventMapChange  EventKind = "MAP_CHANGE"

	EventBombPlant           EventKind = "BOMB_PLANT"
	EventBombDefuse          EventKind = "BOMB_DEFUSE"
	EventBombExplode         EventKind = "BOMB_EXPLODE"
	EventHostageRescue       EventKind = "HOSTAGE_RESCUE"
	EventHostageTouch        EventKind = "HOSTAGE_TOUCH"
	EventFlagCapture         EventKind = "FLAG_CAPTURE"
	EventFlagDefend          EventKind = "FLAG_DEFEND"
	EventFlagPickup          EventKind = "FLAG_PICKUP"
	EventFlagDrop            EventKind = "FLAG_DROP"
	EventControlPointCapture EventKind = "CONTROL_POINT_CAPTURE"
	EventControlPointDefend  EventKind = "CONTROL_POINT_DEFEND"

	EventWeaponFire EventKind = "WEAPON_FIRE"
	EventWeaponHit  EventKind = "WEAPON_HIT"

	EventServerStatsUpdate EventKind = "SERVER_STATS_UPDATE"
)

// IsObjective reports whether the kind belongs to the objective family
// scored by the match handler.
func (k EventKind) IsObjective() bool {
	switch k {
	case EventBombPlant, EventBombDefuse, EventBombExplode,
		EventHostageRescue, EventHostageTouch,
		EventFlagCapture, EventFlagDefend, EventFlagPickup, EventFlagDrop,
		EventControlPointCapture, EventControlPointDefend:
		return true
	}
	return false
}

// Position is a world coordinate attached to kill and action lines.
type Position struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

// PlayerMeta identifies one player token of a log line. SteamID is the
// raw identifier as logged; UniqueID and PlayerID are filled in by the
// identity resolver before handlers run.
type PlayerMeta struct {
	Name     string `json:"name"`
	Slot     int32  `json:"slot"`
	SteamID  string `json:"steam_id"`
	UniqueID string `json:"unique_id,omitempty"`
	Team     string `json:"team,omitempty"`
	Bot      bool   `json:"bot,omitempty"`
	PlayerID int32  `json:"player_id,omitempty"`
}

// Event is the tagged union flowing through the pipeline. Kind selects
// which of the optional fields are meaningful; Actor/Target carry the
// one or two player tokens of the underlying log line.
type Event struct {
	Kind     EventKind `json:"kind"`
	Time     time.Time `json:"time"`
	ServerID int32     `json:"server_id"`
	Map      string    `json:"map,omitempty"`

	Actor  *PlayerMeta `json:"actor,omitempty"`
	Target *PlayerMeta `json:"target,omitempty"`

	// Kill family
	Weapon    string    `json:"weapon,omitempty"`
	Headshot  bool      `json:"headshot,omitempty"`
	ActorPos  *Position `json:"actor_pos,omitempty"`
	TargetPos *Position `json:"target_pos,omitempty"`
	Damage    int32     `json:"damage,omitempty"`

	// Chat
	Message string `json:"message,omitempty"`
	TeamSay bool   `json:"team_say,omitempty"`
	Dead    bool   `json:"dead,omitempty"`

	// Connect / disconnect
	Address string `json:"address,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// Change events
	NewName string `json:"new_name,omitempty"`
	NewTeam string `json:"new_team,omitempty"`
	NewRole string `json:"new_role,omitempty"`

	// Action family and objectives
	ActionCode string `json:"action_code,omitempty"`
	Bonus      int32  `json:"bonus,omitempty"`
	Team       string `json:"team,omitempty"`

	// Round / map lifecycle
	WinningTeam   string `json:"winning_team,omitempty"`
	RoundDuration int32  `json:"round_duration,omitempty"`
	PreviousMap   string `json:"previous_map,omitempty"`

	// Synthetic stats update
	Stats *ServerStatsDelta `json:"stats,omitempty"`
}

// ServerStatsDelta carries per-event server counter changes. Integer
// fields are increments; pointer fields are assignments. A zero value
// means "no change" for both.
type ServerStatsDelta struct {
	Kills        int64 `json:"kills,omitempty"`
	Rounds       int64 `json:"rounds,omitempty"`
	Suicides     int64 `json:"suicides,omitempty"`
	Headshots    int64 `json:"headshots,omitempty"`
	BombsPlanted int64 `json:"bombs_planted,omitempty"`
	BombsDefused int64 `json:"bombs_defused,omitempty"`
	CtWins       int64 `json:"ct_wins,omitempty"`
	TsWins       int64 `json:"ts_wins,omitempty"`
	CtShots      int64 `json:"ct_shots,omitempty"`
	CtHits       int64 `json:"ct_hits,omitempty"`
	TsShots      int64 `json:"ts_shots,omitempty"`
	TsHits       int64 `json:"ts_hits,omitempty"`
	Players      int64 `json:"players,omitempty"`

	MapKills        int64 `json:"map_kills,omitempty"`
	MapRounds       int64 `json:"map_rounds,omitempty"`
	MapSuicides     int64 `json:"map_suicides,omitempty"`
	MapHeadshots    int64 `json:"map_headshots,omitempty"`
	MapBombsPlanted int64 `json:"map_bombs_planted,omitempty"`
	MapBombsDefused int64 `json:"map_bombs_defused,omitempty"`
	MapCtWins       int64 `json:"map_ct_wins,omitempty"`
	MapTsWins       int64 `json:"map_ts_wins,omitempty"`
	MapCtShots      int64 `json:"map_ct_shots,omitempty"`
	MapCtHits       int64 `json:"map_ct_hits,omitempty"`
	MapTsShots      int64 `json:"map_ts_shots,omitempty"`
	MapTsHits       int64 `json:"map_ts_hits,omitempty"`

	ActMap     *string `json:"act_map,omitempty"`
	ActPlayers *int32  `json:"act_players,omitempty"`
	MaxPlayers *int32  `json:"max_players,omitempty"`
	MapStarted *int64  `json:"map_started,omitempty"`
	MapChanges int64   `json:"map_changes,omitempty"`
}

// IsZero reports whether the delta changes nothing.
func (d *ServerStatsDelta) IsZero() bool {
	if d == nil {
		return true
	}
	return *d == (ServerStatsDelta{})
}

// StatsUpdate is the payload published to live-stats subscribers for
// every SERVER_STATS_UPDATE. At-least-once delivery.
type StatsUpdate struct {
	ID       string            `json:"id"`
	ServerID int32             `json:"server_id"`
	Map      string            `json:"map,omitempty"`
	Time     time.Time         `json:"time"`
	Delta    *ServerStatsDelta `json:"delta"`
}

// JoinAddr formats the (ip, port) pair the way the registry and the
// rate limiter key their maps.
func JoinAddr(ip string, port int32) string {
	return fmt.Sprintf("%s:%d", ip, port)
}
