package models

import "time"

// Server is a registered game server and its aggregate counters.
// The Map* family mirrors the global counters but is reset on every
// map change; the globals only ever grow.
type Server struct {
	ID      int32  `json:"id"`
	Address string `json:"address"`
	Port    int32  `json:"port"`
	Name    string `json:"name"`
	Game    string `json:"game"`

	Kills        int64 `json:"kills"`
	Rounds       int64 `json:"rounds"`
	Suicides     int64 `json:"suicides"`
	Headshots    int64 `json:"headshots"`
	BombsPlanted int64 `json:"bombs_planted"`
	BombsDefused int64 `json:"bombs_defused"`
	CtWins       int64 `json:"ct_wins"`
	TsWins       int64 `json:"ts_wins"`
	CtShots      int64 `json:"ct_shots"`
	CtHits       int64 `json:"ct_hits"`
	TsShots      int64 `json:"ts_shots"`
	TsHits       int64 `json:"ts_hits"`
	Players      int64 `json:"players"`

	MapKills        int64 `json:"map_kills"`
	MapRounds       int64 `json:"map_rounds"`
	MapSuicides     int64 `json:"map_suicides"`
	MapHeadshots    int64 `json:"map_headshots"`
	MapBombsPlanted int64 `json:"map_bombs_planted"`
	MapBombsDefused int64 `json:"map_bombs_defused"`
	MapCtWins       int64 `json:"map_ct_wins"`
	MapTsWins       int64 `json:"map_ts_wins"`
	MapCtShots      int64 `json:"map_ct_shots"`
	MapCtHits       int64 `json:"map_ct_hits"`
	MapTsShots      int64 `json:"map_ts_shots"`
	MapTsHits       int64 `json:"map_ts_hits"`

	ActMap     string `json:"act_map"`
	ActPlayers int32  `json:"act_players"`
	MaxPlayers int32  `json:"max_players"`
	MapStarted int64  `json:"map_started"`
	MapChanges int64  `json:"map_changes"`
	LastEvent  int64  `json:"last_event"`
}

// Addr returns the "ip:port" form used as the registry cache key.
func (s *Server) Addr() string {
	return JoinAddr(s.Address, s.Port)
}

// Player holds the persistent per-player stat row. Skill is always
// kept within [MinSkill, MaxSkill].
type Player struct {
	ID              int32  `json:"id"`
	Game            string `json:"game"`
	LastName        string `json:"last_name"`
	Skill           int32  `json:"skill"`
	Kills           int64  `json:"kills"`
	Deaths          int64  `json:"deaths"`
	Suicides        int64  `json:"suicides"`
	Teamkills       int64  `json:"teamkills"`
	Headshots       int64  `json:"headshots"`
	Shots           int64  `json:"shots"`
	Hits            int64  `json:"hits"`
	KillStreak      int32  `json:"kill_streak"`
	DeathStreak     int32  `json:"death_streak"`
	ConnectionTime  int64  `json:"connection_time"`
	HideRanking     bool   `json:"hide_ranking"`
	LastEvent       int64  `json:"last_event"`
	LastSkillChange int64  `json:"last_skill_change"`
}

// Skill bounds and the default rating assigned to new players.
const (
	MinSkill     int32 = 100
	MaxSkill     int32 = 3000
	DefaultSkill int32 = 1000
)

// ClampSkill forces a rating into the legal band.
func ClampSkill(v int32) int32 {
	if v < MinSkill {
		return MinSkill
	}
	if v > MaxSkill {
		return MaxSkill
	}
	return v
}

// PlayerUniqueID links a canonical identity to a player row. The
// (UniqueID, Game) pair is unique.
type PlayerUniqueID struct {
	PlayerID int32  `json:"player_id"`
	UniqueID string `json:"unique_id"`
	Game     string `json:"game"`
}

// Weapon is a per-game catalog row. Modifier scales kill rating.
type Weapon struct {
	ID        int32   `json:"id"`
	Game      string  `json:"game"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Modifier  float64 `json:"modifier"`
	Kills     int64   `json:"kills"`
	Headshots int64   `json:"headshots"`
}

// Action is a per-game catalog entry for triggered action codes.
// Reward values are skill points granted on occurrence.
type Action struct {
	ID                     int32  `json:"id"`
	Game                   string `json:"game"`
	Code                   string `json:"code"`
	Team                   string `json:"team"`
	Description            string `json:"description"`
	ForPlayerActions       bool   `json:"for_player_actions"`
	ForPlayerPlayerActions bool   `json:"for_player_player_actions"`
	ForTeamActions         bool   `json:"for_team_actions"`
	ForWorldActions        bool   `json:"for_world_actions"`
	RewardPlayer           int32  `json:"reward_player"`
	RewardTeam             int32  `json:"reward_team"`
	Count                  int64  `json:"count"`
}

// MapCount aggregates kills/headshots per (game, map).
type MapCount struct {
	Game      string `json:"game"`
	Map       string `json:"map"`
	Kills     int64  `json:"kills"`
	Headshots int64  `json:"headshots"`
}

// PlayerRoundStats accumulates a player's contribution to the match
// currently in progress on one server.
type PlayerRoundStats struct {
	Kills          int32 `json:"kills"`
	Deaths         int32 `json:"deaths"`
	Assists        int32 `json:"assists"`
	Damage         int32 `json:"damage"`
	ObjectiveScore int32 `json:"objective_score"`
	ClutchWins     int32 `json:"clutch_wins"`
	Headshots      int32 `json:"headshots"`
	Shots          int32 `json:"shots"`
	Hits           int32 `json:"hits"`
	Suicides       int32 `json:"suicides"`
	Teamkills      int32 `json:"teamkills"`
}

// MVPScore is the composite used to pick the round MVP on map
// finalization.
func (s *PlayerRoundStats) MVPScore() int32 {
	return 2*s.Kills - s.Deaths + s.Assists + 3*s.ObjectiveScore + 5*s.ClutchWins
}

// PlayerHistory is the per-map snapshot written for each participant
// when a map is finalized.
type PlayerHistory struct {
	PlayerID       int32     `json:"player_id"`
	ServerID       int32     `json:"server_id"`
	Game           string    `json:"game"`
	Map            string    `json:"map"`
	EventTime      time.Time `json:"event_time"`
	Kills          int32     `json:"kills"`
	Deaths         int32     `json:"deaths"`
	Assists        int32     `json:"assists"`
	Damage         int32     `json:"damage"`
	ObjectiveScore int32     `json:"objective_score"`
	ClutchWins     int32     `json:"clutch_wins"`
	Headshots      int32     `json:"headshots"`
	Shots          int32     `json:"shots"`
	Hits           int32     `json:"hits"`
	Suicides       int32     `json:"suicides"`
	Teamkills      int32     `json:"teamkills"`
	MVPScore       int32     `json:"mvp_score"`
	MVP            bool      `json:"mvp"`
}

// RatingSnapshot is the confidence-model view of a player's rating.
type RatingSnapshot struct {
	Rating      int32   `json:"rating"`
	Confidence  int32   `json:"confidence"`
	Volatility  float64 `json:"volatility"`
	GamesPlayed int64   `json:"games_played"`
}
