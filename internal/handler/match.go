package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

// objectivePoints is the per-occurrence contribution of an objective
// event to the actor's round stats.
var objectivePoints = map[models.EventKind]int32{
	models.EventBombPlant:           3,
	models.EventBombDefuse:          3,
	models.EventHostageRescue:       2,
	models.EventHostageTouch:        1,
	models.EventFlagCapture:         5,
	models.EventFlagDefend:          3,
	models.EventFlagPickup:          1,
	models.EventFlagDrop:            0,
	models.EventControlPointCapture: 4,
	models.EventControlPointDefend:  2,
}

// clutchKillThreshold: a member of the winning team with this many
// kills in the round is credited a clutch win.
const clutchKillThreshold = 3

// matchState is the in-progress match on one server.
type matchState struct {
	roundStart  time.Time
	duration    int32
	totalRounds int32
	scores      map[string]int32
	lastWin     string

	stats     map[int32]*models.PlayerRoundStats
	seenOrder []int32
	teams     map[int32]string
	roundKill map[int32]int32

	kills     int64
	headshots int64
}

func newMatchState(at time.Time) *matchState {
	return &matchState{
		roundStart: at,
		scores:     make(map[string]int32),
		stats:      make(map[int32]*models.PlayerRoundStats),
		teams:      make(map[int32]string),
		roundKill:  make(map[int32]int32),
	}
}

// player returns the stat bucket for a participant, creating it and
// recording first-seen order on first touch.
func (m *matchState) player(id int32) *models.PlayerRoundStats {
	if s, ok := m.stats[id]; ok {
		return s
	}
	s := &models.PlayerRoundStats{}
	m.stats[id] = s
	m.seenOrder = append(m.seenOrder, id)
	return s
}

// Match tracks match progress per server: round boundaries, team
// scores, per-player round stats and objective points, and writes the
// player-history snapshot when the map rolls over.
type Match struct {
	matches MatchStore
	servers ServerStore
	logger  *zap.SugaredLogger

	mu    sync.Mutex
	state map[int32]*matchState
}

func NewMatch(matches MatchStore, servers ServerStore, logger *zap.SugaredLogger) *Match {
	return &Match{
		matches: matches,
		servers: servers,
		logger:  logger,
		state:   make(map[int32]*matchState),
	}
}

// Handle feeds one event into the server's match state. ROUND_END
// events are annotated in place with the computed duration and winning
// team before returning, so downstream rating logic sees both.
func (h *Match) Handle(ctx context.Context, game string, ev *models.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch ev.Kind {
	case models.EventRoundStart:
		st, ok := h.state[ev.ServerID]
		if !ok {
			h.state[ev.ServerID] = newMatchState(ev.Time)
			return nil
		}
		st.roundStart = ev.Time
		return nil
	case models.EventMapChange:
		return h.mapChange(ctx, game, ev)
	}

	st := h.lazyState(ev)

	switch ev.Kind {
	case models.EventPlayerKill:
		killer := st.player(ev.Actor.PlayerID)
		killer.Kills++
		if ev.Headshot {
			killer.Headshots++
			st.headshots++
		}
		st.player(ev.Target.PlayerID).Deaths++
		st.roundKill[ev.Actor.PlayerID]++
		st.teams[ev.Actor.PlayerID] = ev.Actor.Team
		st.teams[ev.Target.PlayerID] = ev.Target.Team
		st.kills++

	case models.EventPlayerSuicide:
		s := st.player(ev.Actor.PlayerID)
		s.Suicides++
		s.Deaths++

	case models.EventPlayerTeamkill:
		st.player(ev.Actor.PlayerID).Teamkills++
		st.player(ev.Target.PlayerID).Deaths++
		st.teams[ev.Actor.PlayerID] = ev.Actor.Team

	case models.EventPlayerKillAssist:
		st.player(ev.Actor.PlayerID).Assists++

	case models.EventWeaponFire:
		if ev.Actor != nil && ev.Actor.PlayerID != 0 {
			st.player(ev.Actor.PlayerID).Shots++
		}

	case models.EventWeaponHit:
		if ev.Actor != nil && ev.Actor.PlayerID != 0 {
			s := st.player(ev.Actor.PlayerID)
			s.Hits++
			s.Damage += ev.Damage
		}

	case models.EventTeamWin:
		st.totalRounds++
		st.scores[ev.WinningTeam]++
		st.lastWin = ev.WinningTeam

	case models.EventRoundEnd:
		h.roundEnd(st, ev)

	default:
		if pts, ok := objectivePoints[ev.Kind]; ok && ev.Actor != nil && ev.Actor.PlayerID != 0 {
			s := st.player(ev.Actor.PlayerID)
			s.ObjectiveScore += pts
			st.teams[ev.Actor.PlayerID] = ev.Actor.Team
		}
	}
	return nil
}

// lazyState returns the server's match state, creating one when events
// arrive before any ROUND_START (mid-map daemon restart).
func (h *Match) lazyState(ev *models.Event) *matchState {
	st, ok := h.state[ev.ServerID]
	if !ok {
		h.logger.Warnw("match state missing, initializing mid-round",
			"serverId", ev.ServerID, "kind", ev.Kind)
		st = newMatchState(ev.Time)
		h.state[ev.ServerID] = st
	}
	return st
}

func (h *Match) roundEnd(st *matchState, ev *models.Event) {
	d := int32(ev.Time.Sub(st.roundStart).Seconds())
	if d < 0 {
		d = 0
	}
	st.totalRounds++
	st.duration += d

	if ev.WinningTeam == "" {
		if st.lastWin != "" {
			ev.WinningTeam = st.lastWin
		}
	}
	if ev.WinningTeam != "" && ev.WinningTeam != "DRAW" {
		st.scores[ev.WinningTeam]++
		for id, kills := range st.roundKill {
			if kills >= clutchKillThreshold && st.teams[id] == ev.WinningTeam {
				st.player(id).ClutchWins++
			}
		}
	}
	ev.RoundDuration = d

	st.roundKill = make(map[int32]int32)
	st.lastWin = ""
}

// mapChange finalizes the outgoing map and resets the server's per-map
// aggregates for the incoming one.
func (h *Match) mapChange(ctx context.Context, game string, ev *models.Event) error {
	st, ok := h.state[ev.ServerID]
	if ok && ev.PreviousMap != "" {
		if err := h.finalize(ctx, game, ev, st); err != nil {
			return err
		}
	}
	delete(h.state, ev.ServerID)

	if err := h.servers.ResetMapCounters(ctx, ev.ServerID, ev.Map, ev.Time.Unix()); err != nil {
		return fmt.Errorf("map rollover for server %d: %w", ev.ServerID, err)
	}
	return nil
}

// finalize writes one player_history row per participant, crowns the
// MVP (best score, first-seen tie-break) and bumps the map counter.
func (h *Match) finalize(ctx context.Context, game string, ev *models.Event, st *matchState) error {
	if len(st.seenOrder) == 0 && st.kills == 0 {
		return nil
	}

	var mvpID int32
	var mvpScore int32
	for i, id := range st.seenOrder {
		if score := st.stats[id].MVPScore(); i == 0 || score > mvpScore {
			mvpID, mvpScore = id, score
		}
	}

	histories := make([]*models.PlayerHistory, 0, len(st.seenOrder))
	for _, id := range st.seenOrder {
		s := st.stats[id]
		histories = append(histories, &models.PlayerHistory{
			PlayerID:       id,
			ServerID:       ev.ServerID,
			Game:           game,
			Map:            ev.PreviousMap,
			EventTime:      ev.Time,
			Kills:          s.Kills,
			Deaths:         s.Deaths,
			Assists:        s.Assists,
			Damage:         s.Damage,
			ObjectiveScore: s.ObjectiveScore,
			ClutchWins:     s.ClutchWins,
			Headshots:      s.Headshots,
			Shots:          s.Shots,
			Hits:           s.Hits,
			Suicides:       s.Suicides,
			Teamkills:      s.Teamkills,
			MVPScore:       s.MVPScore(),
			MVP:            id == mvpID,
		})
	}

	if err := h.matches.FinalizeMap(ctx, histories, game, ev.PreviousMap, st.kills, st.headshots); err != nil {
		return fmt.Errorf("finalize map %q on server %d: %w", ev.PreviousMap, ev.ServerID, err)
	}
	h.logger.Infow("map finalized",
		"serverId", ev.ServerID, "map", ev.PreviousMap,
		"participants", len(histories), "rounds", st.totalRounds, "kills", st.kills)
	return nil
}
