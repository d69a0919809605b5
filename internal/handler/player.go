package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/identity"
	"github.com/hlstatsd/hlstatsd/internal/models"
)

// Player maintains the persistent per-player stat rows. It owns the
// kills/deaths/streak counters and applies the rating deltas computed
// by the Ranking handler; killer-side updates always run before victim
// ones so a killer failure aborts without touching the victim.
type Player struct {
	players PlayerStore
	ranking *Ranking
	logger  *zap.SugaredLogger
	clock   func() time.Time

	mu       sync.Mutex
	sessions map[sessionKey]time.Time
}

type sessionKey struct {
	serverID int32
	playerID int32
}

func NewPlayer(players PlayerStore, ranking *Ranking, logger *zap.SugaredLogger) *Player {
	return &Player{
		players:  players,
		ranking:  ranking,
		logger:   logger,
		clock:    time.Now,
		sessions: make(map[sessionKey]time.Time),
	}
}

// Handle dispatches one event to the matching player mutation.
func (h *Player) Handle(ctx context.Context, game string, ev *models.Event) error {
	switch ev.Kind {
	case models.EventPlayerKill:
		return h.handleKill(ctx, game, ev)
	case models.EventPlayerSuicide:
		return h.handleSuicide(ctx, ev)
	case models.EventPlayerTeamkill:
		return h.handleTeamkill(ctx, ev)
	case models.EventPlayerConnect:
		return h.handleConnect(ctx, ev)
	case models.EventPlayerDisconnect:
		return h.handleDisconnect(ctx, ev)
	case models.EventPlayerEntry, models.EventPlayerChangeTeam, models.EventPlayerChangeRole:
		return h.touch(ctx, ev)
	case models.EventPlayerChangeName:
		return h.handleChangeName(ctx, ev)
	case models.EventWeaponFire:
		return h.addShots(ctx, ev, 1, 0)
	case models.EventWeaponHit:
		return h.addShots(ctx, ev, 0, 1)
	}
	return nil
}

func (h *Player) handleKill(ctx context.Context, game string, ev *models.Event) error {
	outcome, err := h.ranking.EvaluateKill(ctx, game,
		ev.Actor.PlayerID, ev.Target.PlayerID, ev.Weapon, ev.Headshot)
	if err != nil {
		return err
	}

	now := ev.Time.Unix()
	if err := h.players.ApplyKillKiller(ctx, ev.Actor.PlayerID, outcome.KillerSkill, ev.Headshot, now); err != nil {
		return fmt.Errorf("kill killer update %d: %w", ev.Actor.PlayerID, err)
	}
	if err := h.players.ApplyKillVictim(ctx, ev.Target.PlayerID, outcome.VictimSkill, now); err != nil {
		return fmt.Errorf("kill victim update %d: %w", ev.Target.PlayerID, err)
	}
	return nil
}

func (h *Player) handleSuicide(ctx context.Context, ev *models.Event) error {
	if err := h.players.ApplySuicide(ctx, ev.Actor.PlayerID, suicidePenalty, ev.Time.Unix()); err != nil {
		return fmt.Errorf("suicide update %d: %w", ev.Actor.PlayerID, err)
	}
	return nil
}

func (h *Player) handleTeamkill(ctx context.Context, ev *models.Event) error {
	now := ev.Time.Unix()
	if err := h.players.ApplyTeamkillKiller(ctx, ev.Actor.PlayerID, teamkillPenalty, now); err != nil {
		return fmt.Errorf("teamkill killer update %d: %w", ev.Actor.PlayerID, err)
	}
	if err := h.players.ApplyTeamkillVictim(ctx, ev.Target.PlayerID, now); err != nil {
		return fmt.Errorf("teamkill victim update %d: %w", ev.Target.PlayerID, err)
	}
	return nil
}

func (h *Player) handleConnect(ctx context.Context, ev *models.Event) error {
	h.mu.Lock()
	h.sessions[sessionKey{ev.ServerID, ev.Actor.PlayerID}] = ev.Time
	h.mu.Unlock()

	if err := h.players.Touch(ctx, ev.Actor.PlayerID, ev.Time.Unix()); err != nil {
		h.logger.Warnw("connect touch failed", "playerId", ev.Actor.PlayerID, "error", err)
	}
	return nil
}

func (h *Player) handleDisconnect(ctx context.Context, ev *models.Event) error {
	key := sessionKey{ev.ServerID, ev.Actor.PlayerID}
	h.mu.Lock()
	started, ok := h.sessions[key]
	delete(h.sessions, key)
	h.mu.Unlock()

	if ok {
		if secs := int64(ev.Time.Sub(started).Seconds()); secs > 0 {
			if err := h.players.AddConnectionTime(ctx, ev.Actor.PlayerID, secs); err != nil {
				h.logger.Warnw("connection time update failed", "playerId", ev.Actor.PlayerID, "error", err)
			}
		}
	}
	if err := h.players.Touch(ctx, ev.Actor.PlayerID, ev.Time.Unix()); err != nil {
		h.logger.Warnw("disconnect touch failed", "playerId", ev.Actor.PlayerID, "error", err)
	}
	return nil
}

func (h *Player) touch(ctx context.Context, ev *models.Event) error {
	if err := h.players.Touch(ctx, ev.Actor.PlayerID, ev.Time.Unix()); err != nil {
		return fmt.Errorf("touch player %d: %w", ev.Actor.PlayerID, err)
	}
	return nil
}

func (h *Player) handleChangeName(ctx context.Context, ev *models.Event) error {
	name := identity.SanitizeName(ev.NewName)
	if err := h.players.Rename(ctx, ev.Actor.PlayerID, name, ev.Time.Unix()); err != nil {
		return fmt.Errorf("rename player %d: %w", ev.Actor.PlayerID, err)
	}
	return nil
}

func (h *Player) addShots(ctx context.Context, ev *models.Event, shots, hits int64) error {
	if ev.Actor == nil || ev.Actor.PlayerID == 0 {
		return nil
	}
	if err := h.players.AddShots(ctx, ev.Actor.PlayerID, shots, hits); err != nil {
		return fmt.Errorf("shot counters for player %d: %w", ev.Actor.PlayerID, err)
	}
	return nil
}
