package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

// ServerStats turns every event into a counter delta for the server
// row, keeps the live player count in memory, and emits a synthetic
// stats update to registered subscribers and the publisher.
type ServerStats struct {
	servers   ServerStore
	publisher Publisher
	logger    *zap.SugaredLogger
	clock     func() time.Time

	mu         sync.Mutex
	actPlayers map[int32]int32
	maxPlayers map[int32]int32
	fireStream map[int32]bool

	cbMu      sync.RWMutex
	callbacks []func(*models.StatsUpdate)
}

// NewServerStats builds the handler. publisher may be nil; live
// publishing is then disabled while row updates and callbacks still
// run.
func NewServerStats(servers ServerStore, publisher Publisher, logger *zap.SugaredLogger) *ServerStats {
	return &ServerStats{
		servers:    servers,
		publisher:  publisher,
		logger:     logger,
		clock:      time.Now,
		actPlayers: make(map[int32]int32),
		maxPlayers: make(map[int32]int32),
		fireStream: make(map[int32]bool),
	}
}

// Subscribe registers a callback invoked for every emitted update.
// Callbacks are isolated: one panicking subscriber does not stop the
// rest.
func (h *ServerStats) Subscribe(fn func(*models.StatsUpdate)) {
	h.cbMu.Lock()
	h.callbacks = append(h.callbacks, fn)
	h.cbMu.Unlock()
}

// ActivePlayers reports the tracked live player total across servers.
func (h *ServerStats) ActivePlayers() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var total int64
	for _, n := range h.actPlayers {
		total += int64(n)
	}
	return total
}

// ActivePlayersOn reports the tracked live player count for one server.
func (h *ServerStats) ActivePlayersOn(serverID int32) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(h.actPlayers[serverID])
}

// Handle computes and applies the delta for one event. A zero delta is
// a no-op.
func (h *ServerStats) Handle(ctx context.Context, ev *models.Event) error {
	delta := h.delta(ev)
	if delta.IsZero() {
		return nil
	}

	if err := h.servers.Apply(ctx, ev.ServerID, delta); err != nil {
		return fmt.Errorf("server stats for %d: %w", ev.ServerID, err)
	}

	update := &models.StatsUpdate{
		ID:       uuid.NewString(),
		ServerID: ev.ServerID,
		Map:      ev.Map,
		Time:     ev.Time,
		Delta:    delta,
	}
	h.notify(update)

	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, update); err != nil {
			h.logger.Warnw("live stats publish failed", "serverId", ev.ServerID, "error", err)
		}
	}
	return nil
}

func (h *ServerStats) notify(update *models.StatsUpdate) {
	h.cbMu.RLock()
	callbacks := h.callbacks
	h.cbMu.RUnlock()

	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					h.logger.Errorw("stats subscriber panicked", "panic", r)
				}
			}()
			fn(update)
		}()
	}
}

func (h *ServerStats) delta(ev *models.Event) *models.ServerStatsDelta {
	d := &models.ServerStatsDelta{}

	switch ev.Kind {
	case models.EventPlayerKill:
		d.Kills, d.MapKills = 1, 1
		if ev.Headshot {
			d.Headshots, d.MapHeadshots = 1, 1
		}
		h.mu.Lock()
		estimate := !h.fireStream[ev.ServerID]
		h.mu.Unlock()
		if estimate {
			shots := shotsPerKill(ev.Weapon)
			addTeamFire(d, ev.Actor.Team, shots, 1)
		}

	case models.EventPlayerSuicide:
		d.Suicides, d.MapSuicides = 1, 1

	case models.EventBombPlant:
		d.BombsPlanted, d.MapBombsPlanted = 1, 1

	case models.EventBombDefuse:
		d.BombsDefused, d.MapBombsDefused = 1, 1

	case models.EventTeamWin:
		switch ev.WinningTeam {
		case "CT", "COUNTER-TERRORIST":
			d.CtWins, d.MapCtWins = 1, 1
		case "T", "TERRORIST":
			d.TsWins, d.MapTsWins = 1, 1
		}

	case models.EventRoundEnd:
		d.Rounds, d.MapRounds = 1, 1

	case models.EventMapChange:
		d.MapChanges = 1
		now := h.clock().Unix()
		d.MapStarted = &now
		newMap := ev.Map
		d.ActMap = &newMap
		h.mu.Lock()
		h.fireStream[ev.ServerID] = false
		h.mu.Unlock()

	case models.EventPlayerConnect:
		d.Players = 1
		h.mu.Lock()
		h.actPlayers[ev.ServerID]++
		act := h.actPlayers[ev.ServerID]
		if act > h.maxPlayers[ev.ServerID] {
			h.maxPlayers[ev.ServerID] = act
		}
		maxP := h.maxPlayers[ev.ServerID]
		h.mu.Unlock()
		d.ActPlayers = &act
		d.MaxPlayers = &maxP

	case models.EventPlayerDisconnect:
		h.mu.Lock()
		if h.actPlayers[ev.ServerID] > 0 {
			h.actPlayers[ev.ServerID]--
		}
		act := h.actPlayers[ev.ServerID]
		h.mu.Unlock()
		d.ActPlayers = &act

	case models.EventWeaponFire:
		h.markFireStream(ev.ServerID)
		addTeamFire(d, actorTeam(ev), 1, 0)

	case models.EventWeaponHit:
		h.markFireStream(ev.ServerID)
		addTeamFire(d, actorTeam(ev), 0, 1)
	}

	return d
}

func (h *ServerStats) markFireStream(serverID int32) {
	h.mu.Lock()
	h.fireStream[serverID] = true
	h.mu.Unlock()
}

func actorTeam(ev *models.Event) string {
	if ev.Actor == nil {
		return ""
	}
	return ev.Actor.Team
}

func addTeamFire(d *models.ServerStatsDelta, team string, shots, hits int64) {
	switch team {
	case "CT", "COUNTER-TERRORIST":
		d.CtShots += shots
		d.CtHits += hits
		d.MapCtShots += shots
		d.MapCtHits += hits
	case "T", "TERRORIST":
		d.TsShots += shots
		d.TsHits += hits
		d.MapTsShots += shots
		d.MapTsHits += hits
	}
}

// shotsPerKill estimates shots fired per kill when the server emits no
// fire/hit stream, by rough weapon class.
func shotsPerKill(weapon string) int64 {
	switch weapon {
	case "awp", "scout", "g3sg1", "sg550":
		return 1
	case "knife", "hegrenade", "grenade", "smokegrenade", "flashbang":
		return 1
	case "ak47", "m4a1", "aug", "sg552", "galil", "famas",
		"mp5navy", "tmp", "p90", "mac10", "ump45", "m249":
		return 3
	case "deagle", "usp", "p228", "elite", "fiveseven":
		return 4
	case "glock":
		return 5
	}
	return 3
}
