package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
	"github.com/hlstatsd/hlstatsd/internal/store"
)

// Weapon books cross-team kills: one frag row plus the per-game weapon
// catalog upsert, committed together. Player counters belong to the
// Player handler, so a kill lands exactly once on each side.
type Weapon struct {
	frags  FragStore
	logger *zap.SugaredLogger
}

func NewWeapon(frags FragStore, logger *zap.SugaredLogger) *Weapon {
	return &Weapon{frags: frags, logger: logger}
}

// HandleKill records a PLAYER_KILL.
func (h *Weapon) HandleKill(ctx context.Context, game string, ev *models.Event) error {
	frag := &store.FragRecord{
		EventTime:  ev.Time,
		ServerID:   ev.ServerID,
		Map:        ev.Map,
		Game:       game,
		KillerID:   ev.Actor.PlayerID,
		VictimID:   ev.Target.PlayerID,
		Weapon:     ev.Weapon,
		Headshot:   ev.Headshot,
		KillerTeam: ev.Actor.Team,
		VictimTeam: ev.Target.Team,
		KillerPos:  ev.ActorPos,
		VictimPos:  ev.TargetPos,
	}
	if err := h.frags.RecordFrag(ctx, frag); err != nil {
		return fmt.Errorf("record frag %d->%d: %w", frag.KillerID, frag.VictimID, err)
	}
	return nil
}
