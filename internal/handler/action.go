package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

// Action persists the triggered-action event families, keeps the
// per-game action catalog counts current and pays out the configured
// skill rewards. Objective events route through here too so their rows
// and rewards follow the same catalog.
type Action struct {
	events  EventStore
	actions ActionStore
	players PlayerStore
	logger  *zap.SugaredLogger
}

func NewAction(events EventStore, actions ActionStore, players PlayerStore, logger *zap.SugaredLogger) *Action {
	return &Action{events: events, actions: actions, players: players, logger: logger}
}

// Persist writes the event row for an action-family or objective event
// and applies catalog bookkeeping. Unknown codes still produce a row
// with a zero bonus.
func (h *Action) Persist(ctx context.Context, game string, ev *models.Event) error {
	switch ev.Kind {
	case models.EventActionPlayer:
		return h.persistPlayer(ctx, game, ev)
	case models.EventActionPlayerPlayer:
		return h.persistPlayerPlayer(ctx, game, ev)
	case models.EventActionTeam:
		return h.persistTeam(ctx, game, ev)
	case models.EventActionWorld:
		return h.persistWorld(ctx, game, ev)
	}
	if ev.Kind.IsObjective() {
		if ev.Actor == nil {
			return h.persistWorld(ctx, game, ev)
		}
		return h.persistPlayer(ctx, game, ev)
	}
	return nil
}

func (h *Action) persistPlayer(ctx context.Context, game string, ev *models.Event) error {
	action, bonus, err := h.lookup(ctx, game, ev.ActionCode, "")
	if err != nil {
		return err
	}
	if err := h.events.InsertPlayerAction(ctx, ev, bonus); err != nil {
		return fmt.Errorf("player action %q: %w", ev.ActionCode, err)
	}
	return h.settle(ctx, ev, action, bonus)
}

func (h *Action) persistPlayerPlayer(ctx context.Context, game string, ev *models.Event) error {
	action, bonus, err := h.lookup(ctx, game, ev.ActionCode, "")
	if err != nil {
		return err
	}
	if err := h.events.InsertPlayerPlayerAction(ctx, ev, bonus); err != nil {
		return fmt.Errorf("player-player action %q: %w", ev.ActionCode, err)
	}
	return h.settle(ctx, ev, action, bonus)
}

func (h *Action) persistTeam(ctx context.Context, game string, ev *models.Event) error {
	action, _, err := h.lookup(ctx, game, ev.ActionCode, ev.Team)
	if err != nil {
		return err
	}
	var bonus int32
	if action != nil {
		bonus = action.RewardTeam
	}
	if err := h.events.InsertTeamBonus(ctx, ev, bonus); err != nil {
		return fmt.Errorf("team action %q: %w", ev.ActionCode, err)
	}
	if action != nil {
		if err := h.actions.IncrementCount(ctx, action.ID); err != nil {
			h.logger.Warnw("action count update failed", "action", ev.ActionCode, "error", err)
		}
	}
	return nil
}

func (h *Action) persistWorld(ctx context.Context, game string, ev *models.Event) error {
	action, bonus, err := h.lookup(ctx, game, ev.ActionCode, "")
	if err != nil {
		return err
	}
	if err := h.events.InsertWorldAction(ctx, ev, bonus); err != nil {
		return fmt.Errorf("world action %q: %w", ev.ActionCode, err)
	}
	if action != nil {
		if err := h.actions.IncrementCount(ctx, action.ID); err != nil {
			h.logger.Warnw("action count update failed", "action", ev.ActionCode, "error", err)
		}
	}
	return nil
}

// lookup resolves the catalog entry and the player-side reward. A miss
// is not an error; the event is still recorded with no bonus.
func (h *Action) lookup(ctx context.Context, game, code, team string) (*models.Action, int32, error) {
	if code == "" {
		return nil, 0, nil
	}
	action, ok, err := h.actions.Lookup(ctx, game, code, team)
	if err != nil {
		return nil, 0, fmt.Errorf("action lookup %q: %w", code, err)
	}
	if !ok {
		return nil, 0, nil
	}
	return action, action.RewardPlayer, nil
}

// settle bumps the catalog count and pays the actor's skill reward.
func (h *Action) settle(ctx context.Context, ev *models.Event, action *models.Action, bonus int32) error {
	if action == nil {
		return nil
	}
	if err := h.actions.IncrementCount(ctx, action.ID); err != nil {
		h.logger.Warnw("action count update failed", "action", action.Code, "error", err)
	}
	if bonus != 0 && ev.Actor != nil && ev.Actor.PlayerID != 0 {
		if err := h.players.AdjustSkill(ctx, ev.Actor.PlayerID, bonus, ev.Time.Unix()); err != nil {
			return fmt.Errorf("action reward for player %d: %w", ev.Actor.PlayerID, err)
		}
	}
	return nil
}
