package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

// Persister appends one event row per event before any handler runs.
// Frag rows are the exception: the weapon handler books those together
// with the catalog upsert, so a kill lands in storage exactly once.
// Round/map lifecycle, assists, the weapon stream and synthetic stats
// updates write no rows at all.
type Persister struct {
	events  EventStore
	actions *Action
	logger  *zap.SugaredLogger
}

func NewPersister(events EventStore, actions *Action, logger *zap.SugaredLogger) *Persister {
	return &Persister{events: events, actions: actions, logger: logger}
}

// Persist writes the storage row for one resolved event.
func (p *Persister) Persist(ctx context.Context, game string, ev *models.Event) error {
	var err error
	switch ev.Kind {
	case models.EventPlayerConnect:
		err = p.events.InsertConnect(ctx, ev)
	case models.EventPlayerDisconnect:
		err = p.events.InsertDisconnect(ctx, ev)
	case models.EventPlayerEntry:
		err = p.events.InsertEntry(ctx, ev)
	case models.EventPlayerChangeTeam:
		err = p.events.InsertChangeTeam(ctx, ev)
	case models.EventPlayerChangeRole:
		err = p.events.InsertChangeRole(ctx, ev)
	case models.EventPlayerChangeName:
		err = p.events.InsertChangeName(ctx, ev)
	case models.EventPlayerSuicide:
		err = p.events.InsertSuicide(ctx, ev)
	case models.EventPlayerTeamkill:
		err = p.events.InsertTeamkill(ctx, ev)
	case models.EventChat:
		err = p.events.InsertChat(ctx, ev)
	case models.EventActionPlayer, models.EventActionPlayerPlayer,
		models.EventActionTeam, models.EventActionWorld:
		err = p.actions.Persist(ctx, game, ev)
	default:
		if ev.Kind.IsObjective() {
			err = p.actions.Persist(ctx, game, ev)
		}
	}
	if err != nil {
		return fmt.Errorf("persist %s: %w", ev.Kind, err)
	}
	return nil
}
