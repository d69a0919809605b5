// Package handler implements the stateful event handlers of the
// pipeline: player stats, weapon stats, ratings, match state and
// per-server aggregates. Handlers receive narrow storage interfaces by
// construction and never talk to each other directly.
package handler

import (
	"context"
	"time"

	"github.com/hlstatsd/hlstatsd/internal/models"
	"github.com/hlstatsd/hlstatsd/internal/store"
)

// PlayerStore is the slice of the player service the handlers mutate.
type PlayerStore interface {
	Get(ctx context.Context, id int32) (*models.Player, error)
	ApplyKillKiller(ctx context.Context, id, newSkill int32, headshot bool, now int64) error
	ApplyKillVictim(ctx context.Context, id, newSkill int32, now int64) error
	ApplySuicide(ctx context.Context, id int32, penalty int32, now int64) error
	ApplyTeamkillKiller(ctx context.Context, id int32, penalty int32, now int64) error
	ApplyTeamkillVictim(ctx context.Context, id int32, now int64) error
	AdjustSkill(ctx context.Context, id int32, delta int32, now int64) error
	Touch(ctx context.Context, id int32, now int64) error
	Rename(ctx context.Context, id int32, name string, now int64) error
	AddConnectionTime(ctx context.Context, id int32, seconds int64) error
	AddShots(ctx context.Context, id int32, shots, hits int64) error
}

// WeaponStore serves skill multipliers from the weapon catalog.
type WeaponStore interface {
	Modifier(ctx context.Context, game, code string) (float64, error)
}

// FragStore books a cross-team kill atomically (frag row + weapon
// catalog upsert).
type FragStore interface {
	RecordFrag(ctx context.Context, frag *store.FragRecord) error
}

// EventStore appends event rows and answers the aggregate queries the
// ranking handler needs.
type EventStore interface {
	InsertConnect(ctx context.Context, ev *models.Event) error
	InsertDisconnect(ctx context.Context, ev *models.Event) error
	InsertEntry(ctx context.Context, ev *models.Event) error
	InsertChangeTeam(ctx context.Context, ev *models.Event) error
	InsertChangeRole(ctx context.Context, ev *models.Event) error
	InsertChangeName(ctx context.Context, ev *models.Event) error
	InsertSuicide(ctx context.Context, ev *models.Event) error
	InsertTeamkill(ctx context.Context, ev *models.Event) error
	InsertChat(ctx context.Context, ev *models.Event) error
	InsertPlayerAction(ctx context.Context, ev *models.Event, bonus int32) error
	InsertPlayerPlayerAction(ctx context.Context, ev *models.Event, bonus int32) error
	InsertTeamBonus(ctx context.Context, ev *models.Event, bonus int32) error
	InsertWorldAction(ctx context.Context, ev *models.Event, bonus int32) error
	CountFragsAsKiller(ctx context.Context, playerID int32) (int64, error)
	RecentEntryPlayers(ctx context.Context, serverID int32, since time.Time) ([]int32, error)
	CountRecentTeamkills(ctx context.Context, playerID int32, since time.Time) (int64, error)
}

// ServerStore applies counter deltas and map rollovers to server rows.
type ServerStore interface {
	Apply(ctx context.Context, id int32, delta *models.ServerStatsDelta) error
	ResetMapCounters(ctx context.Context, id int32, newMap string, startedAt int64) error
}

// ActionStore serves the per-game action catalog.
type ActionStore interface {
	Lookup(ctx context.Context, game, code, team string) (*models.Action, bool, error)
	IncrementCount(ctx context.Context, id int32) error
}

// MatchStore persists the end-of-map snapshot.
type MatchStore interface {
	FinalizeMap(ctx context.Context, histories []*models.PlayerHistory, game, mapName string, kills, headshots int64) error
}

// Publisher pushes live stats updates downstream. At-least-once.
type Publisher interface {
	Publish(ctx context.Context, update *models.StatsUpdate) error
}
