package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
	"github.com/hlstatsd/hlstatsd/internal/store"
)

// PlayerStore is the slice of the player service the resolver needs.
type PlayerStore interface {
	FindUniqueID(ctx context.Context, uniqueID, game string) (int32, bool, error)
	CreateWithUniqueID(ctx context.Context, name, game, uniqueID string) (*models.Player, error)
}

// Resolver maps canonical identities to player rows, creating them on
// first sight. Safe for concurrent use.
type Resolver struct {
	players PlayerStore
	logger  *zap.SugaredLogger
}

// NewResolver wires a resolver to its player store.
func NewResolver(players PlayerStore, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{players: players, logger: logger}
}

// Resolve canonicalizes steamID and returns the linked player ID,
// creating the player and unique-id rows when the identity has never
// been seen for this game. Two concurrent resolutions of the same
// identity end with exactly one player row: a unique-constraint
// violation on create is recovered by re-reading.
func (r *Resolver) Resolve(ctx context.Context, steamID, name, game string) (int32, error) {
	uniqueID, err := CanonicalID(steamID, name)
	if err != nil {
		return 0, err
	}
	return r.resolveCanonical(ctx, uniqueID, name, game)
}

func (r *Resolver) resolveCanonical(ctx context.Context, uniqueID, name, game string) (int32, error) {
	id, found, err := r.players.FindUniqueID(ctx, uniqueID, game)
	if err != nil {
		return 0, fmt.Errorf("lookup unique id %q: %w", uniqueID, err)
	}
	if found {
		return id, nil
	}

	displayName := SanitizeName(name)
	player, err := r.players.CreateWithUniqueID(ctx, displayName, game, uniqueID)
	if err == nil {
		r.logger.Infow("created player",
			"playerId", player.ID,
			"uniqueId", uniqueID,
			"game", game,
			"name", displayName,
		)
		return player.ID, nil
	}

	if !store.IsUniqueViolation(err) {
		return 0, fmt.Errorf("create player for %q: %w", uniqueID, err)
	}

	// Lost a creation race; the winner's row must be there now.
	id, found, err = r.players.FindUniqueID(ctx, uniqueID, game)
	if err != nil {
		return 0, fmt.Errorf("re-read unique id %q: %w", uniqueID, err)
	}
	if !found {
		return 0, fmt.Errorf("unique id %q missing after conflict", uniqueID)
	}
	return id, nil
}

// ResolveMeta fills the canonical identity and player ID into a parsed
// player token in place. Bot metas are resolved like humans but keep
// their Bot flag for admission filtering.
func (r *Resolver) ResolveMeta(ctx context.Context, meta *models.PlayerMeta, game string) error {
	if meta == nil {
		return nil
	}
	uniqueID, err := CanonicalID(meta.SteamID, meta.Name)
	if err != nil {
		return err
	}
	meta.UniqueID = uniqueID

	playerID, err := r.resolveCanonical(ctx, uniqueID, meta.Name, game)
	if err != nil {
		return err
	}
	meta.PlayerID = playerID
	return nil
}
