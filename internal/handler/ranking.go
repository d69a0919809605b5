package handler

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

const (
	baseK          = 32.0
	headshotBonus  = 1.2
	victimSoftener = 0.8
	killGainCap    = 50
	killLossFloor  = -40

	suicidePenalty  int32 = -5
	teamkillPenalty int32 = -10

	roundBaseCap       = 5
	cleanRoundBonus    = 2
	defaultConfidence  = 350
	confidenceFloorAt  = 300
	defaultVolatility  = 0.06
	defaultModifier    = 1.0
	roundPlayedDivisor = 60
)

// KillOutcome is the rating result of one cross-team kill: the clamped
// new skills for both sides plus the raw deltas that produced them.
type KillOutcome struct {
	KillerSkill int32
	VictimSkill int32
	DeltaKiller int32
	DeltaVictim int32
}

// Ranking owns all rating math: per-kill ELO deltas, end-of-round
// participation ratings and the confidence snapshot.
type Ranking struct {
	players PlayerStore
	weapons WeaponStore
	events  EventStore
	logger  *zap.SugaredLogger
}

func NewRanking(players PlayerStore, weapons WeaponStore, events EventStore, logger *zap.SugaredLogger) *Ranking {
	return &Ranking{players: players, weapons: weapons, events: events, logger: logger}
}

// adjustedK scales the base K-factor by experience: fresh players move
// fast, veterans slower, high-rated players slowest.
func adjustedK(gamesPlayed int64, rating int32) float64 {
	switch {
	case gamesPlayed < 10:
		return baseK * 1.5
	case gamesPlayed < 50:
		return baseK * 1.2
	case rating > 2000:
		return baseK * 0.8
	}
	return baseK
}

// EvaluateKill computes the rating movement for a cross-team kill.
// A missing killer or victim row is a hard error.
func (r *Ranking) EvaluateKill(ctx context.Context, game string, killerID, victimID int32, weapon string, headshot bool) (*KillOutcome, error) {
	killer, err := r.players.Get(ctx, killerID)
	if err != nil {
		return nil, fmt.Errorf("rating killer %d: %w", killerID, err)
	}
	victim, err := r.players.Get(ctx, victimID)
	if err != nil {
		return nil, fmt.Errorf("rating victim %d: %w", victimID, err)
	}

	killerGames, err := r.events.CountFragsAsKiller(ctx, killerID)
	if err != nil {
		return nil, fmt.Errorf("games played for %d: %w", killerID, err)
	}
	victimGames, err := r.events.CountFragsAsKiller(ctx, victimID)
	if err != nil {
		return nil, fmt.Errorf("games played for %d: %w", victimID, err)
	}

	modifier, err := r.weapons.Modifier(ctx, game, weapon)
	if err != nil {
		r.logger.Warnw("weapon modifier lookup failed, using default",
			"game", game, "weapon", weapon, "error", err)
		modifier = defaultModifier
	}

	expected := 1.0 / (1.0 + math.Pow(10, float64(victim.Skill-killer.Skill)/400.0))

	hs := 1.0
	if headshot {
		hs = headshotBonus
	}
	dKiller := int32(math.Round(adjustedK(killerGames, killer.Skill) * (1.0 - expected) * modifier * hs))
	dVictim := int32(math.Round(adjustedK(victimGames, victim.Skill) * (0.0 - (1.0 - expected)) * victimSoftener))

	if dKiller > killGainCap {
		dKiller = killGainCap
	}
	if dVictim < killLossFloor {
		dVictim = killLossFloor
	}

	return &KillOutcome{
		KillerSkill: models.ClampSkill(killer.Skill + dKiller),
		VictimSkill: models.ClampSkill(victim.Skill + dVictim),
		DeltaKiller: dKiller,
		DeltaVictim: dVictim,
	}, nil
}

// HandleRoundEnd awards participation rating for a finished round. The
// event must already carry the round duration and winning team; without
// both the round is unrated.
func (r *Ranking) HandleRoundEnd(ctx context.Context, ev *models.Event) error {
	if ev.RoundDuration <= 0 || ev.WinningTeam == "" {
		return nil
	}

	since := ev.Time.Add(-time.Duration(ev.RoundDuration) * time.Second)
	participants, err := r.events.RecentEntryPlayers(ctx, ev.ServerID, since)
	if err != nil {
		return fmt.Errorf("round participants for server %d: %w", ev.ServerID, err)
	}

	base := ev.RoundDuration / roundPlayedDivisor
	if base > roundBaseCap {
		base = roundBaseCap
	}

	now := ev.Time.Unix()
	for _, playerID := range participants {
		bonus := base
		tks, err := r.events.CountRecentTeamkills(ctx, playerID, since)
		if err != nil {
			return fmt.Errorf("round teamkills for player %d: %w", playerID, err)
		}
		if tks == 0 {
			bonus += cleanRoundBonus
		}
		if bonus == 0 {
			continue
		}
		if err := r.players.AdjustSkill(ctx, playerID, bonus, now); err != nil {
			return fmt.Errorf("round rating for player %d: %w", playerID, err)
		}
	}
	return nil
}

// Snapshot builds the confidence-model view of a player's rating. A
// missing player yields the unrated defaults rather than an error.
func (r *Ranking) Snapshot(ctx context.Context, playerID int32) (*models.RatingSnapshot, error) {
	player, err := r.players.Get(ctx, playerID)
	if err != nil {
		return &models.RatingSnapshot{
			Rating:     models.DefaultSkill,
			Confidence: defaultConfidence,
			Volatility: defaultVolatility,
		}, nil
	}

	games, err := r.events.CountFragsAsKiller(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("games played for %d: %w", playerID, err)
	}

	capped := games
	if capped > confidenceFloorAt {
		capped = confidenceFloorAt
	}

	return &models.RatingSnapshot{
		Rating:      player.Skill,
		Confidence:  defaultConfidence - int32(capped),
		Volatility:  defaultVolatility,
		GamesPlayed: games,
	}, nil
}
