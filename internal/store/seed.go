package store

import (
	"context"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

// DefaultWeapons is the stock Counter-Strike weapon catalog. The
// modifier scales the ELO delta of a kill; harder weapons pay more.
func DefaultWeapons(game string) []models.Weapon {
	rows := []struct {
		code     string
		name     string
		modifier float64
	}{
		{"ak47", "AK-47", 1.0},
		{"m4a1", "M4A1", 1.0},
		{"aug", "AUG", 1.0},
		{"sg552", "SG 552", 1.0},
		{"sg550", "SG 550", 1.1},
		{"g3sg1", "G3SG1", 1.1},
		{"galil", "Galil", 1.0},
		{"famas", "FAMAS", 1.0},
		{"awp", "AWP", 1.4},
		{"scout", "Scout", 1.5},
		{"mp5navy", "MP5 Navy", 1.1},
		{"tmp", "TMP", 1.2},
		{"p90", "P90", 1.1},
		{"mac10", "MAC-10", 1.2},
		{"ump45", "UMP-45", 1.2},
		{"m249", "M249", 1.1},
		{"m3", "M3", 1.2},
		{"xm1014", "XM1014", 1.2},
		{"deagle", "Desert Eagle", 1.2},
		{"usp", "USP", 1.3},
		{"glock", "Glock-18", 1.3},
		{"p228", "P228", 1.3},
		{"elite", "Dual Elites", 1.3},
		{"fiveseven", "Five-SeveN", 1.3},
		{"knife", "Knife", 2.0},
		{"hegrenade", "HE Grenade", 1.8},
		{"grenade", "Grenade", 1.8},
	}

	out := make([]models.Weapon, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Weapon{Game: game, Code: r.code, Name: r.name, Modifier: r.modifier})
	}
	return out
}

// DefaultActions is the stock action catalog: objective trigger codes
// with their scope flags and skill rewards.
func DefaultActions(game string) []models.Action {
	player := func(code, desc string, reward int32) models.Action {
		return models.Action{Game: game, Code: code, Description: desc,
			ForPlayerActions: true, RewardPlayer: reward}
	}
	team := func(code, teamName, desc string, reward int32) models.Action {
		return models.Action{Game: game, Code: code, Team: teamName, Description: desc,
			ForTeamActions: true, RewardTeam: reward}
	}

	return []models.Action{
		player("Planted_The_Bomb", "Planted the bomb", 3),
		player("Defused_The_Bomb", "Defused the bomb", 3),
		player("Begin_Bomb_Defuse_With_Kit", "Began defusing with kit", 1),
		player("Begin_Bomb_Defuse_Without_Kit", "Began defusing without kit", 2),
		player("Rescued_A_Hostage", "Rescued a hostage", 2),
		player("Touched_A_Hostage", "Reached a hostage", 1),
		player("Killed_A_Hostage", "Killed a hostage", -5),
		player("Spawned_With_The_Bomb", "Spawned with the bomb", 0),
		player("Got_The_Bomb", "Picked up the bomb", 0),
		player("Dropped_The_Bomb", "Dropped the bomb", 0),

		team("CTs_Win", "CT", "Counter-terrorists won the round", 2),
		team("Terrorists_Win", "TERRORIST", "Terrorists won the round", 2),
		team("Target_Bombed", "TERRORIST", "Target destroyed", 3),
		team("Target_Saved", "CT", "Target saved", 2),
		team("Bomb_Defused", "CT", "Bomb defused", 3),
		team("All_Hostages_Rescued", "CT", "All hostages rescued", 3),
		team("Hostages_Not_Rescued", "TERRORIST", "Hostages not rescued", 2),
	}
}

// SeedCatalogs installs both default catalogs for a game. Idempotent.
func (s *Store) SeedCatalogs(ctx context.Context, game string) error {
	if err := s.Weapons.Seed(ctx, DefaultWeapons(game)); err != nil {
		return err
	}
	return s.Actions.Seed(ctx, DefaultActions(game))
}
