package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

var (
	topGame   string
	topLimit  int
	topPlayer int32

	skillHigh = color.New(color.FgGreen, color.Bold)
	skillMid  = color.New(color.FgYellow)
	skillLow  = color.New(color.FgRed)
)

var topPlayersCmd = &cobra.Command{
	Use:   "top-players",
	Short: "Skill leaderboard",
	RunE:  runTopPlayers,
}

var topWeaponsCmd = &cobra.Command{
	Use:   "top-weapons",
	Short: "Weapon kill leaderboard",
	RunE:  runTopWeapons,
}

var playerWeaponsCmd = &cobra.Command{
	Use:   "player-weapons",
	Short: "Per-player weapon breakdown",
	RunE:  runPlayerWeapons,
}

func init() {
	for _, c := range []*cobra.Command{topPlayersCmd, topWeaponsCmd} {
		c.Flags().StringVar(&topGame, "game", "cstrike", "game to rank")
		c.Flags().IntVar(&topLimit, "limit", 20, "rows to show")
	}
	playerWeaponsCmd.Flags().Int32Var(&topPlayer, "player", 0, "player id")
	playerWeaponsCmd.MarkFlagRequired("player")
}

func newTable() *tablewriter.Table {
	return tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

// colorSkill shades the skill column: green above 1500, red below 800.
func colorSkill(skill int32) string {
	s := strconv.Itoa(int(skill))
	switch {
	case skill >= 1500:
		return skillHigh.Sprint(s)
	case skill < 800:
		return skillLow.Sprint(s)
	default:
		return skillMid.Sprint(s)
	}
}

func runTopPlayers(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, pool, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	players, err := st.Players.TopBySkill(ctx, topGame, topLimit)
	if err != nil {
		return fmt.Errorf("query leaderboard: %w", err)
	}

	table := newTable()
	table.Header("#", "NAME", "SKILL", "K", "D", "K/D", "HS", "ACC%")
	for i, p := range players {
		kd := float64(p.Kills)
		if p.Deaths > 0 {
			kd = float64(p.Kills) / float64(p.Deaths)
		}
		acc := 0.0
		if p.Shots > 0 {
			acc = float64(p.Hits) / float64(p.Shots) * 100
		}
		table.Append(
			strconv.Itoa(i+1),
			p.LastName,
			colorSkill(p.Skill),
			strconv.FormatInt(p.Kills, 10),
			strconv.FormatInt(p.Deaths, 10),
			fmt.Sprintf("%.2f", kd),
			strconv.FormatInt(p.Headshots, 10),
			fmt.Sprintf("%.0f%%", acc),
		)
	}
	table.Render()
	return nil
}

func runTopWeapons(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, pool, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	weapons, err := st.Weapons.TopByKills(ctx, topGame, topLimit)
	if err != nil {
		return fmt.Errorf("query weapons: %w", err)
	}

	table := newTable()
	table.Header("#", "WEAPON", "MODIFIER", "KILLS", "HS", "HS%")
	for i, w := range weapons {
		hs := 0.0
		if w.Kills > 0 {
			hs = float64(w.Headshots) / float64(w.Kills) * 100
		}
		table.Append(
			strconv.Itoa(i+1),
			w.Code,
			fmt.Sprintf("%.2f", w.Modifier),
			strconv.FormatInt(w.Kills, 10),
			strconv.FormatInt(w.Headshots, 10),
			fmt.Sprintf("%.0f%%", hs),
		)
	}
	table.Render()
	return nil
}

func runPlayerWeapons(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, pool, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	rows, err := st.Weapons.PlayerBreakdown(ctx, topPlayer)
	if err != nil {
		return fmt.Errorf("query breakdown: %w", err)
	}
	if len(rows) == 0 {
		fmt.Printf("no frags recorded for player %d\n", topPlayer)
		return nil
	}

	table := newTable()
	table.Header("WEAPON", "KILLS", "HS", "HS%")
	for _, r := range rows {
		hs := 0.0
		if r.Kills > 0 {
			hs = float64(r.Headshots) / float64(r.Kills) * 100
		}
		table.Append(
			r.Weapon,
			strconv.FormatInt(r.Kills, 10),
			strconv.FormatInt(r.Headshots, 10),
			fmt.Sprintf("%.0f%%", hs),
		)
	}
	table.Render()
	return nil
}
