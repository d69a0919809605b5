package parser

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

func testParser() *counterStrike {
	clock := func() time.Time { return time.Unix(1721082790, 0) }
	return newCounterStrike("cstrike", zap.NewNop().Sugar(), clock)
}

func line(body string) string {
	return "L 07/15/2024 - 22:33:10: " + body
}

func TestCanParse(t *testing.T) {
	p := testParser()
	if !p.CanParse(line(`World triggered "Round_Start"`)) {
		t.Error("expected CanParse true for L-prefixed line")
	}
	if p.CanParse(`World triggered "Round_Start"`) {
		t.Error("expected CanParse false without prefix")
	}
}

func TestParseIgnoredChatter(t *testing.T) {
	p := testParser()
	for _, body := range []string{
		`[META] loaded plugin`,
		`Server shutdown`,
		`Log file closed`,
		`Log file started (file "logs/L0715000.log")`,
		`Loading map "de_dust"`,
		`Server cvar "mp_timelimit" = "25"`,
		`Server cvars start`,
	} {
		if _, err := p.Parse(line(body), 1); !errors.Is(err, ErrIgnored) {
			t.Errorf("Parse(%q) err = %v, want ErrIgnored", body, err)
		}
	}
}

func TestParseUnsupported(t *testing.T) {
	p := testParser()
	if _, err := p.Parse(line("something the grammar never saw"), 1); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if _, err := p.Parse("no prefix at all", 1); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported for missing prefix", err)
	}
}

func TestParseKill(t *testing.T) {
	p := testParser()
	body := `"K<2><STEAM_1:0:111><TERRORIST>" [100 200 -50] killed "V<3><STEAM_1:0:222><CT>" [-10 20 30] with "ak47" (headshot)`
	ev, err := p.Parse(line(body), 7)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventPlayerKill {
		t.Fatalf("kind = %s, want PLAYER_KILL", ev.Kind)
	}
	if ev.ServerID != 7 {
		t.Errorf("serverID = %d", ev.ServerID)
	}
	if ev.Actor.Name != "K" || ev.Actor.SteamID != "STEAM_1:0:111" || ev.Actor.Team != "TERRORIST" {
		t.Errorf("actor = %+v", ev.Actor)
	}
	if ev.Target.Name != "V" || ev.Target.Team != "CT" {
		t.Errorf("target = %+v", ev.Target)
	}
	if ev.Weapon != "ak47" || !ev.Headshot {
		t.Errorf("weapon = %q headshot = %v", ev.Weapon, ev.Headshot)
	}
	if ev.ActorPos == nil || ev.ActorPos.X != 100 || ev.ActorPos.Z != -50 {
		t.Errorf("actor pos = %+v", ev.ActorPos)
	}
	if ev.TargetPos == nil || ev.TargetPos.X != -10 {
		t.Errorf("target pos = %+v", ev.TargetPos)
	}
	if !ev.Time.Equal(time.Unix(1721082790, 0)) {
		t.Errorf("time = %v, want the parse-time clock", ev.Time)
	}
}

func TestParseKillWithoutPositions(t *testing.T) {
	p := testParser()
	body := `"K<2><STEAM_1:0:111><TERRORIST>" killed "V<3><STEAM_1:0:222><CT>" with "glock"`
	ev, err := p.Parse(line(body), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventPlayerKill || ev.Headshot {
		t.Errorf("kind = %s headshot = %v", ev.Kind, ev.Headshot)
	}
	if ev.ActorPos != nil || ev.TargetPos != nil {
		t.Errorf("expected nil positions, got %+v %+v", ev.ActorPos, ev.TargetPos)
	}
}

func TestParseTeamkillBeforeKill(t *testing.T) {
	p := testParser()
	body := `"K<2><STEAM_1:0:111><CT>" killed "V<3><STEAM_1:0:222><CT>" with "m4a1"`
	ev, err := p.Parse(line(body), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventPlayerTeamkill {
		t.Errorf("kind = %s, want PLAYER_TEAMKILL", ev.Kind)
	}
}

func TestParseSuicide(t *testing.T) {
	p := testParser()
	ev, err := p.Parse(line(`"P<2><STEAM_1:0:111><TERRORIST>" committed suicide with "world"`), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventPlayerSuicide || ev.Weapon != "world" {
		t.Errorf("kind = %s weapon = %q", ev.Kind, ev.Weapon)
	}
}

func TestParseKillAssist(t *testing.T) {
	p := testParser()
	ev, err := p.Parse(line(`"A<2><STEAM_1:0:111><CT>" assisted killing "V<3><STEAM_1:0:222><TERRORIST>"`), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventPlayerKillAssist || ev.Target.Name != "V" {
		t.Errorf("kind = %s target = %+v", ev.Kind, ev.Target)
	}
}

func TestParseAttack(t *testing.T) {
	p := testParser()
	body := `"A<2><STEAM_1:0:111><CT>" [1 2 3] attacked "V<3><STEAM_1:0:222><TERRORIST>" [4 5 6] with "ak47" (damage "27")`
	ev, err := p.Parse(line(body), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventWeaponHit || ev.Damage != 27 || ev.Weapon != "ak47" {
		t.Errorf("kind = %s damage = %d weapon = %q", ev.Kind, ev.Damage, ev.Weapon)
	}
}

func TestParseWeaponFire(t *testing.T) {
	p := testParser()
	ev, err := p.Parse(line(`"A<2><STEAM_1:0:111><CT>" triggered "weapon_fire" (weapon "deagle")`), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventWeaponFire || ev.Weapon != "deagle" {
		t.Errorf("kind = %s weapon = %q", ev.Kind, ev.Weapon)
	}
}

func TestParseTeamAction(t *testing.T) {
	p := testParser()

	ev, err := p.Parse(line(`Team "CT" triggered "CTs_Win" (CT "5") (T "3")`), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventTeamWin || ev.WinningTeam != "CT" {
		t.Errorf("kind = %s winner = %q", ev.Kind, ev.WinningTeam)
	}

	ev, err = p.Parse(line(`Team "TERRORIST" triggered "Target_Bombed"`), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventTeamWin || ev.WinningTeam != "TERRORIST" {
		t.Errorf("kind = %s winner = %q", ev.Kind, ev.WinningTeam)
	}

	ev, err = p.Parse(line(`Team "CT" triggered "Captured_Loot"`), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventActionTeam || ev.ActionCode != "Captured_Loot" {
		t.Errorf("kind = %s code = %q", ev.Kind, ev.ActionCode)
	}
}

func TestParseWorldActions(t *testing.T) {
	p := testParser()

	tests := []struct {
		body    string
		kind    models.EventKind
		winning string
	}{
		{`World triggered "Round_Start"`, models.EventRoundStart, ""},
		{`World triggered "Game_Commencing"`, models.EventRoundStart, ""},
		{`World triggered "Round_End"`, models.EventRoundEnd, ""},
		{`World triggered "Round_Draw"`, models.EventRoundEnd, "DRAW"},
		{`World triggered "Bomb_Exploded"`, models.EventBombExplode, ""},
		{`World triggered "Restart_Round_(1_second)"`, models.EventActionWorld, ""},
	}

	for _, tt := range tests {
		ev, err := p.Parse(line(tt.body), 1)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.body, err)
		}
		if ev.Kind != tt.kind || ev.WinningTeam != tt.winning {
			t.Errorf("Parse(%q) = %s/%q, want %s/%q", tt.body, ev.Kind, ev.WinningTeam, tt.kind, tt.winning)
		}
	}
}

func TestParseObjectives(t *testing.T) {
	p := testParser()
	ev, err := p.Parse(line(`"P<2><STEAM_1:0:111><TERRORIST>" triggered "Planted_The_Bomb"`), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventBombPlant || ev.ActionCode != "Planted_The_Bomb" {
		t.Errorf("kind = %s code = %q", ev.Kind, ev.ActionCode)
	}

	ev, err = p.Parse(line(`"P<2><STEAM_1:0:111><CT>" triggered "Rescued_A_Hostage"`), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventHostageRescue {
		t.Errorf("kind = %s", ev.Kind)
	}
}

func TestParsePlayerAction(t *testing.T) {
	p := testParser()
	ev, err := p.Parse(line(`"P<2><STEAM_1:0:111><CT>" triggered "Spawned_With_The_Bomb"`), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventActionPlayer || ev.ActionCode != "Spawned_With_The_Bomb" {
		t.Errorf("kind = %s code = %q", ev.Kind, ev.ActionCode)
	}
}

func TestParsePlayerPlayerAction(t *testing.T) {
	p := testParser()
	body := `"A<2><STEAM_1:0:111><CT>" triggered "Dominated" against "B<3><STEAM_1:0:222><TERRORIST>"`
	ev, err := p.Parse(line(body), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventActionPlayerPlayer || ev.ActionCode != "Dominated" || ev.Target.Name != "B" {
		t.Errorf("kind = %s code = %q target = %+v", ev.Kind, ev.ActionCode, ev.Target)
	}
}

func TestParseConnectDisconnect(t *testing.T) {
	p := testParser()

	ev, err := p.Parse(line(`"P<1><STEAM_1:0:111><>" connected, address "10.0.0.1:27005"`), 1)
	if err != nil {
		t.Fatalf("Parse connect: %v", err)
	}
	if ev.Kind != models.EventPlayerConnect || ev.Address != "10.0.0.1:27005" {
		t.Errorf("kind = %s address = %q", ev.Kind, ev.Address)
	}

	ev, err = p.Parse(line(`"P<1><STEAM_1:0:111><CT>" disconnected (reason "Client left game")`), 1)
	if err != nil {
		t.Fatalf("Parse disconnect: %v", err)
	}
	if ev.Kind != models.EventPlayerDisconnect || ev.Reason != "Client left game" {
		t.Errorf("kind = %s reason = %q", ev.Kind, ev.Reason)
	}

	ev, err = p.Parse(line(`"P<1><STEAM_1:0:111><CT>" disconnected`), 1)
	if err != nil {
		t.Fatalf("Parse bare disconnect: %v", err)
	}
	if ev.Kind != models.EventPlayerDisconnect || ev.Reason != "" {
		t.Errorf("kind = %s reason = %q", ev.Kind, ev.Reason)
	}
}

func TestParseChat(t *testing.T) {
	p := testParser()

	ev, err := p.Parse(line(`"P<2><STEAM_1:0:111><CT>" say "rush b" (dead)`), 1)
	if err != nil {
		t.Fatalf("Parse say: %v", err)
	}
	if ev.Kind != models.EventChat || ev.Message != "rush b" || !ev.Dead || ev.TeamSay {
		t.Errorf("chat = %+v", ev)
	}

	ev, err = p.Parse(line(`"P<2><STEAM_1:0:111><CT>" say_team "plan?"`), 1)
	if err != nil {
		t.Fatalf("Parse say_team: %v", err)
	}
	if !ev.TeamSay || ev.Message != "plan?" {
		t.Errorf("team chat = %+v", ev)
	}
}

func TestParseEntryAndChanges(t *testing.T) {
	p := testParser()

	ev, err := p.Parse(line(`"P<2><STEAM_1:0:111><>" entered the game`), 1)
	if err != nil || ev.Kind != models.EventPlayerEntry {
		t.Fatalf("entry: ev=%+v err=%v", ev, err)
	}

	ev, err = p.Parse(line(`"P<2><STEAM_1:0:111><Unassigned>" joined team "CT"`), 1)
	if err != nil || ev.Kind != models.EventPlayerChangeTeam || ev.NewTeam != "CT" {
		t.Fatalf("join team: ev=%+v err=%v", ev, err)
	}

	ev, err = p.Parse(line(`"P<2><STEAM_1:0:111><CT>" changed name to "Q"`), 1)
	if err != nil || ev.Kind != models.EventPlayerChangeName || ev.NewName != "Q" {
		t.Fatalf("change name: ev=%+v err=%v", ev, err)
	}

	ev, err = p.Parse(line(`"P<2><STEAM_1:0:111><Blue>" changed role to "Medic"`), 1)
	if err != nil || ev.Kind != models.EventPlayerChangeRole || ev.NewRole != "Medic" {
		t.Fatalf("change role: ev=%+v err=%v", ev, err)
	}
}

func TestParseMapChangeTracksPreviousMap(t *testing.T) {
	p := testParser()

	ev, err := p.Parse(line(`Started map "de_dust" (CRC "12345")`), 4)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Kind != models.EventMapChange || ev.Map != "de_dust" || ev.PreviousMap != "" {
		t.Errorf("first map change = %+v", ev)
	}

	ev, err = p.Parse(line(`Started map "de_inferno"`), 4)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.PreviousMap != "de_dust" || ev.Map != "de_inferno" {
		t.Errorf("second map change = %+v", ev)
	}

	// Per-server state: another server has no previous map.
	ev, err = p.Parse(line(`Started map "cs_office"`), 5)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.PreviousMap != "" {
		t.Errorf("previous map leaked across servers: %q", ev.PreviousMap)
	}
}

func TestParseStampsCurrentMap(t *testing.T) {
	p := testParser()
	if _, err := p.Parse(line(`Started map "de_aztec"`), 9); err != nil {
		t.Fatalf("map change: %v", err)
	}
	ev, err := p.Parse(line(`World triggered "Round_Start"`), 9)
	if err != nil {
		t.Fatalf("round start: %v", err)
	}
	if ev.Map != "de_aztec" {
		t.Errorf("map = %q, want de_aztec", ev.Map)
	}
}

func TestParseBotToken(t *testing.T) {
	p := testParser()
	ev, err := p.Parse(line(`"Joe<5><BOT><CT>" killed "V<3><STEAM_1:0:222><TERRORIST>" with "ak47"`), 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !ev.Actor.Bot {
		t.Error("expected actor flagged as bot")
	}
	if ev.Target.Bot {
		t.Error("target wrongly flagged as bot")
	}
}
