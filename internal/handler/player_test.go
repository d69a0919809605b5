package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

func newTestPlayerHandler(players *mockPlayerStore) *Player {
	events := &mockEventStore{fragCounts: map[int32]int64{}}
	return NewPlayer(players, newTestRanking(players, nil, events), testLogger())
}

func killEvent(killerID, victimID int32, headshot bool) *models.Event {
	return &models.Event{
		Kind:     models.EventPlayerKill,
		Time:     time.Unix(1721082790, 0),
		ServerID: 1,
		Actor:    &models.PlayerMeta{PlayerID: killerID, Team: "CT"},
		Target:   &models.PlayerMeta{PlayerID: victimID, Team: "TERRORIST"},
		Weapon:   "ak47",
		Headshot: headshot,
	}
}

func TestHandleKillUpdatesBothSides(t *testing.T) {
	players := newMockPlayerStore(
		&models.Player{ID: 1, Skill: 1000},
		&models.Player{ID: 2, Skill: 1000},
	)
	h := newTestPlayerHandler(players)

	if err := h.Handle(context.Background(), "cstrike", killEvent(1, 2, true)); err != nil {
		t.Fatal(err)
	}

	killer, victim := players.players[1], players.players[2]
	if killer.Kills != 1 || killer.KillStreak != 1 || killer.Headshots != 1 {
		t.Errorf("killer = %+v", killer)
	}
	if victim.Deaths != 1 || victim.DeathStreak != 1 || victim.KillStreak != 0 {
		t.Errorf("victim = %+v", victim)
	}
	if killer.Skill <= 1000 || victim.Skill >= 1000 {
		t.Errorf("skills did not move: killer=%d victim=%d", killer.Skill, victim.Skill)
	}
}

func TestHandleKillKillerBeforeVictim(t *testing.T) {
	players := newMockPlayerStore(
		&models.Player{ID: 1, Skill: 1000},
		&models.Player{ID: 2, Skill: 1000},
	)
	players.killKillerErr = errors.New("killer write failed")
	h := newTestPlayerHandler(players)

	if err := h.Handle(context.Background(), "cstrike", killEvent(1, 2, false)); err == nil {
		t.Fatal("expected error")
	}
	// Victim must be untouched when the killer-side update fails.
	for _, call := range players.calls {
		if call == "killVictim" {
			t.Error("victim mutated after killer failure")
		}
	}
	if players.players[2].Deaths != 0 {
		t.Errorf("victim deaths = %d, want 0", players.players[2].Deaths)
	}
}

func TestHandleKillMissingPlayerIsHardError(t *testing.T) {
	players := newMockPlayerStore(&models.Player{ID: 1, Skill: 1000})
	h := newTestPlayerHandler(players)

	if err := h.Handle(context.Background(), "cstrike", killEvent(1, 99, false)); err == nil {
		t.Error("expected error for missing victim row")
	}
}

func TestHandleSuicide(t *testing.T) {
	players := newMockPlayerStore(&models.Player{ID: 1, Skill: 1000})
	h := newTestPlayerHandler(players)

	ev := &models.Event{
		Kind:  models.EventPlayerSuicide,
		Time:  time.Unix(1721082790, 0),
		Actor: &models.PlayerMeta{PlayerID: 1},
	}
	if err := h.Handle(context.Background(), "cstrike", ev); err != nil {
		t.Fatal(err)
	}
	p := players.players[1]
	if p.Suicides != 1 || p.Deaths != 1 || p.Skill != 995 {
		t.Errorf("player = %+v", p)
	}
}

func TestHandleTeamkill(t *testing.T) {
	players := newMockPlayerStore(
		&models.Player{ID: 1, Skill: 1000},
		&models.Player{ID: 2, Skill: 1000},
	)
	h := newTestPlayerHandler(players)

	ev := &models.Event{
		Kind:   models.EventPlayerTeamkill,
		Time:   time.Unix(1721082790, 0),
		Actor:  &models.PlayerMeta{PlayerID: 1, Team: "CT"},
		Target: &models.PlayerMeta{PlayerID: 2, Team: "CT"},
	}
	if err := h.Handle(context.Background(), "cstrike", ev); err != nil {
		t.Fatal(err)
	}
	if players.players[1].Teamkills != 1 || players.players[1].Skill != 990 {
		t.Errorf("killer = %+v", players.players[1])
	}
	if players.players[2].Deaths != 1 || players.players[2].Skill != 1000 {
		t.Errorf("victim = %+v", players.players[2])
	}
}

func TestConnectDisconnectSession(t *testing.T) {
	players := newMockPlayerStore(&models.Player{ID: 1, Skill: 1000})
	h := newTestPlayerHandler(players)

	connectAt := time.Unix(1721082790, 0)
	connect := &models.Event{
		Kind:     models.EventPlayerConnect,
		Time:     connectAt,
		ServerID: 1,
		Actor:    &models.PlayerMeta{PlayerID: 1},
	}
	disconnect := &models.Event{
		Kind:     models.EventPlayerDisconnect,
		Time:     connectAt.Add(42 * time.Minute),
		ServerID: 1,
		Actor:    &models.PlayerMeta{PlayerID: 1},
	}

	if err := h.Handle(context.Background(), "cstrike", connect); err != nil {
		t.Fatal(err)
	}
	if err := h.Handle(context.Background(), "cstrike", disconnect); err != nil {
		t.Fatal(err)
	}
	if got := players.connTime[1]; got != 42*60 {
		t.Errorf("connection time = %d, want %d", got, 42*60)
	}
	if _, live := h.sessions[sessionKey{1, 1}]; live {
		t.Error("session not cleared on disconnect")
	}
}

func TestDisconnectWithoutConnectSwallowed(t *testing.T) {
	players := newMockPlayerStore()
	h := newTestPlayerHandler(players)

	ev := &models.Event{
		Kind:  models.EventPlayerDisconnect,
		Time:  time.Unix(1721082790, 0),
		Actor: &models.PlayerMeta{PlayerID: 7},
	}
	if err := h.Handle(context.Background(), "cstrike", ev); err != nil {
		t.Errorf("disconnect without session must be swallowed, got %v", err)
	}
}

func TestHandleChangeNameSanitizes(t *testing.T) {
	players := newMockPlayerStore(&models.Player{ID: 1})
	h := newTestPlayerHandler(players)

	ev := &models.Event{
		Kind:    models.EventPlayerChangeName,
		Time:    time.Unix(1721082790, 0),
		Actor:   &models.PlayerMeta{PlayerID: 1},
		NewName: "  New\x00Name  ",
	}
	if err := h.Handle(context.Background(), "cstrike", ev); err != nil {
		t.Fatal(err)
	}
	if got := players.renames[1]; got != "NewName" {
		t.Errorf("rename = %q", got)
	}
}

func TestWeaponStreamShots(t *testing.T) {
	players := newMockPlayerStore(&models.Player{ID: 1})
	h := newTestPlayerHandler(players)

	fire := &models.Event{Kind: models.EventWeaponFire, Time: time.Now(), Actor: &models.PlayerMeta{PlayerID: 1}}
	hit := &models.Event{Kind: models.EventWeaponHit, Time: time.Now(), Actor: &models.PlayerMeta{PlayerID: 1}, Damage: 27}

	for _, ev := range []*models.Event{fire, fire, fire, hit} {
		if err := h.Handle(context.Background(), "cstrike", ev); err != nil {
			t.Fatal(err)
		}
	}
	if got := h.sessions; len(got) != 0 {
		t.Errorf("weapon stream must not open sessions: %v", got)
	}
	if shots := players.shots[1]; shots != [2]int64{3, 1} {
		t.Errorf("shots/hits = %v, want [3 1]", shots)
	}
}
