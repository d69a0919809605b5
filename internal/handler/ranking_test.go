package handler

import (
	"context"
	"testing"
	"time"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

func newTestRanking(players *mockPlayerStore, weapons *mockWeaponStore, events *mockEventStore) *Ranking {
	if weapons == nil {
		weapons = &mockWeaponStore{}
	}
	if events == nil {
		events = &mockEventStore{fragCounts: map[int32]int64{}}
	}
	return NewRanking(players, weapons, events, testLogger())
}

func TestAdjustedK(t *testing.T) {
	tests := []struct {
		name   string
		games  int64
		rating int32
		want   float64
	}{
		{"fresh player", 0, 1000, 48},
		{"nine games", 9, 1000, 48},
		{"ten games", 10, 1000, 38.4},
		{"forty-nine games", 49, 1000, 38.4},
		{"veteran", 50, 1000, 32},
		{"high rated veteran", 200, 2001, 25.6},
		{"high rated novice keeps fast K", 5, 2500, 48},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adjustedK(tt.games, tt.rating); got != tt.want {
				t.Errorf("adjustedK(%d, %d) = %v, want %v", tt.games, tt.rating, got, tt.want)
			}
		})
	}
}

func TestEvaluateKillEqualRatings(t *testing.T) {
	players := newMockPlayerStore(
		&models.Player{ID: 1, Skill: 1000},
		&models.Player{ID: 2, Skill: 1000},
	)
	events := &mockEventStore{fragCounts: map[int32]int64{1: 100, 2: 100}}
	r := newTestRanking(players, nil, events)

	out, err := r.EvaluateKill(context.Background(), "cstrike", 1, 2, "ak47", false)
	if err != nil {
		t.Fatal(err)
	}
	// Equal ratings: expected = 0.5, so 32*0.5 = 16 up, 32*0.5*0.8 down.
	if out.DeltaKiller != 16 {
		t.Errorf("killer delta = %d, want 16", out.DeltaKiller)
	}
	if out.DeltaVictim != -13 {
		t.Errorf("victim delta = %d, want -13", out.DeltaVictim)
	}
	if out.KillerSkill != 1016 || out.VictimSkill != 987 {
		t.Errorf("new skills = %d/%d", out.KillerSkill, out.VictimSkill)
	}
}

func TestEvaluateKillHeadshotAndModifier(t *testing.T) {
	players := newMockPlayerStore(
		&models.Player{ID: 1, Skill: 1000},
		&models.Player{ID: 2, Skill: 1000},
	)
	events := &mockEventStore{fragCounts: map[int32]int64{1: 100, 2: 100}}
	weapons := &mockWeaponStore{modifiers: map[string]float64{"awp": 1.4}}
	r := newTestRanking(players, weapons, events)

	out, err := r.EvaluateKill(context.Background(), "cstrike", 1, 2, "awp", true)
	if err != nil {
		t.Fatal(err)
	}
	// 32 * 0.5 * 1.4 * 1.2 = 26.88 -> 27.
	if out.DeltaKiller != 27 {
		t.Errorf("killer delta = %d, want 27", out.DeltaKiller)
	}
	// Victim side ignores weapon and headshot.
	if out.DeltaVictim != -13 {
		t.Errorf("victim delta = %d, want -13", out.DeltaVictim)
	}
}

func TestEvaluateKillCaps(t *testing.T) {
	// Maximal rating gap with a fresh killer and a big modifier pushes
	// both deltas past the caps.
	players := newMockPlayerStore(
		&models.Player{ID: 1, Skill: 100},
		&models.Player{ID: 2, Skill: 3000},
	)
	events := &mockEventStore{fragCounts: map[int32]int64{}}
	weapons := &mockWeaponStore{modifiers: map[string]float64{"knife": 2.0}}
	r := newTestRanking(players, weapons, events)

	out, err := r.EvaluateKill(context.Background(), "cstrike", 1, 2, "knife", true)
	if err != nil {
		t.Fatal(err)
	}
	if out.DeltaKiller != killGainCap {
		t.Errorf("killer delta = %d, want cap %d", out.DeltaKiller, killGainCap)
	}
	if out.DeltaVictim < killLossFloor {
		t.Errorf("victim delta %d breaches floor %d", out.DeltaVictim, killLossFloor)
	}
}

func TestEvaluateKillSymmetricPairNetsAboutZero(t *testing.T) {
	// Two equally rated veterans trading kills with the same weapon
	// should end close to where they started (invariant: bounded drift).
	a := &models.Player{ID: 1, Skill: 1200}
	b := &models.Player{ID: 2, Skill: 1200}
	players := newMockPlayerStore(a, b)
	events := &mockEventStore{fragCounts: map[int32]int64{1: 100, 2: 100}}
	r := newTestRanking(players, nil, events)

	out1, err := r.EvaluateKill(context.Background(), "cstrike", 1, 2, "ak47", false)
	if err != nil {
		t.Fatal(err)
	}
	a.Skill, b.Skill = out1.KillerSkill, out1.VictimSkill

	out2, err := r.EvaluateKill(context.Background(), "cstrike", 2, 1, "ak47", false)
	if err != nil {
		t.Fatal(err)
	}
	a.Skill, b.Skill = out2.VictimSkill, out2.KillerSkill

	if drift := (a.Skill - 1200) + (b.Skill - 1200); drift < -10 || drift > 10 {
		t.Errorf("pair drifted %d points over a symmetric trade", drift)
	}
}

func TestEvaluateKillMissingPlayerIsHardError(t *testing.T) {
	players := newMockPlayerStore(&models.Player{ID: 1, Skill: 1000})
	r := newTestRanking(players, nil, nil)

	if _, err := r.EvaluateKill(context.Background(), "cstrike", 1, 99, "ak47", false); err == nil {
		t.Error("expected error for missing victim")
	}
	if _, err := r.EvaluateKill(context.Background(), "cstrike", 99, 1, "ak47", false); err == nil {
		t.Error("expected error for missing killer")
	}
}

func TestHandleRoundEndAwardsParticipants(t *testing.T) {
	players := newMockPlayerStore(
		&models.Player{ID: 1, Skill: 1000},
		&models.Player{ID: 2, Skill: 1000},
	)
	events := &mockEventStore{
		entryPlayers:   []int32{1, 2},
		roundTeamkills: map[int32]int64{2: 1},
		fragCounts:     map[int32]int64{},
	}
	r := newTestRanking(players, nil, events)

	ev := &models.Event{
		Kind:          models.EventRoundEnd,
		Time:          time.Unix(1721082790, 0),
		ServerID:      1,
		RoundDuration: 150,
		WinningTeam:   "CT",
	}
	if err := r.HandleRoundEnd(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	// 150s -> base 2; player 1 clean +2, player 2 had a teamkill.
	if got := players.skillAdjust[1]; got != 4 {
		t.Errorf("player 1 bonus = %d, want 4", got)
	}
	if got := players.skillAdjust[2]; got != 2 {
		t.Errorf("player 2 bonus = %d, want 2", got)
	}
}

func TestHandleRoundEndBaseCap(t *testing.T) {
	players := newMockPlayerStore(&models.Player{ID: 1, Skill: 1000})
	events := &mockEventStore{
		entryPlayers:   []int32{1},
		roundTeamkills: map[int32]int64{},
		fragCounts:     map[int32]int64{},
	}
	r := newTestRanking(players, nil, events)

	ev := &models.Event{
		Kind:          models.EventRoundEnd,
		Time:          time.Unix(1721082790, 0),
		ServerID:      1,
		RoundDuration: 3600,
		WinningTeam:   "TERRORIST",
	}
	if err := r.HandleRoundEnd(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if got := players.skillAdjust[1]; got != roundBaseCap+cleanRoundBonus {
		t.Errorf("bonus = %d, want %d", got, roundBaseCap+cleanRoundBonus)
	}
}

func TestHandleRoundEndUnratedWithoutAnnotation(t *testing.T) {
	players := newMockPlayerStore(&models.Player{ID: 1, Skill: 1000})
	events := &mockEventStore{entryPlayers: []int32{1}, fragCounts: map[int32]int64{}}
	r := newTestRanking(players, nil, events)

	for _, ev := range []*models.Event{
		{Kind: models.EventRoundEnd, Time: time.Now(), RoundDuration: 0, WinningTeam: "CT"},
		{Kind: models.EventRoundEnd, Time: time.Now(), RoundDuration: 90, WinningTeam: ""},
	} {
		if err := r.HandleRoundEnd(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}
	if len(players.skillAdjust) != 0 {
		t.Errorf("unannotated rounds must not rate players: %v", players.skillAdjust)
	}
}

func TestSnapshot(t *testing.T) {
	players := newMockPlayerStore(&models.Player{ID: 1, Skill: 1430})
	events := &mockEventStore{fragCounts: map[int32]int64{1: 42}}
	r := newTestRanking(players, nil, events)

	snap, err := r.Snapshot(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Rating != 1430 || snap.Confidence != 308 || snap.Volatility != 0.06 || snap.GamesPlayed != 42 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSnapshotConfidenceFloor(t *testing.T) {
	players := newMockPlayerStore(&models.Player{ID: 1, Skill: 2000})
	events := &mockEventStore{fragCounts: map[int32]int64{1: 5000}}
	r := newTestRanking(players, nil, events)

	snap, err := r.Snapshot(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Confidence != 50 {
		t.Errorf("confidence = %d, want 50", snap.Confidence)
	}
}

func TestSnapshotMissingPlayerDefaults(t *testing.T) {
	r := newTestRanking(newMockPlayerStore(), nil, nil)

	snap, err := r.Snapshot(context.Background(), 404)
	if err != nil {
		t.Fatal(err)
	}
	want := models.RatingSnapshot{Rating: 1000, Confidence: 350, Volatility: 0.06, GamesPlayed: 0}
	if *snap != want {
		t.Errorf("snapshot = %+v, want %+v", snap, want)
	}
}
