package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
	"github.com/hlstatsd/hlstatsd/internal/store"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// mockPlayerStore records every mutation in order so tests can assert
// killer-before-victim sequencing.
type mockPlayerStore struct {
	players map[int32]*models.Player
	calls   []string

	getErr        error
	killKillerErr error

	skillAdjust map[int32]int32
	connTime    map[int32]int64
	shots       map[int32][2]int64
	renames     map[int32]string
}

func newMockPlayerStore(players ...*models.Player) *mockPlayerStore {
	m := &mockPlayerStore{
		players:     make(map[int32]*models.Player),
		skillAdjust: make(map[int32]int32),
		connTime:    make(map[int32]int64),
		shots:       make(map[int32][2]int64),
		renames:     make(map[int32]string),
	}
	for _, p := range players {
		m.players[p.ID] = p
	}
	return m
}

func (m *mockPlayerStore) Get(_ context.Context, id int32) (*models.Player, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.players[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *mockPlayerStore) ApplyKillKiller(_ context.Context, id, newSkill int32, headshot bool, _ int64) error {
	if m.killKillerErr != nil {
		return m.killKillerErr
	}
	m.calls = append(m.calls, "killKiller")
	p := m.players[id]
	p.Kills++
	p.KillStreak++
	p.DeathStreak = 0
	if headshot {
		p.Headshots++
	}
	p.Skill = newSkill
	return nil
}

func (m *mockPlayerStore) ApplyKillVictim(_ context.Context, id, newSkill int32, _ int64) error {
	m.calls = append(m.calls, "killVictim")
	p := m.players[id]
	p.Deaths++
	p.DeathStreak++
	p.KillStreak = 0
	p.Skill = newSkill
	return nil
}

func (m *mockPlayerStore) ApplySuicide(_ context.Context, id int32, penalty int32, _ int64) error {
	m.calls = append(m.calls, "suicide")
	p := m.players[id]
	p.Suicides++
	p.Deaths++
	p.Skill = models.ClampSkill(p.Skill + penalty)
	return nil
}

func (m *mockPlayerStore) ApplyTeamkillKiller(_ context.Context, id int32, penalty int32, _ int64) error {
	m.calls = append(m.calls, "teamkillKiller")
	p := m.players[id]
	p.Teamkills++
	p.KillStreak = 0
	p.Skill = models.ClampSkill(p.Skill + penalty)
	return nil
}

func (m *mockPlayerStore) ApplyTeamkillVictim(_ context.Context, id int32, _ int64) error {
	m.calls = append(m.calls, "teamkillVictim")
	p := m.players[id]
	p.Deaths++
	p.DeathStreak++
	p.KillStreak = 0
	return nil
}

func (m *mockPlayerStore) AdjustSkill(_ context.Context, id int32, delta int32, _ int64) error {
	m.calls = append(m.calls, "adjustSkill")
	m.skillAdjust[id] += delta
	if p, ok := m.players[id]; ok {
		p.Skill = models.ClampSkill(p.Skill + delta)
	}
	return nil
}

func (m *mockPlayerStore) Touch(_ context.Context, id int32, now int64) error {
	m.calls = append(m.calls, "touch")
	if p, ok := m.players[id]; ok {
		p.LastEvent = now
	}
	return nil
}

func (m *mockPlayerStore) Rename(_ context.Context, id int32, name string, _ int64) error {
	m.calls = append(m.calls, "rename")
	m.renames[id] = name
	return nil
}

func (m *mockPlayerStore) AddConnectionTime(_ context.Context, id int32, seconds int64) error {
	m.calls = append(m.calls, "connectionTime")
	m.connTime[id] += seconds
	return nil
}

func (m *mockPlayerStore) AddShots(_ context.Context, id int32, shots, hits int64) error {
	m.calls = append(m.calls, "addShots")
	prev := m.shots[id]
	m.shots[id] = [2]int64{prev[0] + shots, prev[1] + hits}
	return nil
}

type mockWeaponStore struct {
	modifiers map[string]float64
	err       error
}

func (m *mockWeaponStore) Modifier(_ context.Context, _, code string) (float64, error) {
	if m.err != nil {
		return 1.0, m.err
	}
	if mod, ok := m.modifiers[code]; ok {
		return mod, nil
	}
	return 1.0, nil
}

type mockEventStore struct {
	inserted []string

	fragCounts     map[int32]int64
	entryPlayers   []int32
	roundTeamkills map[int32]int64
}

func (m *mockEventStore) record(kind string) error {
	m.inserted = append(m.inserted, kind)
	return nil
}

func (m *mockEventStore) InsertConnect(context.Context, *models.Event) error    { return m.record("connect") }
func (m *mockEventStore) InsertDisconnect(context.Context, *models.Event) error { return m.record("disconnect") }
func (m *mockEventStore) InsertEntry(context.Context, *models.Event) error      { return m.record("entry") }
func (m *mockEventStore) InsertChangeTeam(context.Context, *models.Event) error { return m.record("changeTeam") }
func (m *mockEventStore) InsertChangeRole(context.Context, *models.Event) error { return m.record("changeRole") }
func (m *mockEventStore) InsertChangeName(context.Context, *models.Event) error { return m.record("changeName") }
func (m *mockEventStore) InsertSuicide(context.Context, *models.Event) error    { return m.record("suicide") }
func (m *mockEventStore) InsertTeamkill(context.Context, *models.Event) error   { return m.record("teamkill") }
func (m *mockEventStore) InsertChat(context.Context, *models.Event) error       { return m.record("chat") }

func (m *mockEventStore) InsertPlayerAction(_ context.Context, _ *models.Event, _ int32) error {
	return m.record("playerAction")
}

func (m *mockEventStore) InsertPlayerPlayerAction(_ context.Context, _ *models.Event, _ int32) error {
	return m.record("playerPlayerAction")
}

func (m *mockEventStore) InsertTeamBonus(_ context.Context, _ *models.Event, _ int32) error {
	return m.record("teamBonus")
}

func (m *mockEventStore) InsertWorldAction(_ context.Context, _ *models.Event, _ int32) error {
	return m.record("worldAction")
}

func (m *mockEventStore) CountFragsAsKiller(_ context.Context, playerID int32) (int64, error) {
	return m.fragCounts[playerID], nil
}

func (m *mockEventStore) RecentEntryPlayers(_ context.Context, _ int32, _ time.Time) ([]int32, error) {
	return m.entryPlayers, nil
}

func (m *mockEventStore) CountRecentTeamkills(_ context.Context, playerID int32, _ time.Time) (int64, error) {
	return m.roundTeamkills[playerID], nil
}

type mockFragStore struct {
	frags []*store.FragRecord
	err   error
}

func (m *mockFragStore) RecordFrag(_ context.Context, frag *store.FragRecord) error {
	if m.err != nil {
		return m.err
	}
	m.frags = append(m.frags, frag)
	return nil
}

type mockServerStore struct {
	deltas []*models.ServerStatsDelta
	resets []string
	err    error
}

func (m *mockServerStore) Apply(_ context.Context, _ int32, delta *models.ServerStatsDelta) error {
	if m.err != nil {
		return m.err
	}
	m.deltas = append(m.deltas, delta)
	return nil
}

func (m *mockServerStore) ResetMapCounters(_ context.Context, _ int32, newMap string, _ int64) error {
	m.resets = append(m.resets, newMap)
	return nil
}

type mockActionStore struct {
	actions map[string]*models.Action
	counted []int32
}

func (m *mockActionStore) Lookup(_ context.Context, _, code, _ string) (*models.Action, bool, error) {
	a, ok := m.actions[code]
	return a, ok, nil
}

func (m *mockActionStore) IncrementCount(_ context.Context, id int32) error {
	m.counted = append(m.counted, id)
	return nil
}

type mockMatchStore struct {
	histories []*models.PlayerHistory
	maps      []string
	kills     int64
	headshots int64
	err       error
}

func (m *mockMatchStore) FinalizeMap(_ context.Context, histories []*models.PlayerHistory, _, mapName string, kills, headshots int64) error {
	if m.err != nil {
		return m.err
	}
	m.histories = append(m.histories, histories...)
	m.maps = append(m.maps, mapName)
	m.kills += kills
	m.headshots += headshots
	return nil
}

type mockPublisher struct {
	updates []*models.StatsUpdate
	err     error
}

func (m *mockPublisher) Publish(_ context.Context, update *models.StatsUpdate) error {
	if m.err != nil {
		return m.err
	}
	m.updates = append(m.updates, update)
	return nil
}
