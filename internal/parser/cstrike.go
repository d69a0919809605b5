package parser

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/identity"
	"github.com/hlstatsd/hlstatsd/internal/models"
)

// Building blocks of the Half-Life log grammar. A player token looks
// like "Name<2><STEAM_1:0:111><TERRORIST>"; positions are bracketed
// integer triples.
const (
	playerToken = `"(.+?)<(\d+)><([^<>]*)><([^<>]*)>"`
	position    = `\[(-?\d+) (-?\d+) (-?\d+)\]`
)

// timestampRe strips the "L MM/DD/YYYY - HH:MM:SS:" prefix. The
// embedded time is discarded; events carry the receive-time clock.
var timestampRe = regexp.MustCompile(`^L \d{2}/\d{2}/\d{4} - \d{2}:\d{2}:\d{2}:\s*`)

// ignoreRes filters chatter that carries no stats value.
var ignoreRes = []*regexp.Regexp{
	regexp.MustCompile(`\[META\]`),
	regexp.MustCompile(`^Server shutdown$`),
	regexp.MustCompile(`^Log file (closed|started)`),
	regexp.MustCompile(`^Loading map `),
	regexp.MustCompile(`^Server cvar`),
	regexp.MustCompile(`^Server cvars `),
}

var (
	killRe = regexp.MustCompile(`^` + playerToken + `(?: ` + position + `)? killed ` +
		playerToken + `(?: ` + position + `)? with "([^"]+)"( \(headshot\))?`)
	suicideRe = regexp.MustCompile(`^` + playerToken + `(?: ` + position + `)? committed suicide with "([^"]+)"`)
	assistRe  = regexp.MustCompile(`^` + playerToken + ` assisted killing ` + playerToken)
	attackRe  = regexp.MustCompile(`^` + playerToken + `(?: ` + position + `)? attacked ` +
		playerToken + `(?: ` + position + `)? with "([^"]+)" \(damage "(\d+)"\)`)

	teamActionRe  = regexp.MustCompile(`^Team "([^"]+)" triggered "([^"]+)"`)
	mapChangeRe   = regexp.MustCompile(`^Started map "([^"]+)"`)
	worldActionRe = regexp.MustCompile(`^World triggered "([^"]+)"`)

	playerPlayerActionRe = regexp.MustCompile(`^` + playerToken + `(?: ` + position + `)? triggered "([^"]+)" against ` +
		playerToken + `(?: ` + position + `)?`)
	playerActionRe = regexp.MustCompile(`^` + playerToken + `(?: ` + position + `)? triggered "([^"]+)"(?: \(weapon "([^"]+)"\))?`)

	connectRe    = regexp.MustCompile(`^` + playerToken + ` connected, address "([^"]*)"`)
	disconnectRe = regexp.MustCompile(`^` + playerToken + ` disconnected(?: \(reason "(.*)"\))?`)
	chatRe       = regexp.MustCompile(`^` + playerToken + ` say(_team)? "(.*)"( \(dead\))?`)
	entryRe      = regexp.MustCompile(`^` + playerToken + ` entered the game`)
	joinTeamRe   = regexp.MustCompile(`^` + playerToken + ` joined team "([^"]+)"`)
	changeNameRe = regexp.MustCompile(`^` + playerToken + ` changed name to "(.*)"`)
	changeRoleRe = regexp.MustCompile(`^` + playerToken + ` changed role to "(.*)"`)
)

// objectiveKinds maps player-triggered codes to objective events.
var objectiveKinds = map[string]models.EventKind{
	"Planted_The_Bomb":      models.EventBombPlant,
	"Defused_The_Bomb":      models.EventBombDefuse,
	"Rescued_A_Hostage":     models.EventHostageRescue,
	"Touched_A_Hostage":     models.EventHostageTouch,
	"Flag_Captured":         models.EventFlagCapture,
	"Flag_Defended":         models.EventFlagDefend,
	"Flag_PickedUp":         models.EventFlagPickup,
	"Flag_Dropped":          models.EventFlagDrop,
	"ControlPoint_Captured": models.EventControlPointCapture,
	"ControlPoint_Defended": models.EventControlPointDefend,
}

// teamWinCodes maps team-triggered codes to the winning side.
var teamWinCodes = map[string]string{
	"CTs_Win":              "CT",
	"Target_Saved":         "CT",
	"Bomb_Defused":         "CT",
	"All_Hostages_Rescued": "CT",
	"Hostages_Not_Rescued": "TERRORIST",
	"Terrorists_Win":       "TERRORIST",
	"Target_Bombed":        "TERRORIST",
}

// weaponFireCode is the trigger code emitted per shot by mods that log
// the fire stream.
const weaponFireCode = "weapon_fire"

// counterStrike parses the Counter-Strike family grammar. It owns the
// serverID -> current map state so MAP_CHANGE events can report the
// previous map.
type counterStrike struct {
	game   string
	logger *zap.SugaredLogger
	now    func() time.Time

	mu          sync.Mutex
	currentMaps map[int32]string
}

func newCounterStrike(game string, logger *zap.SugaredLogger, now func() time.Time) *counterStrike {
	return &counterStrike{
		game:        game,
		logger:      logger,
		now:         now,
		currentMaps: make(map[int32]string),
	}
}

func (p *counterStrike) CanParse(line string) bool {
	return strings.HasPrefix(line, logPrefix)
}

// CurrentMap returns the last map seen for a server, empty when no
// MAP_CHANGE has been observed yet.
func (p *counterStrike) CurrentMap(serverID int32) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentMaps[serverID]
}

// Parse dispatches the line through the grammar, most specific shape
// first. The first hit wins.
func (p *counterStrike) Parse(line string, serverID int32) (*models.Event, error) {
	if !p.CanParse(line) {
		return nil, ErrUnsupported
	}
	body := timestampRe.ReplaceAllString(line, "")

	for _, re := range ignoreRes {
		if re.MatchString(body) {
			return nil, ErrIgnored
		}
	}

	ev := &models.Event{
		Time:     p.now(),
		ServerID: serverID,
		Map:      p.CurrentMap(serverID),
	}

	if m := killRe.FindStringSubmatch(body); m != nil {
		ev.Actor = parsePlayerToken(m, 1)
		ev.ActorPos = parsePos(m, 5)
		ev.Target = parsePlayerToken(m, 8)
		ev.TargetPos = parsePos(m, 12)
		ev.Weapon = m[15]
		ev.Headshot = m[16] != ""
		if sameTeam(ev.Actor.Team, ev.Target.Team) {
			ev.Kind = models.EventPlayerTeamkill
		} else {
			ev.Kind = models.EventPlayerKill
		}
		return ev, nil
	}

	if m := suicideRe.FindStringSubmatch(body); m != nil {
		ev.Kind = models.EventPlayerSuicide
		ev.Actor = parsePlayerToken(m, 1)
		ev.ActorPos = parsePos(m, 5)
		ev.Weapon = m[8]
		return ev, nil
	}

	if m := assistRe.FindStringSubmatch(body); m != nil {
		ev.Kind = models.EventPlayerKillAssist
		ev.Actor = parsePlayerToken(m, 1)
		ev.Target = parsePlayerToken(m, 5)
		return ev, nil
	}

	if m := attackRe.FindStringSubmatch(body); m != nil {
		ev.Kind = models.EventWeaponHit
		ev.Actor = parsePlayerToken(m, 1)
		ev.ActorPos = parsePos(m, 5)
		ev.Target = parsePlayerToken(m, 8)
		ev.TargetPos = parsePos(m, 12)
		ev.Weapon = m[15]
		damage, _ := strconv.ParseInt(m[16], 10, 32)
		ev.Damage = int32(damage)
		return ev, nil
	}

	if m := teamActionRe.FindStringSubmatch(body); m != nil {
		team, code := m[1], m[2]
		if winner, ok := teamWinCodes[code]; ok {
			ev.Kind = models.EventTeamWin
			ev.WinningTeam = winner
			ev.ActionCode = code
			ev.Team = normalizeTeam(team)
			return ev, nil
		}
		ev.Kind = models.EventActionTeam
		ev.Team = normalizeTeam(team)
		ev.ActionCode = code
		return ev, nil
	}

	if m := mapChangeRe.FindStringSubmatch(body); m != nil {
		newMap := m[1]
		p.mu.Lock()
		ev.PreviousMap = p.currentMaps[serverID]
		p.currentMaps[serverID] = newMap
		p.mu.Unlock()
		ev.Kind = models.EventMapChange
		ev.Map = newMap
		return ev, nil
	}

	if m := worldActionRe.FindStringSubmatch(body); m != nil {
		switch code := m[1]; code {
		case "Round_Start", "Game_Commencing":
			ev.Kind = models.EventRoundStart
		case "Round_End":
			ev.Kind = models.EventRoundEnd
		case "Round_Draw":
			ev.Kind = models.EventRoundEnd
			ev.WinningTeam = "DRAW"
		case "Bomb_Exploded":
			ev.Kind = models.EventBombExplode
			ev.ActionCode = code
		default:
			ev.Kind = models.EventActionWorld
			ev.ActionCode = code
		}
		return ev, nil
	}

	if m := playerPlayerActionRe.FindStringSubmatch(body); m != nil {
		ev.Kind = models.EventActionPlayerPlayer
		ev.Actor = parsePlayerToken(m, 1)
		ev.ActorPos = parsePos(m, 5)
		ev.ActionCode = m[8]
		ev.Target = parsePlayerToken(m, 9)
		ev.TargetPos = parsePos(m, 13)
		return ev, nil
	}

	if m := playerActionRe.FindStringSubmatch(body); m != nil {
		ev.Actor = parsePlayerToken(m, 1)
		ev.ActorPos = parsePos(m, 5)
		code := m[8]
		switch {
		case code == weaponFireCode:
			ev.Kind = models.EventWeaponFire
			ev.Weapon = m[9]
		default:
			if kind, ok := objectiveKinds[code]; ok {
				ev.Kind = kind
			} else {
				ev.Kind = models.EventActionPlayer
			}
			ev.ActionCode = code
		}
		return ev, nil
	}

	if m := connectRe.FindStringSubmatch(body); m != nil {
		ev.Kind = models.EventPlayerConnect
		ev.Actor = parsePlayerToken(m, 1)
		ev.Address = m[5]
		return ev, nil
	}

	if m := disconnectRe.FindStringSubmatch(body); m != nil {
		ev.Kind = models.EventPlayerDisconnect
		ev.Actor = parsePlayerToken(m, 1)
		ev.Reason = m[5]
		return ev, nil
	}

	if m := chatRe.FindStringSubmatch(body); m != nil {
		ev.Kind = models.EventChat
		ev.Actor = parsePlayerToken(m, 1)
		ev.TeamSay = m[5] != ""
		ev.Message = m[6]
		ev.Dead = m[7] != ""
		return ev, nil
	}

	if m := entryRe.FindStringSubmatch(body); m != nil {
		ev.Kind = models.EventPlayerEntry
		ev.Actor = parsePlayerToken(m, 1)
		return ev, nil
	}

	if m := joinTeamRe.FindStringSubmatch(body); m != nil {
		ev.Kind = models.EventPlayerChangeTeam
		ev.Actor = parsePlayerToken(m, 1)
		ev.NewTeam = normalizeTeam(m[5])
		return ev, nil
	}

	if m := changeNameRe.FindStringSubmatch(body); m != nil {
		ev.Kind = models.EventPlayerChangeName
		ev.Actor = parsePlayerToken(m, 1)
		ev.NewName = m[5]
		return ev, nil
	}

	if m := changeRoleRe.FindStringSubmatch(body); m != nil {
		ev.Kind = models.EventPlayerChangeRole
		ev.Actor = parsePlayerToken(m, 1)
		ev.NewRole = m[5]
		return ev, nil
	}

	return nil, ErrUnsupported
}

// parsePlayerToken builds a PlayerMeta from the four capture groups
// starting at off: name, slot, steam id, team.
func parsePlayerToken(m []string, off int) *models.PlayerMeta {
	slot, _ := strconv.ParseInt(m[off+1], 10, 32)
	steamID := m[off+2]
	return &models.PlayerMeta{
		Name:    strings.TrimSpace(m[off]),
		Slot:    int32(slot),
		SteamID: steamID,
		Team:    normalizeTeam(m[off+3]),
		Bot:     identity.IsBot(steamID),
	}
}

// parsePos reads an optional position triple; all three groups are
// empty when the line carried none.
func parsePos(m []string, off int) *models.Position {
	if m[off] == "" {
		return nil
	}
	x, _ := strconv.ParseInt(m[off], 10, 32)
	y, _ := strconv.ParseInt(m[off+1], 10, 32)
	z, _ := strconv.ParseInt(m[off+2], 10, 32)
	return &models.Position{X: int32(x), Y: int32(y), Z: int32(z)}
}

// normalizeTeam folds the team spellings the engines emit into the two
// canonical sides, leaving everything else (Spectator, Unassigned)
// as-is but uppercased.
func normalizeTeam(team string) string {
	switch strings.ToUpper(strings.TrimSpace(team)) {
	case "CT", "COUNTER-TERRORIST":
		return "CT"
	case "T", "TERRORIST":
		return "TERRORIST"
	default:
		return strings.ToUpper(strings.TrimSpace(team))
	}
}

// sameTeam reports whether two sides are the same real team. Empty or
// spectator sides never teamkill.
func sameTeam(a, b string) bool {
	return a != "" && a == b && (a == "CT" || a == "TERRORIST")
}
