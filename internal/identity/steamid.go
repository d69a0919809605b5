// Package identity canonicalizes the player identifiers found in game
// server logs and resolves them to player rows. All three textual
// Steam ID forms map to the same 64-bit account number; bots get a
// synthetic per-game identity derived from their name.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrBadSteamID is returned for identifiers that match none of the
// accepted shapes.
var ErrBadSteamID = errors.New("identity: unrecognized steam id")

// steam64Base is the account number of STEAM_0:0:0.
const steam64Base int64 = 76561197960265728

// maxNameLen bounds sanitized names.
const maxNameLen = 48

var (
	steam2Re  = regexp.MustCompile(`^STEAM_([0-5]):([01]):(\d+)$`)
	steam3Re  = regexp.MustCompile(`^\[U:1:(\d+)\]$`)
	steam64Re = regexp.MustCompile(`^\d{17}$`)
)

// IsBot reports whether a raw identifier names a bot rather than a
// Steam account.
func IsBot(id string) bool {
	u := strings.ToUpper(strings.TrimSpace(id))
	return u == "BOT" || strings.HasPrefix(u, "BOT_") || strings.HasPrefix(u, "BOT:")
}

// SanitizeName trims a player name, collapses internal whitespace to
// underscores, strips everything outside [A-Za-z0-9_-] and truncates
// to 48 characters.
func SanitizeName(name string) string {
	collapsed := strings.Join(strings.Fields(name), "_")

	var sb strings.Builder
	sb.Grow(len(collapsed))
	for _, r := range collapsed {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		}
	}

	out := sb.String()
	if len(out) > maxNameLen {
		out = out[:maxNameLen]
	}
	return out
}

// CanonicalID converts a raw log identifier into the canonical unique
// ID stored with player rows: a 17-digit Steam64 string for humans,
// "BOT_<sanitized name>" for bots. name is only consulted for bots.
func CanonicalID(steamID, name string) (string, error) {
	id := strings.TrimSpace(steamID)
	if id == "" {
		return "", fmt.Errorf("%w: empty", ErrBadSteamID)
	}

	if IsBot(id) {
		return "BOT_" + SanitizeName(name), nil
	}

	if steam64Re.MatchString(id) {
		return id, nil
	}

	if m := steam2Re.FindStringSubmatch(id); m != nil {
		y, _ := strconv.ParseInt(m[2], 10, 64)
		z, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil || z > (1<<61) {
			return "", fmt.Errorf("%w: %q", ErrBadSteamID, steamID)
		}
		return strconv.FormatInt(steam64Base+2*z+y, 10), nil
	}

	if m := steam3Re.FindStringSubmatch(id); m != nil {
		a, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || a > (1<<62) {
			return "", fmt.Errorf("%w: %q", ErrBadSteamID, steamID)
		}
		return strconv.FormatInt(steam64Base+a, 10), nil
	}

	return "", fmt.Errorf("%w: %q", ErrBadSteamID, steamID)
}

// Steam64ToSteam2 renders an account number in the classic
// STEAM_0:Y:Z form. It fails for values below the Steam64 base and
// for bot identities.
func Steam64ToSteam2(steam64 string) (string, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(steam64), 10, 64)
	if err != nil || n < steam64Base {
		return "", fmt.Errorf("%w: %q", ErrBadSteamID, steam64)
	}
	acct := n - steam64Base
	return fmt.Sprintf("STEAM_0:%d:%d", acct%2, acct/2), nil
}

// Steam64ToSteam3 renders an account number in the [U:1:A] form.
func Steam64ToSteam3(steam64 string) (string, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(steam64), 10, 64)
	if err != nil || n < steam64Base {
		return "", fmt.Errorf("%w: %q", ErrBadSteamID, steam64)
	}
	return fmt.Sprintf("[U:1:%d]", n-steam64Base), nil
}
