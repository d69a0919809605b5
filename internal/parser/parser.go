// Package parser turns normalized Source-engine log lines into typed
// domain events. One parser instance serves one game family; the
// Counter-Strike grammar is implemented in full and the other
// Half-Life mods share its line shapes.
package parser

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

var (
	// ErrIgnored marks chatter the parser filters on purpose
	// (cvar dumps, log rotation notices and the like).
	ErrIgnored = errors.New("parser: ignored")

	// ErrUnsupported marks lines outside the stable grammar subset.
	ErrUnsupported = errors.New("parser: unsupported log line")
)

// Parser converts one normalized line into one event.
type Parser interface {
	// CanParse reports whether line carries the canonical "L " prefix.
	CanParse(line string) bool

	// Parse returns the typed event for line, ErrIgnored for filtered
	// chatter, or ErrUnsupported for anything outside the grammar.
	// Events are stamped with the wall clock, not the embedded log
	// timestamp.
	Parse(line string, serverID int32) (*models.Event, error)
}

// New returns the parser for a game. Every Half-Life-family mod in the
// stable subset shares the Counter-Strike line grammar, so the game
// currently only selects contextual defaults.
func New(game string, logger *zap.SugaredLogger) Parser {
	return newCounterStrike(game, logger, time.Now)
}
