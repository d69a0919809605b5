// Package engine runs the event pipeline: worker lanes fed by the UDP
// listener, each executing normalize → registry gate → parse →
// identity → persist → server-stats → handler fan-out. Payloads are
// sharded onto lanes by source address, so one server's lines always
// run serially and in order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/handler"
	"github.com/hlstatsd/hlstatsd/internal/models"
	"github.com/hlstatsd/hlstatsd/internal/parser"
	"github.com/hlstatsd/hlstatsd/internal/registry"
)

const (
	taskTimeout   = 10 * time.Second
	drainDeadline = 30 * time.Second
	reportEvery   = 15 * time.Second
)

// Task is one admitted datagram on its way through the pipeline.
type Task struct {
	Payload    []byte
	IP         string
	Port       int32
	ReceivedAt time.Time
}

// Registry resolves a source address to its server row.
type Registry interface {
	Resolve(ctx context.Context, ip string, port int32) (*models.Server, bool, error)
}

// IdentityResolver fills PlayerID/UniqueID on a parsed player token.
type IdentityResolver interface {
	ResolveMeta(ctx context.Context, meta *models.PlayerMeta, game string) error
}

// Archiver records admitted raw lines. Best-effort.
type Archiver interface {
	Record(receivedAt time.Time, serverID int32, source, line string)
}

// Handlers bundles the pipeline stages the engine fans out to.
type Handlers struct {
	Persister   *handler.Persister
	Player      *handler.Player
	Weapon      *handler.Weapon
	Match       *handler.Match
	ServerStats *handler.ServerStats
	Ranking     *handler.Ranking
}

// Config holds the engine knobs.
type Config struct {
	Lanes     int
	QueueSize int
	SkipAuth  bool
	LogBots   bool
}

// Counters is a point-in-time snapshot of the engine's totals, served
// by the status endpoint.
type Counters struct {
	Packets  int64 `json:"packets"`
	Parsed   int64 `json:"parsed"`
	Ignored  int64 `json:"ignored"`
	Failed   int64 `json:"failed"`
	LoadShed int64 `json:"load_shed"`
}

// Engine owns the worker lanes and the per-task pipeline.
type Engine struct {
	cfg      Config
	registry Registry
	resolver IdentityResolver
	handlers Handlers
	archive  Archiver
	logger   *zap.SugaredLogger

	parserMu sync.Mutex
	parsers  map[string]parser.Parser

	lanes []chan Task
	wg    sync.WaitGroup

	stopOnce sync.Once
	stopped  chan struct{}

	packets  atomic.Int64
	parsed   atomic.Int64
	ignored  atomic.Int64
	failed   atomic.Int64
	loadShed atomic.Int64
}

// New builds an engine. archive may be nil.
func New(cfg Config, reg Registry, resolver IdentityResolver, handlers Handlers, archive Archiver, logger *zap.SugaredLogger) *Engine {
	if cfg.Lanes <= 0 {
		cfg.Lanes = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	e := &Engine{
		cfg:      cfg,
		registry: reg,
		resolver: resolver,
		handlers: handlers,
		archive:  archive,
		logger:   logger,
		parsers:  make(map[string]parser.Parser),
		lanes:    make([]chan Task, cfg.Lanes),
		stopped:  make(chan struct{}),
	}
	for i := range e.lanes {
		e.lanes[i] = make(chan Task, cfg.QueueSize)
	}
	return e
}

// Start launches one goroutine per lane plus the metrics reporter.
func (e *Engine) Start() {
	for i, lane := range e.lanes {
		e.wg.Add(1)
		go e.run(i, lane)
	}
	go e.report()
	e.logger.Infow("engine started", "lanes", e.cfg.Lanes, "queueSize", e.cfg.QueueSize)
}

// Enqueue shards a task onto its lane. A full lane sheds the payload
// rather than blocking the listener.
func (e *Engine) Enqueue(task Task) bool {
	select {
	case <-e.stopped:
		return false
	default:
	}

	lane := e.lanes[e.laneFor(task.IP, task.Port)]
	select {
	case lane <- task:
		return true
	default:
		e.loadShed.Add(1)
		eventsLoadShed.Inc()
		e.logger.Warnw("lane full, dropping payload", "source", models.JoinAddr(task.IP, task.Port))
		return false
	}
}

// laneFor picks the lane for a source address. FNV-1a keeps one
// server's packets on one lane.
func (e *Engine) laneFor(ip string, port int32) int {
	h := fnv.New32a()
	h.Write([]byte(models.JoinAddr(ip, port)))
	return int(h.Sum32() % uint32(len(e.lanes)))
}

// QueueDepth sums the waiting tasks across lanes.
func (e *Engine) QueueDepth() int {
	depth := 0
	for _, lane := range e.lanes {
		depth += len(lane)
	}
	return depth
}

// Snapshot returns the engine's counter totals.
func (e *Engine) Snapshot() Counters {
	return Counters{
		Packets:  e.packets.Load(),
		Parsed:   e.parsed.Load(),
		Ignored:  e.ignored.Load(),
		Failed:   e.failed.Load(),
		LoadShed: e.loadShed.Load(),
	}
}

// Stop closes intake and drains the lanes, abandoning whatever is
// still queued after the drain deadline. Safe to call twice.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopped)
		for _, lane := range e.lanes {
			close(lane)
		}

		done := make(chan struct{})
		go func() {
			e.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			e.logger.Info("engine drained")
		case <-time.After(drainDeadline):
			e.logger.Warnw("engine drain deadline exceeded, abandoning queued payloads",
				"remaining", e.QueueDepth())
		}
	})
}

func (e *Engine) run(id int, lane chan Task) {
	defer e.wg.Done()
	for task := range lane {
		e.process(task)
	}
	e.logger.Debugw("lane drained", "lane", id)
}

func (e *Engine) process(task Task) {
	defer func() {
		if r := recover(); r != nil {
			e.failed.Add(1)
			eventsFailed.Inc()
			e.logger.Errorw("panic processing payload",
				"source", models.JoinAddr(task.IP, task.Port), "panic", r)
		}
	}()

	start := time.Now()
	defer func() { handlerDuration.Observe(time.Since(start).Seconds()) }()

	e.packets.Add(1)
	packetsTotal.Inc()

	line := parser.Normalize(string(task.Payload))
	if line == "" {
		e.ignored.Add(1)
		eventsIgnored.Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	srv, firstContact, err := e.registry.Resolve(ctx, task.IP, task.Port)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownServer) {
			unknownServers.Inc()
			e.logger.Debugw("payload from unregistered source",
				"source", models.JoinAddr(task.IP, task.Port))
			return
		}
		e.failed.Add(1)
		eventsFailed.Inc()
		e.logger.Errorw("server resolution failed",
			"source", models.JoinAddr(task.IP, task.Port), "error", err)
		return
	}
	// In production the first packet only authenticates the server;
	// the line itself is not parsed.
	if firstContact && !e.cfg.SkipAuth {
		e.logger.Infow("server authenticated", "serverId", srv.ID, "source", srv.Addr())
		return
	}

	if e.archive != nil {
		e.archive.Record(task.ReceivedAt, srv.ID, models.JoinAddr(task.IP, task.Port), line)
	}

	p := e.parserFor(srv.Game)
	if !p.CanParse(line) {
		e.ignored.Add(1)
		eventsIgnored.Inc()
		return
	}
	ev, err := p.Parse(line, srv.ID)
	if err != nil {
		e.ignored.Add(1)
		eventsIgnored.Inc()
		if !errors.Is(err, parser.ErrIgnored) && !errors.Is(err, parser.ErrUnsupported) {
			e.logger.Debugw("parse failed", "serverId", srv.ID, "error", err)
		}
		return
	}

	if !e.cfg.LogBots && involvesBot(ev) {
		e.ignored.Add(1)
		eventsIgnored.Inc()
		return
	}

	if err := e.resolveIdentities(ctx, srv.Game, ev); err != nil {
		e.failed.Add(1)
		eventsFailed.Inc()
		e.logger.Warnw("identity resolution failed", "serverId", srv.ID, "kind", ev.Kind, "error", err)
		return
	}

	e.parsed.Add(1)
	eventsParsed.Inc()

	if err := e.dispatch(ctx, srv, ev); err != nil {
		e.failed.Add(1)
		eventsFailed.Inc()
		e.logger.Errorw("event handling failed", "serverId", srv.ID, "kind", ev.Kind, "error", err)
	}
}

func (e *Engine) parserFor(game string) parser.Parser {
	e.parserMu.Lock()
	defer e.parserMu.Unlock()
	p, ok := e.parsers[game]
	if !ok {
		p = parser.New(game, e.logger)
		e.parsers[game] = p
	}
	return p
}

func involvesBot(ev *models.Event) bool {
	return (ev.Actor != nil && ev.Actor.Bot) || (ev.Target != nil && ev.Target.Bot)
}

func (e *Engine) resolveIdentities(ctx context.Context, game string, ev *models.Event) error {
	for _, meta := range []*models.PlayerMeta{ev.Actor, ev.Target} {
		if meta == nil || meta.SteamID == "" {
			continue
		}
		if err := e.resolver.ResolveMeta(ctx, meta, game); err != nil {
			return err
		}
	}
	return nil
}

// dispatch runs persist, server-stats and the per-kind handler chain.
func (e *Engine) dispatch(ctx context.Context, srv *models.Server, ev *models.Event) error {
	game := srv.Game

	if err := e.handlers.Persister.Persist(ctx, game, ev); err != nil {
		return err
	}

	// Match runs before server-stats for round/map lifecycle so
	// ROUND_END carries its annotation when the delta is computed.
	switch ev.Kind {
	case models.EventPlayerKill:
		if err := e.handlers.Match.Handle(ctx, game, ev); err != nil {
			return err
		}
		if err := e.serverStats(ctx, ev); err != nil {
			return err
		}
		if err := e.handlers.Player.Handle(ctx, game, ev); err != nil {
			return err
		}
		return e.handlers.Weapon.HandleKill(ctx, game, ev)

	case models.EventPlayerSuicide, models.EventPlayerTeamkill:
		if err := e.handlers.Match.Handle(ctx, game, ev); err != nil {
			return err
		}
		if err := e.serverStats(ctx, ev); err != nil {
			return err
		}
		return e.handlers.Player.Handle(ctx, game, ev)

	case models.EventPlayerKillAssist:
		if err := e.serverStats(ctx, ev); err != nil {
			return err
		}
		return e.handlers.Match.Handle(ctx, game, ev)

	case models.EventPlayerConnect, models.EventPlayerDisconnect, models.EventPlayerEntry,
		models.EventPlayerChangeTeam, models.EventPlayerChangeRole, models.EventPlayerChangeName:
		if err := e.serverStats(ctx, ev); err != nil {
			return err
		}
		return e.handlers.Player.Handle(ctx, game, ev)

	case models.EventRoundStart, models.EventTeamWin, models.EventMapChange:
		if err := e.handlers.Match.Handle(ctx, game, ev); err != nil {
			return err
		}
		return e.serverStats(ctx, ev)

	case models.EventRoundEnd:
		if err := e.handlers.Match.Handle(ctx, game, ev); err != nil {
			return err
		}
		if err := e.serverStats(ctx, ev); err != nil {
			return err
		}
		return e.handlers.Ranking.HandleRoundEnd(ctx, ev)

	case models.EventWeaponFire, models.EventWeaponHit:
		if err := e.handlers.Match.Handle(ctx, game, ev); err != nil {
			return err
		}
		if err := e.serverStats(ctx, ev); err != nil {
			return err
		}
		return e.handlers.Player.Handle(ctx, game, ev)

	default:
		if ev.Kind.IsObjective() {
			if err := e.handlers.Match.Handle(ctx, game, ev); err != nil {
				return err
			}
		}
		return e.serverStats(ctx, ev)
	}
}

func (e *Engine) serverStats(ctx context.Context, ev *models.Event) error {
	if err := e.handlers.ServerStats.Handle(ctx, ev); err != nil {
		return fmt.Errorf("server stats: %w", err)
	}
	return nil
}

// report refreshes the slow-moving gauges.
func (e *Engine) report() {
	ticker := time.NewTicker(reportEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			queueDepthGauge.Set(float64(e.QueueDepth()))
			activePlayersGauge.Set(float64(e.handlers.ServerStats.ActivePlayers()))
		case <-e.stopped:
			return
		}
	}
}
