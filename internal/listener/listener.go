// Package listener binds the UDP ingress socket and admits datagrams
// into the engine, enforcing packet size, UTF-8 validity and the
// per-source rate limit.
package listener

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/engine"
	"github.com/hlstatsd/hlstatsd/internal/models"
)

const janitorEvery = 5 * time.Minute

// Sink receives admitted payloads. Satisfied by *engine.Engine.
type Sink interface {
	Enqueue(task engine.Task) bool
}

// SourceInfo is the tracked state of one sending address.
type SourceInfo struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	PacketCount int64     `json:"packet_count"`
}

// Config holds the listener knobs.
type Config struct {
	Host          string
	Port          int
	MaxPacketSize int
	RatePerMinute int
	RateBurst     int
}

// Listener owns the UDP socket and its receive loop.
type Listener struct {
	cfg     Config
	sink    Sink
	limiter *Limiter
	logger  *zap.SugaredLogger

	conn *net.UDPConn
	wg   sync.WaitGroup

	stopOnce sync.Once
	stopped  chan struct{}

	mu      sync.Mutex
	sources map[string]*SourceInfo
}

func New(cfg Config, sink Sink, logger *zap.SugaredLogger) *Listener {
	return &Listener{
		cfg:     cfg,
		sink:    sink,
		limiter: NewLimiter(cfg.RatePerMinute, cfg.RateBurst),
		logger:  logger,
		stopped: make(chan struct{}),
		sources: make(map[string]*SourceInfo),
	}
}

// Start binds the socket and begins receiving. A bind failure is
// returned to the caller; it is fatal at startup.
func (l *Listener) Start() error {
	addr := &net.UDPAddr{IP: net.ParseIP(l.cfg.Host), Port: l.cfg.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("bind udp %s:%d: %w", l.cfg.Host, l.cfg.Port, err)
	}
	l.conn = conn

	l.wg.Add(2)
	go l.receive()
	go l.janitor()

	l.logger.Infow("udp listener started", "host", l.cfg.Host, "port", l.cfg.Port,
		"maxPacketSize", l.cfg.MaxPacketSize)
	return nil
}

// Stop unbinds the socket and waits for the receive loop to return.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopped)
		if l.conn != nil {
			l.conn.Close()
		}
		l.wg.Wait()
		l.logger.Info("udp listener stopped")
	})
}

// Sources returns a copy of the tracked source registry.
func (l *Listener) Sources() map[string]SourceInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]SourceInfo, len(l.sources))
	for k, v := range l.sources {
		out[k] = *v
	}
	return out
}

func (l *Listener) receive() {
	defer l.wg.Done()

	// One byte of headroom so an oversized datagram is detectable
	// rather than silently truncated.
	buf := make([]byte, l.cfg.MaxPacketSize+1)

	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.stopped:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Warnw("udp read failed", "error", err)
			continue
		}

		now := time.Now()
		ip := addr.IP.String()
		port := int32(addr.Port)
		source := models.JoinAddr(ip, port)

		if n > l.cfg.MaxPacketSize {
			l.logger.Warnw("oversized packet dropped", "source", source, "size", n)
			continue
		}
		if !l.limiter.Allow(source, now) {
			l.logger.Warnw("rate limit exceeded, dropping packet", "source", source)
			continue
		}
		if !utf8.Valid(buf[:n]) {
			l.logger.Warnw("non-utf8 packet dropped", "source", source)
			continue
		}

		l.track(source, now)

		payload := make([]byte, n)
		copy(payload, buf[:n])
		l.sink.Enqueue(engine.Task{Payload: payload, IP: ip, Port: port, ReceivedAt: now})
	}
}

// track updates the source registry and logs first sight.
func (l *Listener) track(source string, now time.Time) {
	l.mu.Lock()
	info, ok := l.sources[source]
	if !ok {
		info = &SourceInfo{FirstSeen: now}
		l.sources[source] = info
	}
	info.LastSeen = now
	info.PacketCount++
	l.mu.Unlock()

	if !ok {
		l.logger.Infow("new source", "source", source)
	}
}

// janitor evicts limiter windows and registry entries for sources
// unseen for an hour.
func (l *Listener) janitor() {
	defer l.wg.Done()

	ticker := time.NewTicker(janitorEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			evicted := l.limiter.Evict(now)

			l.mu.Lock()
			for source, info := range l.sources {
				if now.Sub(info.LastSeen) >= evictAfter {
					delete(l.sources, source)
				}
			}
			l.mu.Unlock()

			if evicted > 0 {
				l.logger.Debugw("evicted idle sources", "count", evicted)
			}
		case <-l.stopped:
			return
		}
	}
}
