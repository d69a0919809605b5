package listener

import (
	"sync"
	"time"
)

const (
	burstWindow  = time.Second
	minuteWindow = time.Minute
	evictAfter   = time.Hour
)

// window holds the admission timestamps of one source inside the
// rolling minute.
type window struct {
	times    []time.Time
	lastSeen time.Time
}

// prune drops timestamps older than the rolling minute.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-minuteWindow)
	i := 0
	for i < len(w.times) && !w.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.times = append(w.times[:0], w.times[i:]...)
	}
}

// Limiter is a per-source sliding-window rate limiter with a separate
// one-second burst threshold.
type Limiter struct {
	perMinute int
	burst     int

	mu      sync.Mutex
	windows map[string]*window
}

func NewLimiter(perMinute, burst int) *Limiter {
	return &Limiter{
		perMinute: perMinute,
		burst:     burst,
		windows:   make(map[string]*window),
	}
}

// Allow reports whether a packet from source may pass at now, and
// books it if so.
func (l *Limiter) Allow(source string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[source]
	if !ok {
		w = &window{}
		l.windows[source] = w
	}
	w.lastSeen = now
	w.prune(now)

	if len(w.times) >= l.perMinute {
		return false
	}

	burstCutoff := now.Add(-burstWindow)
	recent := 0
	for i := len(w.times) - 1; i >= 0; i-- {
		if w.times[i].After(burstCutoff) {
			recent++
		} else {
			break
		}
	}
	if recent >= l.burst {
		return false
	}

	w.times = append(w.times, now)
	return true
}

// Evict drops sources idle longer than an hour and returns how many
// were removed.
func (l *Limiter) Evict(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for source, w := range l.windows {
		if now.Sub(w.lastSeen) >= evictAfter {
			delete(l.windows, source)
			evicted++
		}
	}
	return evicted
}

// Tracked reports the number of sources with live windows.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
