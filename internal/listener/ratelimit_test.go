package listener

import (
	"testing"
	"time"
)

var limitBase = time.Unix(1721082790, 0)

func TestBurstBoundary(t *testing.T) {
	l := NewLimiter(2000, 200)

	// 200 packets inside one second are admitted; the 201st is not.
	for i := 0; i < 200; i++ {
		at := limitBase.Add(time.Duration(i) * time.Millisecond)
		if !l.Allow("10.0.0.1:27015", at) {
			t.Fatalf("packet %d refused inside burst budget", i)
		}
	}
	if l.Allow("10.0.0.1:27015", limitBase.Add(500*time.Millisecond)) {
		t.Error("201st packet within one second must be dropped")
	}

	// Once the window slides past the early packets, admission resumes.
	if !l.Allow("10.0.0.1:27015", limitBase.Add(1100*time.Millisecond)) {
		t.Error("packet after burst window slid must be admitted")
	}
}

func TestPerMinuteBoundary(t *testing.T) {
	l := NewLimiter(2000, 200)

	// Spread 2000 packets over the minute without tripping the burst.
	for i := 0; i < 2000; i++ {
		at := limitBase.Add(time.Duration(i) * 25 * time.Millisecond)
		if !l.Allow("10.0.0.1:27015", at) {
			t.Fatalf("packet %d refused inside minute budget", i)
		}
	}
	// 2000 * 25ms = 50s: the window still holds all of them.
	if l.Allow("10.0.0.1:27015", limitBase.Add(55*time.Second)) {
		t.Error("2001st packet within the minute must be dropped")
	}
	// After the window slides, capacity frees up.
	if !l.Allow("10.0.0.1:27015", limitBase.Add(70*time.Second)) {
		t.Error("packet after minute window slid must be admitted")
	}
}

func TestSourcesIndependent(t *testing.T) {
	l := NewLimiter(10, 5)

	for i := 0; i < 5; i++ {
		at := limitBase.Add(time.Duration(i) * 10 * time.Millisecond)
		if !l.Allow("10.0.0.1:27015", at) {
			t.Fatal("source A refused")
		}
	}
	if l.Allow("10.0.0.1:27015", limitBase.Add(60*time.Millisecond)) {
		t.Error("source A over burst")
	}
	if !l.Allow("10.0.0.2:27015", limitBase.Add(60*time.Millisecond)) {
		t.Error("source B must have its own window")
	}
}

func TestEvictIdleSources(t *testing.T) {
	l := NewLimiter(100, 10)

	l.Allow("10.0.0.1:27015", limitBase)
	l.Allow("10.0.0.2:27015", limitBase.Add(30*time.Minute))

	if got := l.Evict(limitBase.Add(61 * time.Minute)); got != 1 {
		t.Errorf("evicted %d sources, want 1", got)
	}
	if got := l.Tracked(); got != 1 {
		t.Errorf("tracked = %d, want 1", got)
	}

	// The evicted source starts fresh.
	if !l.Allow("10.0.0.1:27015", limitBase.Add(62*time.Minute)) {
		t.Error("evicted source must be admitted again")
	}
}
