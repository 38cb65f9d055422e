package connectivity

import (
	"testing"
	"time"
)

func TestObserveSeedDoesNotEmit(t *testing.T) {
	p := NewProber(nil, time.Second, time.Second)

	p.observe(true, true)

	if !p.Online() {
		t.Fatal("expected online after seed")
	}
	select {
	case online := <-p.Events():
		t.Fatalf("expected no event from seed, got %v", online)
	default:
	}
}

func TestObserveDebouncesShortFlaps(t *testing.T) {
	p := NewProber(nil, time.Second, time.Hour)
	p.observe(true, true)

	// A single failed probe starts the flip window but does not change
	// state.
	p.observe(false, false)
	if !p.Online() {
		t.Fatal("expected still online within debounce window")
	}

	// A success resets the window.
	p.observe(true, false)
	p.observe(false, false)
	if !p.Online() {
		t.Fatal("expected still online after reset flap")
	}
	select {
	case online := <-p.Events():
		t.Fatalf("expected no event during flap, got %v", online)
	default:
	}
}

func TestObserveCommitsFlipAfterDebounce(t *testing.T) {
	p := NewProber(nil, time.Second, time.Second)
	p.observe(true, true)

	p.observe(false, false)
	p.flipSince = time.Now().Add(-2 * time.Second)
	p.observe(false, false)

	if p.Online() {
		t.Fatal("expected offline after sustained failures")
	}
	select {
	case online := <-p.Events():
		if online {
			t.Fatal("expected offline event")
		}
	default:
		t.Fatal("expected an offline edge event")
	}
}

func TestObserveEmitsOneEdgePerFlip(t *testing.T) {
	p := NewProber(nil, time.Second, time.Second)
	p.observe(false, true)

	p.observe(true, false)
	p.flipSince = time.Now().Add(-2 * time.Second)
	p.observe(true, false)
	p.observe(true, false)
	p.observe(true, false)

	select {
	case online := <-p.Events():
		if !online {
			t.Fatal("expected online event")
		}
	default:
		t.Fatal("expected an online edge event")
	}
	select {
	case online := <-p.Events():
		t.Fatalf("expected a single edge, got extra event %v", online)
	default:
	}
}

func TestManualMonitor(t *testing.T) {
	m := NewManual(false)
	if m.Online() {
		t.Fatal("expected offline")
	}

	m.SetOnline(true)
	if !m.Online() {
		t.Fatal("expected online")
	}
	select {
	case online := <-m.Events():
		if !online {
			t.Fatal("expected online event")
		}
	default:
		t.Fatal("expected an event")
	}
}
