package connectivity

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pinger is the reachability check the prober runs; the remote store
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober polls the remote store on an interval and tracks online state
// from the outcome. A state flip is only committed after it has been
// observed for at least the debounce window, so short flaps are absorbed
// while a real offline period still produces exactly one edge each way.
type Prober struct {
	pinger   Pinger
	interval time.Duration
	debounce time.Duration

	mu        sync.Mutex
	online    bool
	flipSince time.Time
	events    chan bool
}

func NewProber(pinger Pinger, interval time.Duration, debounce time.Duration) *Prober {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if debounce < time.Second {
		debounce = time.Second
	}
	return &Prober{
		pinger:   pinger,
		interval: interval,
		debounce: debounce,
		events:   make(chan bool, 1),
	}
}

func (p *Prober) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func (p *Prober) Events() <-chan bool {
	return p.events
}

// Run probes until the context is cancelled. The first probe seeds the
// state without emitting an event.
func (p *Prober) Run(ctx context.Context) {
	p.observe(p.probe(ctx), true)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.observe(p.probe(ctx), false)
		}
	}
}

func (p *Prober) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()
	return p.pinger.Ping(probeCtx) == nil
}

func (p *Prober) observe(online bool, seed bool) {
	p.mu.Lock()

	if seed {
		p.online = online
		p.flipSince = time.Time{}
		p.mu.Unlock()
		return
	}

	if online == p.online {
		p.flipSince = time.Time{}
		p.mu.Unlock()
		return
	}

	now := time.Now()
	if p.flipSince.IsZero() {
		p.flipSince = now
	}
	if now.Sub(p.flipSince) < p.debounce {
		p.mu.Unlock()
		return
	}

	p.online = online
	p.flipSince = time.Time{}
	p.mu.Unlock()

	log.Printf("[connectivity] remote store %s", stateWord(online))
	select {
	case p.events <- online:
	default:
	}
}

func stateWord(online bool) string {
	if online {
		return "reachable"
	}
	return "unreachable"
}
