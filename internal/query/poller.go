package query

import (
	"sync"
	"time"
)

// Ticker abstracts time.Ticker so tests can drive the poller with a fake
// clock.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Clock hands out tickers.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct{ t *time.Ticker }

func (t realTicker) Chan() <-chan time.Time { return t.t.C }
func (t realTicker) Stop()                  { t.t.Stop() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// RealClock is the wall-clock implementation used outside of tests.
func RealClock() Clock { return realClock{} }

// Poller triggers a refetch at a fixed period while started. The view that
// starts a poller owns the handle and must Stop it on every exit path --
// clearing the selection or tearing the view down -- or the tick keeps
// refetching a stale key forever.
type Poller struct {
	clock    Clock
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

func NewPoller(interval time.Duration, clock Clock) *Poller {
	if clock == nil {
		clock = RealClock()
	}

	return &Poller{clock: clock, interval: interval}
}

// Start begins ticking, invoking fn once per period until Stop. Starting an
// already-running poller restarts it.
func (p *Poller) Start(fn func()) {
	p.Stop()

	p.mu.Lock()
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	ticker := p.clock.NewTicker(p.interval)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				fn()
			case <-stop:
				return
			}
		}
	}()
}

// Stop tears the poller down. Safe to call when not running, and safe to
// call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	p.wg.Wait()
}
