// Package tick implements the Timing Fabric (C1): the MCU's hardware timer
// allocation is modeled as two kinds of Go timer wrapper — a periodic Source
// for the 100-500Hz profiler/limit poll, and a PulseTimer for the per-axis
// step cadence whose period is rewritten continuously by the profiler.
package tick

import (
	"sync"
	"sync/atomic"
	"time"
)

// Source is the periodic tick that paces profiler updates and limit
// polling. It mirrors the single volatile "tick pending" flag of §2: C()
// is a capacity-1 channel, so a tick that arrives while the main loop is
// still processing the previous one is coalesced rather than queued.
type Source struct {
	ticker *time.Ticker
	c      chan struct{}
	stop   chan struct{}
	once   sync.Once
}

// NewSource starts a periodic source at the given rate. hz should fall in
// the 100-500Hz range called out in §4.2/§4.4; callers outside that range
// are accepted (the contract only warns about fidelity, not safety).
func NewSource(hz int) *Source {
	if hz <= 0 {
		hz = 200
	}
	s := &Source{
		ticker: time.NewTicker(time.Second / time.Duration(hz)),
		c:      make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Source) run() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C:
			select {
			case s.c <- struct{}{}:
			default:
				// previous tick not yet consumed; coalesce.
			}
		}
	}
}

// C returns the tick-pending channel; a receive corresponds to the main
// loop observing tick_pending and servicing it.
func (s *Source) C() <-chan struct{} { return s.c }

// Stop halts the underlying ticker. Safe to call more than once.
func (s *Source) Stop() {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.stop)
	})
}

// guardBand is the fraction of the current period SetPeriod computes as its
// guard window. Any positive window defers the change, so in practice every
// changed period waits for the next fire.
const guardBand = 0.05

// PulseTimer drives one axis's step cadence. The "compare register
// rewrite" of §4.1 becomes a pending-duration slot guarded by a mutex: a
// changed period is stored there and takes effect when the timer next
// fires. The period already running is never shortened or stretched, and
// the time remaining until the next fire is not consulted.
type PulseTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	period  time.Duration
	pending time.Duration
	c       chan struct{}
	stopped atomic.Bool
}

// NewPulseTimer creates a stopped timer; call Start to arm it with an
// initial cadence.
func NewPulseTimer() *PulseTimer {
	return &PulseTimer{c: make(chan struct{}, 1)}
}

// C yields once per period.
func (p *PulseTimer) C() <-chan struct{} { return p.c }

// Start arms the timer at the given period and begins firing.
func (p *PulseTimer) Start(period time.Duration) {
	p.mu.Lock()
	p.period = period
	p.stopped.Store(false)
	p.timer = time.AfterFunc(period, p.fire)
	p.mu.Unlock()
}

func (p *PulseTimer) fire() {
	if p.stopped.Load() {
		return
	}
	select {
	case p.c <- struct{}{}:
	default:
	}
	p.mu.Lock()
	next := p.period
	if p.pending > 0 {
		next = p.pending
		p.period = p.pending
		p.pending = 0
	}
	if !p.stopped.Load() {
		p.timer.Reset(next)
	}
	p.mu.Unlock()
}

// SetPeriod reprograms the cadence. Once the timer has been started, a
// changed period is deferred to the next fire rather than applied to the
// period in progress; it is not applied immediately even when the next
// fire is far away.
func (p *PulseTimer) SetPeriod(period time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.period > 0 {
		remainingGuard := time.Duration(float64(p.period) * guardBand)
		if remainingGuard > 0 && period != p.period {
			p.pending = period
			return
		}
	}
	p.period = period
}

// Stop disables the timer; it may be restarted with Start.
func (p *PulseTimer) Stop() {
	p.stopped.Store(true)
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
}
