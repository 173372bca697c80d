package counterclient

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Timer is the cancellable handle a scheduler returns.
type Timer interface {
	Stop() bool
}

// ScheduleFunc schedules f after d and returns a cancellable handle.
// The default wraps time.AfterFunc; tests inject a fake clock.
type ScheduleFunc func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Poller keeps client aggregates approximately fresh. Each fetch,
// successful or not, schedules the next one after base ± jitter so
// simultaneously opened clients decorrelate instead of polling in
// lockstep. While hidden the poller is fully stopped; becoming visible
// fetches immediately and resumes scheduling.
type Poller struct {
	base   time.Duration
	jitter time.Duration
	fetch  func(ctx context.Context) error

	schedule ScheduleFunc
	rng      *rand.Rand

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	timer   Timer
	visible bool
	running bool
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithSchedule overrides the timer source for fake-clock tests.
func WithSchedule(s ScheduleFunc) PollerOption {
	return func(p *Poller) {
		p.schedule = s
	}
}

// WithJitterSeed makes the jitter sequence deterministic.
func WithJitterSeed(seed int64) PollerOption {
	return func(p *Poller) {
		p.rng = rand.New(rand.NewSource(seed))
	}
}

// NewPoller creates a Poller. fetch errors are swallowed; the next poll
// simply tries again.
func NewPoller(base, jitter time.Duration, fetch func(ctx context.Context) error, opts ...PollerOption) *Poller {
	p := &Poller{
		base:     base,
		jitter:   jitter,
		fetch:    fetch,
		schedule: afterFunc,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling with an immediate fetch. The poller starts in the
// visible state.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.visible = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.poll()
}

// Stop halts polling and cancels any scheduled fetch.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.cancel()
}

// SetVisible feeds the visibility signal. Every change cancels the
// scheduled poll; turning visible fetches right away and reschedules.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	if !p.running || p.visible == visible {
		p.mu.Unlock()
		return
	}
	p.visible = visible
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	if visible {
		p.poll()
	}
}

// poll runs one fetch and schedules the next.
func (p *Poller) poll() {
	p.mu.Lock()
	if !p.running || !p.visible {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.mu.Unlock()

	_ = p.fetch(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || !p.visible {
		return
	}
	p.timer = p.schedule(p.nextInterval(), p.poll)
}

// nextInterval returns base + uniform(-jitter, +jitter). Callers hold mu.
func (p *Poller) nextInterval() time.Duration {
	if p.jitter <= 0 {
		return p.base
	}
	offset := time.Duration(p.rng.Int63n(int64(2*p.jitter))) - p.jitter
	d := p.base + offset
	if d < 0 {
		d = 0
	}
	return d
}
