package office

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/zsprackett/agent-office/internal/bridge"
	"github.com/zsprackett/agent-office/internal/events"
)

// GracePeriod is how long the director waits for live data before it starts
// the scripted fallback.
const GracePeriod = 2 * time.Second

// Mode describes who is currently feeding the board.
type Mode int

const (
	ModeWaiting Mode = iota
	ModeLive
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeFallback:
		return "demo"
	default:
		return "waiting"
	}
}

// DirectorOption configures a Director.
type DirectorOption func(*Director)

// WithClock injects a custom clock for testing.
func WithClock(c Clock) DirectorOption {
	return func(d *Director) { d.clock = c }
}

// WithRand replaces the dwell-time randomness. fn must return values in [0,1).
func WithRand(fn func() float64) DirectorOption {
	return func(d *Director) { d.rnd = fn }
}

// Director hands the board between two producers: live relay frames and the
// fallback script. One mutex covers the live flag, the fallback flag, the
// timers and every apply, so a fallback tick that fired just before live data
// arrived finds itself stale and does nothing.
type Director struct {
	mu     sync.Mutex
	clock  Clock
	rnd    func() float64
	board  *Board
	apps   *Apps
	logger *slog.Logger

	started  bool
	stopped  bool
	live     bool
	fallback bool
	gen      uint64 // bumped whenever running fallback chains must die
	idx      int

	grace       Timer
	scriptTimer Timer
	appsTimer   Timer
}

func NewDirector(board *Board, apps *Apps, logger *slog.Logger, opts ...DirectorOption) *Director {
	d := &Director{
		clock:  RealClock(),
		rnd:    rand.Float64,
		board:  board,
		apps:   apps,
		logger: logger,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Attach subscribes d to the relay frames it understands.
func (d *Director) Attach(b *bridge.Bridge) {
	b.On(events.TypeToolStarted, d.HandleMessage).
		On(events.TypeToolFinished, d.HandleMessage).
		On(events.TypeAppState, d.HandleMessage).
		On(bridge.TypeDisconnected, func(bridge.Message) { d.HandleDisconnect() })
}

// Start arms the grace timer. Later calls are no-ops.
func (d *Director) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	d.grace = d.clock.AfterFunc(GracePeriod, d.graceExpired)
}

// Stop cancels every pending timer. Idempotent.
func (d *Director) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.fallback = false
	d.gen++
	d.stopTimersLocked()
}

// Mode reports who is feeding the board.
func (d *Director) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.live:
		return ModeLive
	case d.fallback:
		return ModeFallback
	default:
		return ModeWaiting
	}
}

// HandleMessage applies a live relay frame. Any recognized frame switches
// the director to live and kills the fallback in the same step.
func (d *Director) HandleMessage(m bridge.Message) {
	if !events.IsKnownType(m.Type) {
		return
	}
	isApps := m.Type == events.TypeAppState
	var (
		entry  Entry
		states events.AppStates
	)
	if isApps {
		var msg events.AppStateMessage
		if err := m.Decode(&msg); err != nil {
			d.logger.Debug("director: bad appState frame", "err", err)
			return
		}
		states = msg.States
	} else {
		var ev events.AgentEvent
		if err := m.Decode(&ev); err != nil {
			d.logger.Debug("director: bad agent frame", "err", err)
			return
		}
		entry = EntryFromEvent(ev)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.goLiveLocked()
	if isApps {
		d.apps.Merge(states)
		return
	}
	d.board.Apply(entry, SourceLive)
}

// HandleDisconnect resumes the fallback right away if live data had been
// flowing. There is no second grace period.
func (d *Director) HandleDisconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || !d.live {
		return
	}
	d.live = false
	d.logger.Info("director: relay lost, resuming demo")
	if !d.fallback {
		d.startFallbackLocked()
	}
}

func (d *Director) graceExpired() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.live || d.fallback {
		return
	}
	d.logger.Info("director: no relay, using demo")
	d.startFallbackLocked()
}

func (d *Director) goLiveLocked() {
	if d.live {
		return
	}
	d.live = true
	d.fallback = false
	d.gen++
	d.stopTimersLocked()
	d.logger.Info("director: live")
}

func (d *Director) startFallbackLocked() {
	d.fallback = true
	d.gen++
	gen := d.gen
	d.scriptStepLocked(gen)
	d.appsStepLocked(gen)
}

func (d *Director) scriptStepLocked(gen uint64) {
	e := Script[d.idx%len(Script)]
	d.idx++
	d.board.Apply(e, SourceFallback)
	d.scriptTimer = d.clock.AfterFunc(Dwell(e, d.rnd()), func() { d.scriptTick(gen) })
}

func (d *Director) scriptTick(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.currentLocked(gen) {
		return
	}
	d.scriptStepLocked(gen)
}

func (d *Director) appsStepLocked(gen uint64) {
	d.apps.Jitter(d.rnd)
	delay := 2*time.Second + time.Duration(d.rnd()*2000)*time.Millisecond
	d.appsTimer = d.clock.AfterFunc(delay, func() { d.appsTick(gen) })
}

func (d *Director) appsTick(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.currentLocked(gen) {
		return
	}
	d.appsStepLocked(gen)
}

// currentLocked reports whether a fallback chain started at gen may still run.
func (d *Director) currentLocked(gen uint64) bool {
	return !d.stopped && d.fallback && gen == d.gen
}

func (d *Director) stopTimersLocked() {
	stopTimer(d.grace)
	stopTimer(d.scriptTimer)
	stopTimer(d.appsTimer)
	d.grace, d.scriptTimer, d.appsTimer = nil, nil, nil
}
