package appwatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zsprackett/agent-office/internal/events"
)

// Interval is the fixed period between app-state pushes.
const Interval = 4 * time.Second

// Audience reports how many viewers are connected.
type Audience interface {
	Count() int
}

// Poller samples on a fixed timer and pushes app-state frames to viewers.
type Poller struct {
	sampler     *Sampler
	audience    Audience
	broadcaster events.Broadcaster
	interval    time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	logger      *slog.Logger
}

func NewPoller(sampler *Sampler, audience Audience, broadcaster events.Broadcaster, logger *slog.Logger) *Poller {
	return &Poller{
		sampler:     sampler,
		audience:    audience,
		broadcaster: broadcaster,
		interval:    Interval,
		stop:        make(chan struct{}),
		logger:      logger,
	}
}

func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.RunOnce()
			}
		}
	}()
}

func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// RunOnce runs a single tick synchronously. The sample is always taken so the
// cache stays warm for newcomers; the push is skipped when nobody is watching.
func (p *Poller) RunOnce() {
	states := p.sampler.Sample(context.Background())
	if p.audience != nil && p.audience.Count() == 0 {
		return
	}
	if p.broadcaster == nil {
		return
	}
	p.broadcaster.Broadcast(events.NewAppStateMessage(states))
	p.logger.Debug("appwatch: pushed app states", "active", countActive(states))
}

func countActive(states events.AppStates) int {
	n := 0
	for _, st := range states {
		if st.Active {
			n++
		}
	}
	return n
}
