package office

import (
	"math"
	"slices"
	"sync"

	"github.com/zsprackett/agent-office/internal/events"
)

// Apps holds the last known state of every watched app.
type Apps struct {
	mu        sync.Mutex
	states    events.AppStates
	listeners []func(events.AppStates)
}

func NewApps() *Apps {
	return &Apps{states: events.InactiveStates()}
}

// OnChange registers fn to receive a copy of the states after every change.
// The same rules as Board.OnChange apply: reading Apps is fine, calling into a
// Director is not.
func (a *Apps) OnChange(fn func(events.AppStates)) {
	a.mu.Lock()
	a.listeners = append(a.listeners, fn)
	a.mu.Unlock()
}

// Merge applies a possibly partial update. Apps missing from s are left as
// they were; ids outside the watched set are ignored.
func (a *Apps) Merge(s events.AppStates) {
	a.mu.Lock()
	for id, st := range s {
		if !events.IsWatchedApp(id) {
			continue
		}
		st.CPU = math.Max(0, math.Min(events.MaxCPU, st.CPU))
		a.states[id] = st
	}
	a.notifyLocked()
}

// Jitter advances the demo random walk by one step.
func (a *Apps) Jitter(rnd func() float64) {
	a.mu.Lock()
	for _, app := range events.WatchedApps {
		st := a.states[app.ID]
		flip := rnd()
		switch {
		case !st.Active && flip < 0.12:
			st.Active = true
			st.CPU = math.Round(5 + rnd()*30)
		case st.Active && flip < 0.08:
			st.Active = false
			st.CPU = 0
		case st.Active:
			st.CPU = math.Max(1, math.Min(95, st.CPU+math.Round((rnd()-0.5)*8)))
		}
		a.states[app.ID] = st
	}
	a.notifyLocked()
}

// States returns a copy of the current states.
func (a *Apps) States() events.AppStates {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.states.Clone()
}

// notifyLocked releases a.mu before calling listeners.
func (a *Apps) notifyLocked() {
	snap := a.states.Clone()
	listeners := slices.Clone(a.listeners)
	a.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
