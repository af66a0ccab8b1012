// Package office reduces the agent event stream into what a viewer shows:
// the current activity, recent history, per-role busy time and app states.
// Director decides whether that stream comes from the relay or from the
// built-in script.
package office

import (
	"slices"
	"sync"
	"time"

	"github.com/zsprackett/agent-office/internal/events"
)

// Source tells where an applied entry came from.
type Source int

const (
	SourceLive Source = iota
	SourceFallback
)

func (s Source) String() string {
	if s == SourceFallback {
		return "fallback"
	}
	return "live"
}

// Entry is one activity: a tool run, or a thinking pause when Tool is empty.
type Entry struct {
	Tool   string
	Role   events.Role
	Label  string
	Detail string
}

// Busy reports whether the entry is a tool run.
func (e Entry) Busy() bool { return e.Tool != "" }

// EntryFromEvent re-derives the role from the tool name with the same table
// the relay uses, so live and scripted entries agree.
func EntryFromEvent(e events.AgentEvent) Entry {
	if e.Kind == events.ToolFinished {
		return Entry{
			Role:   events.RoleClaude,
			Label:  events.ThinkingLabel,
			Detail: events.ProcessingDetail,
		}
	}
	label := e.Label
	if label == "" {
		label = e.Tool
	}
	return Entry{
		Tool:   e.Tool,
		Role:   events.RoleOf(e.Tool),
		Label:  label,
		Detail: e.Detail,
	}
}

// Record is an applied entry with its arrival instant.
type Record struct {
	Entry
	Source Source
	At     time.Time
}

// View is an immutable copy of the board handed to listeners.
type View struct {
	Current    Record
	HasCurrent bool
	History    []Record
	Busy       map[events.Role]time.Duration
}

// Board accumulates the entry stream. Busy time for a role grows only when
// one of its tool runs is superseded; it never shrinks or resets.
type Board struct {
	mu          sync.Mutex
	clock       Clock
	current     Record
	hasCurrent  bool
	activeSince time.Time
	history     History
	busy        map[events.Role]time.Duration
	listeners   []func(View)
}

func NewBoard(clock Clock) *Board {
	if clock == nil {
		clock = RealClock()
	}
	return &Board{
		clock: clock,
		busy:  make(map[events.Role]time.Duration),
	}
}

// OnChange registers fn to receive a View after every Apply. fn runs on the
// applying goroutine after the board lock is released, so it may read the
// board. When a Director drives the board, fn runs under the director's lock
// and must not call back into the Director.
func (b *Board) OnChange(fn func(View)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Apply makes e the current entry.
func (b *Board) Apply(e Entry, src Source) {
	b.mu.Lock()
	now := b.clock.Now()
	if b.hasCurrent && b.current.Busy() {
		if d := now.Sub(b.activeSince); d > 0 {
			b.busy[b.current.Role] += d
		}
	}
	rec := Record{Entry: e, Source: src, At: now}
	b.current = rec
	b.hasCurrent = true
	if e.Busy() {
		b.activeSince = now
	} else {
		b.activeSince = time.Time{}
	}
	b.history.Push(rec)

	view := b.viewLocked()
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}

// View returns the current state.
func (b *Board) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

// BusyTime returns the settled busy duration for role.
func (b *Board) BusyTime(role events.Role) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy[role]
}

func (b *Board) viewLocked() View {
	busy := make(map[events.Role]time.Duration, len(b.busy))
	for r, d := range b.busy {
		busy[r] = d
	}
	return View{
		Current:    b.current,
		HasCurrent: b.hasCurrent,
		History:    b.history.Items(),
		Busy:       busy,
	}
}
