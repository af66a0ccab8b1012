package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/zsprackett/agent-office/internal/events"
	"github.com/zsprackett/agent-office/internal/office"
)

type leaderRow struct {
	Role events.Role
	Busy time.Duration
}

// leaderboardRows lists every role, busiest first. Ties keep AllRoles order.
func leaderboardRows(busy map[events.Role]time.Duration) []leaderRow {
	rows := make([]leaderRow, 0, len(events.AllRoles))
	for _, r := range events.AllRoles {
		rows = append(rows, leaderRow{Role: r, Busy: busy[r]})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Busy > rows[j].Busy })
	return rows
}

type appRow struct {
	ID string
	events.AppState
}

// appRows lists the watched apps in their fixed order.
func appRows(states events.AppStates) []appRow {
	rows := make([]appRow, 0, len(events.WatchedApps))
	for _, app := range events.WatchedApps {
		rows = append(rows, appRow{ID: app.ID, AppState: states[app.ID]})
	}
	return rows
}

// formatBusy renders d to whole seconds: "0s", "42s", "3m07s", "1h02m".
func formatBusy(d time.Duration) string {
	d = d.Truncate(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// statusLine renders the header: connection state, feed mode and event count.
func statusLine(bridgeState, mode string, count int) string {
	bIcon, bColor := StatusIcon(bridgeState)
	mIcon, mColor := StatusIcon(mode)
	return fmt.Sprintf(" [::b]agent office[::-]  [#%06x]%s[-] relay %s  [#%06x]%s[-] feed %s  [#%06x]%s events[-]",
		bColor.Hex(), bIcon, bridgeState,
		mColor.Hex(), mIcon, mode,
		ColorTextMuted.Hex(), humanize.Comma(int64(count)))
}

// currentText renders the active entry.
func currentText(v office.View) string {
	if !v.HasCurrent {
		return " [#6c7086]waiting for activity…[-]"
	}
	c := v.Current
	var b strings.Builder
	fmt.Fprintf(&b, " [#%06x::b]%s[-::-]  %s", RoleColor(c.Role).Hex(), c.Role, tview.Escape(c.Label))
	if c.Source == office.SourceFallback {
		b.WriteString("  [#6c7086](demo)[-]")
	}
	if c.Detail != "" {
		fmt.Fprintf(&b, "\n   %s", tview.Escape(c.Detail))
	}
	return b.String()
}

// historyLine renders one history record with its age relative to now.
func historyLine(r office.Record, now time.Time) string {
	what := r.Label
	if r.Detail != "" {
		what += " " + r.Detail
	}
	return fmt.Sprintf("[#%06x]%-8s[-] %s [#6c7086]%s[-]",
		RoleColor(r.Role).Hex(), r.Role, tview.Escape(what), humanize.RelTime(r.At, now, "ago", "from now"))
}
