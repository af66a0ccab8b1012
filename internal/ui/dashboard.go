// Package ui is the terminal dashboard shown by the watch command.
package ui

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/agent-office/internal/bridge"
	"github.com/zsprackett/agent-office/internal/events"
	"github.com/zsprackett/agent-office/internal/office"
)

// refreshInterval keeps relative ages in the history pane current.
const refreshInterval = time.Second

// ModeSource reports who feeds the board. Satisfied by *office.Director.
type ModeSource interface {
	Mode() office.Mode
}

// StateSource reports the relay connection state. Satisfied by *bridge.Bridge.
type StateSource interface {
	State() bridge.State
}

type Dashboard struct {
	tapp    *tview.Application
	header  *tview.TextView
	current *tview.TextView
	leaders *tview.Table
	apps    *tview.Table
	history *tview.TextView
	footer  *tview.TextView

	board     *office.Board
	appStates *office.Apps
	mode      ModeSource
	conn      StateSource
	logger    *slog.Logger
	now       func() time.Time

	changes  atomic.Int64
	dirty    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func NewDashboard(board *office.Board, apps *office.Apps, mode ModeSource, conn StateSource, logger *slog.Logger) *Dashboard {
	d := &Dashboard{
		board:     board,
		appStates: apps,
		mode:      mode,
		conn:      conn,
		logger:    logger,
		now:       time.Now,
		dirty:     make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}

	d.tapp = tview.NewApplication()

	d.header = tview.NewTextView().SetDynamicColors(true)
	d.header.SetBackgroundColor(ColorBackgroundPanel)

	d.current = tview.NewTextView().SetDynamicColors(true).SetWrap(true)
	d.current.SetBackgroundColor(ColorBackground)
	d.current.SetBorder(true).SetTitle(" now ").SetBorderColor(ColorBorder)

	d.leaders = tview.NewTable()
	d.leaders.SetBackgroundColor(ColorBackground)
	d.leaders.SetBorder(true).SetTitle(" busy time ").SetBorderColor(ColorBorder)

	d.apps = tview.NewTable()
	d.apps.SetBackgroundColor(ColorBackground)
	d.apps.SetBorder(true).SetTitle(" apps ").SetBorderColor(ColorBorder)

	d.history = tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	d.history.SetBackgroundColor(ColorBackground)
	d.history.SetBorder(true).SetTitle(" recent ").SetBorderColor(ColorBorder)

	d.footer = tview.NewTextView().SetDynamicColors(true)
	d.footer.SetBackgroundColor(ColorBackgroundPanel)
	d.footer.SetText("[green]q[-] quit")

	side := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.leaders, 0, 1, false).
		AddItem(d.apps, 0, 1, false)

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.current, 4, 0, false).
		AddItem(d.history, 0, 1, false)

	content := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(left, 0, 65, false).
		AddItem(side, 0, 35, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.header, 1, 0, false).
		AddItem(content, 0, 1, false).
		AddItem(d.footer, 1, 0, false)

	d.tapp.SetRoot(root, true).EnableMouse(false)
	d.tapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' || event.Key() == tcell.KeyEscape {
			d.Stop()
			return nil
		}
		return event
	})

	// Listeners fire on producer goroutines; only mark dirty there.
	board.OnChange(func(office.View) {
		d.changes.Add(1)
		d.markDirty()
	})
	apps.OnChange(func(events.AppStates) { d.markDirty() })

	d.render()
	return d
}

// Run blocks until the user quits or Stop is called.
func (d *Dashboard) Run() error {
	go d.loop()
	defer d.Stop()
	return d.tapp.Run()
}

// Stop ends Run. Idempotent.
func (d *Dashboard) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		d.tapp.Stop()
	})
}

func (d *Dashboard) markDirty() {
	select {
	case d.dirty <- struct{}{}:
	default:
	}
}

func (d *Dashboard) loop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-d.dirty:
		case <-ticker.C:
		}
		d.tapp.QueueUpdateDraw(d.render)
	}
}

// render copies the models into the widgets. Runs on the UI goroutine.
func (d *Dashboard) render() {
	view := d.board.View()
	now := d.now()

	d.header.SetText(statusLine(d.conn.State().String(), d.mode.Mode().String(), int(d.changes.Load())))
	d.current.SetText(currentText(view))

	d.history.Clear()
	for i, rec := range view.History {
		if i > 0 {
			fmt.Fprintln(d.history)
		}
		fmt.Fprint(d.history, historyLine(rec, now))
	}

	d.leaders.Clear()
	for i, row := range leaderboardRows(view.Busy) {
		d.leaders.SetCell(i, 0, tview.NewTableCell(fmt.Sprintf("%d.", i+1)).SetTextColor(ColorTextMuted))
		d.leaders.SetCell(i, 1, tview.NewTableCell(string(row.Role)).SetTextColor(RoleColor(row.Role)).SetExpansion(1))
		d.leaders.SetCell(i, 2, tview.NewTableCell(formatBusy(row.Busy)).SetTextColor(ColorText).SetAlign(tview.AlignRight))
	}

	d.apps.Clear()
	for i, row := range appRows(d.appStates.States()) {
		icon, color, cpu := IconIdle, ColorTextMuted, "-"
		if row.Active {
			icon, color = IconRunning, ColorSuccess
			cpu = fmt.Sprintf("%.1f%%", row.CPU)
		}
		d.apps.SetCell(i, 0, tview.NewTableCell(icon).SetTextColor(color))
		d.apps.SetCell(i, 1, tview.NewTableCell(row.ID).SetTextColor(ColorText).SetExpansion(1))
		d.apps.SetCell(i, 2, tview.NewTableCell(cpu).SetTextColor(color).SetAlign(tview.AlignRight))
	}
}
