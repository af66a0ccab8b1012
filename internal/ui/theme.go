package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/zsprackett/agent-office/internal/events"
)

// Theme colors for the TUI.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorBackgroundElem  = tcell.NewHexColor(0x313244)
	ColorPrimary         = tcell.NewHexColor(0x89b4fa) // blue
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorSuccess         = tcell.NewHexColor(0xa6e3a1) // green
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorError           = tcell.NewHexColor(0xf38ba8) // red
	ColorBorder          = tcell.NewHexColor(0x45475a)
)

// Status icons
const (
	IconRunning = "●"
	IconWaiting = "◐"
	IconIdle    = "○"
	IconError   = "✗"
)

// StatusIcon maps a bridge state or director mode name to an icon and color.
func StatusIcon(status string) (string, tcell.Color) {
	switch status {
	case "live":
		return IconRunning, ColorSuccess
	case "demo":
		return IconRunning, ColorAccent
	case "connecting", "waiting":
		return IconWaiting, ColorWarning
	case "disconnected":
		return IconError, ColorError
	default:
		return IconIdle, ColorTextMuted
	}
}

var roleColors = map[events.Role]tcell.Color{
	events.RoleClaude:   tcell.NewHexColor(0xfab387), // peach
	events.RoleBash:     ColorSuccess,
	events.RoleCoder:    ColorPrimary,
	events.RoleReader:   tcell.NewHexColor(0x94e2d5), // teal
	events.RoleSearcher: ColorWarning,
	events.RolePlanner:  ColorAccent,
}

// RoleColor returns the display color for r.
func RoleColor(r events.Role) tcell.Color {
	if c, ok := roleColors[r]; ok {
		return c
	}
	return ColorText
}
