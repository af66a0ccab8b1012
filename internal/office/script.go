package office

import (
	"time"

	"github.com/zsprackett/agent-office/internal/events"
)

// Script is the looping sequence replayed when no live data is arriving.
var Script = []Entry{
	thinking("planning the next step"),
	tool("Bash", "ls -la ~/projects"),
	tool("Read", "src/main.go"),
	tool("Grep", `"agent-office"`),
	thinking("reviewing search results"),
	tool("Edit", "internal/office/board.go"),
	tool("Write", "config.json"),
	tool("WebSearch", "gorilla websocket keepalive"),
	thinking("checking the output"),
	tool("Task", "spawning a sub-agent"),
	tool("Bash", "go build ./..."),
	thinking("writing the reply"),
}

func tool(name, detail string) Entry {
	return Entry{Tool: name, Role: events.RoleOf(name), Label: name, Detail: detail}
}

func thinking(detail string) Entry {
	return Entry{Role: events.RoleClaude, Label: events.ThinkingLabel, Detail: detail}
}

// Dwell returns how long e stays on screen. r is uniform in [0,1).
// Tool runs last 2.8-4s, thinking pauses 1.6-2.4s.
func Dwell(e Entry, r float64) time.Duration {
	if e.Busy() {
		return 2800*time.Millisecond + time.Duration(r*1200)*time.Millisecond
	}
	return 1600*time.Millisecond + time.Duration(r*800)*time.Millisecond
}
