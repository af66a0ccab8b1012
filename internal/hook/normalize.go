// Package hook turns raw Claude Code hook payloads into canonical events.
package hook

import (
	"encoding/json"
	"math"
	"time"
	"unicode/utf8"

	"github.com/zsprackett/agent-office/internal/events"
)

// Hook types as sent by Claude Code.
const (
	PreToolUse  = "PreToolUse"
	PostToolUse = "PostToolUse"
)

// detailFields are probed in order; the first string-valued field wins.
var detailFields = []string{"command", "file_path", "query", "pattern", "prompt", "url"}

// Normalize maps a decoded hook payload to an AgentEvent. The bool is false
// when the payload describes nothing worth showing; that is not an error.
func Normalize(raw any, now time.Time) (events.AgentEvent, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return events.AgentEvent{}, false
	}
	hookType := firstString(obj, "hookType", "type")
	switch hookType {
	case PreToolUse:
		tool := firstString(obj, "tool_name", "tool")
		if tool == "" {
			return events.AgentEvent{}, false
		}
		return events.AgentEvent{
			Kind:   events.ToolStarted,
			Tool:   tool,
			Role:   events.RoleOf(tool),
			Label:  tool,
			Detail: ExtractDetail(obj["tool_input"]),
			Ts:     now,
		}, true
	case PostToolUse:
		return events.AgentEvent{
			Kind:   events.ToolFinished,
			Role:   events.RoleClaude,
			Label:  events.ThinkingLabel,
			Detail: events.ProcessingDetail,
			Ts:     now,
		}, true
	}
	return events.AgentEvent{}, false
}

// ExtractDetail returns a short excerpt describing a tool's primary argument.
func ExtractDetail(input any) string {
	if isEmptyInput(input) {
		return ""
	}
	if obj, ok := input.(map[string]any); ok {
		for _, f := range detailFields {
			if s, ok := obj[f].(string); ok {
				return Truncate(s, events.MaxDetailLen)
			}
		}
	}
	data, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return Truncate(string(data), events.MaxDetailLen)
}

// isEmptyInput reports nil, "", false and numeric zero, which carry no detail.
func isEmptyInput(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0 || math.IsNaN(x)
	case int:
		return x == 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	}
	return false
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
