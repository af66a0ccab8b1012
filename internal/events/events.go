package events

import (
	"encoding/json"
	"time"
)

// Message types carried in the "type" field of every frame pushed to viewers.
const (
	TypeToolStarted  = "PreToolUse"
	TypeToolFinished = "PostToolUse"
	TypeAppState     = "appState"
)

// Display text for the finished-tool event. Fixed, not localized.
const (
	ThinkingLabel    = "思考中"
	ProcessingDetail = "处理结果中…"
)

// MaxDetailLen bounds AgentEvent.Detail, in runes.
const MaxDetailLen = 100

type Kind int

const (
	ToolStarted Kind = iota
	ToolFinished
)

func (k Kind) String() string {
	switch k {
	case ToolStarted:
		return "ToolStarted"
	case ToolFinished:
		return "ToolFinished"
	default:
		return "Unknown"
	}
}

// Type returns the wire discriminator for k.
func (k Kind) Type() string {
	if k == ToolFinished {
		return TypeToolFinished
	}
	return TypeToolStarted
}

// KindOf maps a wire type back to a Kind.
func KindOf(typ string) (Kind, bool) {
	switch typ {
	case TypeToolStarted:
		return ToolStarted, true
	case TypeToolFinished:
		return ToolFinished, true
	}
	return 0, false
}

// AgentEvent is the canonical unit broadcast to every viewer.
type AgentEvent struct {
	Kind   Kind
	Tool   string
	Role   Role
	Label  string
	Detail string
	Ts     time.Time
}

type agentEventJSON struct {
	Type   string  `json:"type"`
	Tool   *string `json:"tool"`
	Role   Role    `json:"role"`
	Label  string  `json:"label"`
	Detail string  `json:"detail"`
	Ts     int64   `json:"ts"`
}

func (e AgentEvent) MarshalJSON() ([]byte, error) {
	out := agentEventJSON{
		Type:   e.Kind.Type(),
		Role:   e.Role,
		Label:  e.Label,
		Detail: e.Detail,
		Ts:     e.Ts.UnixMilli(),
	}
	if e.Kind == ToolStarted && e.Tool != "" {
		tool := e.Tool
		out.Tool = &tool
	}
	return json.Marshal(out)
}

func (e *AgentEvent) UnmarshalJSON(data []byte) error {
	var in agentEventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	kind, _ := KindOf(in.Type)
	e.Kind = kind
	e.Tool = ""
	if in.Tool != nil {
		e.Tool = *in.Tool
	}
	e.Role = in.Role
	if e.Role == "" {
		e.Role = RoleOf(e.Tool)
	}
	e.Label = in.Label
	e.Detail = in.Detail
	e.Ts = time.UnixMilli(in.Ts)
	return nil
}

// Envelope is the minimal shape every frame shares.
type Envelope struct {
	Type string `json:"type"`
}

// IsKnownType reports whether typ is one of the message types the relay emits.
func IsKnownType(typ string) bool {
	switch typ {
	case TypeToolStarted, TypeToolFinished, TypeAppState:
		return true
	}
	return false
}

// Broadcaster sends messages to connected viewers.
type Broadcaster interface {
	Broadcast(v any)
}
