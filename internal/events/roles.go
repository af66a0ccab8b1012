package events

// Role is the persona an event is attributed to.
type Role string

const (
	RoleClaude   Role = "claude"
	RoleBash     Role = "bash"
	RoleCoder    Role = "coder"
	RoleReader   Role = "reader"
	RoleSearcher Role = "searcher"
	RolePlanner  Role = "planner"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{RoleClaude, RoleBash, RoleCoder, RoleReader, RoleSearcher, RolePlanner}

var toolRoles = map[string]Role{
	"Bash":         RoleBash,
	"Edit":         RoleCoder,
	"Write":        RoleCoder,
	"NotebookEdit": RoleCoder,
	"Read":         RoleReader,
	"Glob":         RoleReader,
	"Grep":         RoleSearcher,
	"WebSearch":    RoleSearcher,
	"WebFetch":     RoleSearcher,
	"Task":         RolePlanner,
}

// RoleOf maps a tool name to its role. Unknown and empty names map to RoleClaude.
func RoleOf(tool string) Role {
	if r, ok := toolRoles[tool]; ok {
		return r
	}
	return RoleClaude
}

// Valid reports whether r is one of AllRoles.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}
