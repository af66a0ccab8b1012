package events

// App is a desktop application the sampler watches for.
type App struct {
	ID      string
	Aliases []string
}

// WatchedApps is the closed set of applications reported in app-state frames.
var WatchedApps = []App{
	{ID: "xiaohongshu", Aliases: []string{"小红书", "XiaoHongShu"}},
	{ID: "wechat", Aliases: []string{"WeChat", "微信"}},
	{ID: "cursor", Aliases: []string{"Cursor"}},
	{ID: "chrome", Aliases: []string{"Google Chrome", "chrome"}},
	{ID: "spotify", Aliases: []string{"Spotify"}},
	{ID: "notion", Aliases: []string{"Notion"}},
}

// MaxCPU caps AppState.CPU.
const MaxCPU = 99

type AppState struct {
	Active bool    `json:"active"`
	CPU    float64 `json:"cpu"`
}

// AppStates maps app id to state. A partial map leaves missing apps unchanged
// on the receiving side; it never implies they went inactive.
type AppStates map[string]AppState

// Clone returns a shallow copy of s.
func (s AppStates) Clone() AppStates {
	out := make(AppStates, len(s))
	for id, st := range s {
		out[id] = st
	}
	return out
}

// AppStateMessage is the full or partial snapshot frame.
type AppStateMessage struct {
	Type   string    `json:"type"`
	States AppStates `json:"states"`
}

func NewAppStateMessage(states AppStates) AppStateMessage {
	return AppStateMessage{Type: TypeAppState, States: states}
}

// IsWatchedApp reports whether id belongs to WatchedApps.
func IsWatchedApp(id string) bool {
	for _, a := range WatchedApps {
		if a.ID == id {
			return true
		}
	}
	return false
}

// InactiveStates returns a full snapshot with every watched app idle.
func InactiveStates() AppStates {
	out := make(AppStates, len(WatchedApps))
	for _, a := range WatchedApps {
		out[a.ID] = AppState{}
	}
	return out
}
