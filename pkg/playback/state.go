// ABOUTME: Scheduler state machine states
// ABOUTME: Idle, Buffering, Playing and Paused with their string forms
package playback

// State is the scheduler state.
//
//	Idle ──enqueue──▶ Buffering ──threshold──▶ Playing ◀──resume── Paused
//	  ▲                   ▲                       │ ▲                 ▲
//	  │                   └──────underrun─────────┘ └──────pause──────┘
//	  └──────────────── cleanup / stream complete (from any state)
type State int

const (
	Idle State = iota
	Buffering
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Buffering:
		return "buffering"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON status output
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateChange describes one transition
type StateChange struct {
	From State
	To   State
}
