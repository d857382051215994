package pipeline

import "fmt"

type State int

const (
	StateIdle State = iota
	StateOpened
	StateStreaming
	StateFinalized
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateOpened:    "opened",
	StateStreaming: "streaming",
	StateFinalized: "finalized",
	StateFailed:    "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var transitions = map[State][]State{
	StateIdle:      {StateOpened, StateFailed},
	StateOpened:    {StateStreaming, StateFailed},
	StateStreaming: {StateFinalized, StateFailed},
}

// machine tracks the lifecycle of one run. Finalized and Failed are terminal.
type machine struct {
	state State
}

func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("illegal pipeline transition %s -> %s", m.state, next)
}
