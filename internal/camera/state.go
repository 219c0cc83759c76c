package camera

// State is the lifecycle state of a camera worker.
type State string

const (
	StateUnknown      State = "unknown" // never started
	StateConnecting   State = "connecting"
	StateStreaming    State = "streaming"
	StateReconnecting State = "reconnecting"
	StateStopped      State = "stopped"
	StateFailed       State = "failed"
)

// Terminal reports whether a worker in this state has exited for good.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// Active reports whether a worker in this state is still running its loop.
func (s State) Active() bool {
	switch s {
	case StateConnecting, StateStreaming, StateReconnecting:
		return true
	default:
		return false
	}
}

// AllStates lists the worker states, used to reset per-state gauges.
var AllStates = []State{StateConnecting, StateStreaming, StateReconnecting, StateStopped, StateFailed}
