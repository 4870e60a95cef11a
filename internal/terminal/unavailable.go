package terminal

import "fmt"

// Unavailable is the engine used when no vendor bridge is linked into the
// binary. Init always fails, so the orchestrator short-circuits every
// operation with SDK_UNAVAILABLE instead of attempting I/O.
type unavailableEngine struct {
	reason string
}

func Unavailable(reason string) Engine {
	return &unavailableEngine{reason: reason}
}

func (e *unavailableEngine) Init(string) error {
	return fmt.Errorf("terminal engine unavailable: %s", e.reason)
}

func (e *unavailableEngine) Dial(string, int) (Conn, error) {
	return nil, fmt.Errorf("terminal engine unavailable: %s", e.reason)
}

func (e *unavailableEngine) Name() string { return "unavailable" }
