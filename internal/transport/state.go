// In file: internal/transport/state.go
package transport

import "sync/atomic"

// ConnectionState is the lifecycle of a hosted backend as seen by this process.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// connState holds a ConnectionState with atomic semantics. Stale reads only cost
// an extra failed call, so no lock is needed.
type connState struct {
	v atomic.Int32
}

func (c *connState) Load() ConnectionState {
	return ConnectionState(c.v.Load())
}

// Store sets the state and returns the previous one.
func (c *connState) Store(s ConnectionState) ConnectionState {
	return ConnectionState(c.v.Swap(int32(s)))
}
