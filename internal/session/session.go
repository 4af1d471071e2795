// Package session owns the fixed-capacity pool of DOOM session slots: slot
// allocation, teardown, process-exit handling and idle eviction all happen
// here under one lock.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/poodlez/doom/internal/capture"
)

var (
	// ErrNoSuchSession is returned for identifiers outside the pool range,
	// and for lookups that would require creating a slot while creation is
	// disabled.
	ErrNoSuchSession = errors.New("no such session")

	// ErrSessionResources is returned when allocating a slot's resources
	// (FIFO, buffers, process spawn) fails. The slot is left empty.
	ErrSessionResources = errors.New("session resources unavailable")

	// ErrSessionGone reports that a session was recycled between a caller's
	// lookup and its later use of the handle. Callers abort quietly.
	ErrSessionGone = errors.New("session gone")
)

// State is the lifecycle state of a session slot.
type State int

const (
	StateEmpty State = iota
	StateInitializing
	StateActive
	StateTearingDown
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateTearingDown:
		return "tearing-down"
	default:
		return "unknown"
	}
}

// Session is one slot in the pool. Lifecycle fields (state, gen, pid,
// lastActivity) are guarded by the registry lock; frame production fields
// (source, rgb, frameID) are guarded by frameMu so capture and encode never
// run under the registry lock.
type Session struct {
	id           int
	state        State
	gen          uint64
	pid          int
	fifoPath     string
	lastActivity time.Time

	frameMu sync.Mutex
	source  capture.Source
	rgb     []byte
	frameID uint64
}
