package playback

import (
	"time"

	"github.com/vsariola/lumo"
)

type (
	// Broker carries messages between the front ends and the scheduler loop.
	// All edits to the timeline, the library and the graphs should arrive
	// through ToScheduler while the scheduler is running, so that they are
	// applied between ticks.
	//
	// ToScheduler accepts PlayMsg, PauseMsg, SeekMsg, BPMMsg,
	// MoveSegmentMsg, LiveNoteMsg and func(), which gets executed in the
	// scheduler goroutine. ToFrontend receives StatusMsg after every tick;
	// it is sent with TrySend, so a slow front end just misses updates.
	Broker struct {
		ToScheduler chan any // TODO: a sum type would give a bit more type safety here
		ToFrontend  chan StatusMsg
	}

	PlayMsg struct{}

	PauseMsg struct{}

	SeekMsg struct {
		Position float64
	}

	BPMMsg struct {
		BPM float64
	}

	// MoveSegmentMsg requests a segment move. The result is sent to Reply if
	// it is not nil; Reply should be buffered.
	MoveSegmentMsg struct {
		ID         string
		Start, End int
		Reply      chan<- MoveReply
	}

	MoveReply struct {
		Result lumo.MoveResult
		Err    error
	}

	// LiveNoteMsg is a note played on a live input, e.g. a MIDI keyboard.
	LiveNoteMsg struct {
		On       bool
		Channel  int
		Key      int
		Velocity float64 // 0..1
	}

	StatusMsg struct {
		Position float64
		Playing  bool
		BPM      float64
		Active   int
		Dropped  int64
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToScheduler: make(chan any, 1024),
		ToFrontend:  make(chan StatusMsg, 16),
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
