package coro

import "errors"

var (
	// ErrClosed is the cancellation cause of the producer context after the
	// consumer closed the iterator.
	ErrClosed = errors.New("coro: iterator closed")

	// ErrAborted is used by Abort when it is given a nil error.
	ErrAborted = errors.New("coro: iterator aborted")

	// ErrFinished is the cancellation cause of the producer context after the
	// producer finished.
	ErrFinished = errors.New("coro: producer finished")

	// ErrFailed is used by Fail when it is given a nil error.
	ErrFailed = errors.New("coro: producer failed")
)

// State is the lifecycle state of a channel.
type State int32

const (
	// NotStarted means no value has been pulled yet; the producer routine
	// has not been launched.
	NotStarted State = iota
	// Running means the producer routine has been launched.
	Running
	// Terminal is permanent. Every request resolves with a done result.
	Terminal
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Result is what a pull request resolves to.
//
// When Done is false, Value holds the pushed value. When Done is true and
// Returned is true, Return holds the value the producer passed to Finish;
// exactly one pull of a channel observes that. Every other done result has
// Returned set to false.
type Result[Y, R any] struct {
	Value    Y
	Return   R
	Done     bool
	Returned bool
}

// Reply is what a push request resolves to.
//
// For a pushed value that the consumer moved past, Value holds the input of
// the following Next call. Done reports that the channel is terminal; every
// further push is a no-op.
type Reply[N any] struct {
	Value N
	Done  bool
}
