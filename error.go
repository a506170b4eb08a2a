package duplex

import "errors"

// ErrClosed is reported by operations on a channel that has been closed.
var ErrClosed = errors.New("channel is closed")

// LoopStatus describes how the receive loop of a channel ended.
//
// A loop is said to have succeeded if it ended because its input ran out, the
// channel was closed, or the loop was canceled. On success, Err == nil, and the
// flag fields indicate the reason why the loop ended. Otherwise, Err != nil is
// the error that caused the loop to exit.
type LoopStatus struct {
	Err error // the error that caused the loop to stop (nil on success)

	// On success, these flags explain the reason why the loop stopped.
	// At most one of these fields will be true.
	Canceled bool // the loop context ended, or the pending read was canceled
	Closed   bool // the input ended, or the channel was closed
}

// Success reports whether the loop exited without error.
func (s LoopStatus) Success() bool { return s.Err == nil }
