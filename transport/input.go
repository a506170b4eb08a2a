package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Input is the Reader implementation used by a Stream. A background goroutine
// copies data from the underlying reader into a buffer, pausing while the
// receiver has fallen behind.
type Input struct {
	r      io.Reader
	size   int
	pause  int
	resume int
	nread  atomic.Int64

	ready chan struct{} // input or state is available to the receiver
	space chan struct{} // the receiver has caught up
	done  chan struct{} // closed by Complete

	mu        sync.Mutex
	buf       []byte // all unconsumed input
	examined  int    // the prefix of buf already examined
	eof       bool   // the underlying reader reported io.EOF
	rerr      error  // the underlying reader reported another error
	canceled  bool   // a pending read has been canceled
	completed bool   // Complete has been called
	cerr      error  // the error passed to Complete
}

func newInput(r io.Reader, opts *Options) *Input {
	in := &Input{
		r:      r,
		size:   opts.readSize(),
		pause:  opts.pauseThreshold(),
		resume: opts.resumeThreshold(),
		ready:  make(chan struct{}, 1),
		space:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go in.pump()
	return in
}

// pump copies data from the underlying reader into the buffer until the
// reader fails or the input is completed.
func (in *Input) pump() {
	chunk := make([]byte, in.size)
	for in.waitForSpace() {
		nr, err := in.r.Read(chunk)

		in.mu.Lock()
		if in.completed {
			in.mu.Unlock()
			return
		}
		if nr > 0 {
			in.buf = append(in.buf, chunk[:nr]...)
			in.nread.Add(int64(nr))
		}
		if err == io.EOF {
			in.eof = true
		} else if err != nil {
			in.rerr = err
		}
		in.mu.Unlock()

		signal(in.ready)
		if err != nil {
			return
		}
	}
}

// waitForSpace blocks while the receiver has at least the pause threshold of
// unexamined data buffered. It reports false if the input was completed.
func (in *Input) waitForSpace() bool {
	for {
		in.mu.Lock()
		behind := len(in.buf)-in.examined >= in.pause
		completed := in.completed
		in.mu.Unlock()

		if completed {
			return false
		} else if !behind {
			return true
		}
		select {
		case <-in.space:
		case <-in.done:
			return false
		}
	}
}

// Read implements part of the Reader interface.
func (in *Input) Read(ctx context.Context) (ReadResult, error) {
	for {
		if rr, ok, err := in.poll(); ok || err != nil {
			return rr, err
		}
		select {
		case <-ctx.Done():
			return ReadResult{Canceled: true}, nil
		case <-in.ready:
			// check again
		}
	}
}

// TryRead implements part of the Reader interface.
func (in *Input) TryRead() (ReadResult, bool) {
	rr, ok, err := in.poll()
	return rr, ok && err == nil
}

// poll reports a result if one is available. It reports ok == false and a
// nil error if the caller must wait for more input.
func (in *Input) poll() (_ ReadResult, ok bool, _ error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.completed {
		return ReadResult{}, false, ErrCompleted
	} else if in.canceled {
		in.canceled = false
		return ReadResult{Buffer: in.view(), Canceled: true}, true, nil
	} else if len(in.buf) > in.examined || in.eof {
		return ReadResult{Buffer: in.view(), Completed: in.eof}, true, nil
	} else if in.rerr != nil {
		// Data that arrived along with the error are delivered first.
		return ReadResult{}, false, in.rerr
	}
	return ReadResult{}, false, nil
}

// view returns the unconsumed buffer, capped so that appending to the result
// cannot disturb input that arrives later. The caller must hold in.mu.
func (in *Input) view() []byte { return in.buf[:len(in.buf):len(in.buf)] }

// AdvanceTo implements part of the Reader interface. It panics if the offsets
// are out of range.
func (in *Input) AdvanceTo(consumed, examined int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.completed {
		return
	}
	if consumed < 0 || consumed > examined || examined > len(in.buf) {
		panic(fmt.Sprintf("transport: invalid advance (consumed=%d, examined=%d, buffered=%d)",
			consumed, examined, len(in.buf)))
	}
	switch rest := len(in.buf) - consumed; {
	case rest == 0:
		in.buf = in.buf[:0]
	case cap(in.buf) > 4*in.pause && rest < in.pause:
		// Release the storage left over from an unusually large frame.
		in.buf = append(make([]byte, 0, in.pause), in.buf[consumed:]...)
	default:
		in.buf = in.buf[:copy(in.buf, in.buf[consumed:])]
	}
	in.examined = examined - consumed
	if len(in.buf)-in.examined <= in.resume {
		signal(in.space)
	}
}

// CancelPendingRead implements part of the Reader interface.
func (in *Input) CancelPendingRead() {
	in.mu.Lock()
	in.canceled = true
	in.mu.Unlock()
	signal(in.ready)
}

// Complete implements part of the Reader interface.
func (in *Input) Complete(err error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.completed {
		return
	}
	in.completed = true
	in.cerr = err
	in.buf = nil
	close(in.done)
}

// Done returns a channel that is closed when the input is completed.
func (in *Input) Done() <-chan struct{} { return in.done }

// Err returns the error with which the input was completed, or nil if it has
// not been completed or was completed without error.
func (in *Input) Err() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.cerr
}

// BytesRead reports the number of bytes read from the underlying reader.
func (in *Input) BytesRead() int64 { return in.nread.Load() }
