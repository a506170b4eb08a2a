package transport

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// Output is the Writer implementation used by a Stream. Flushed data are
// handed to a background goroutine that writes them to the underlying writer
// in the order they were flushed.
type Output struct {
	wc       io.WriteCloser
	nwritten atomic.Int64

	reqs chan flushReq
	done chan struct{} // closed by Complete

	mu        sync.Mutex
	buf       []byte        // written but not yet flushed
	cancel    chan struct{} // closed by CancelPendingFlush
	completed bool
	cerr      error // the error passed to Complete
	werr      error // the error from closing the underlying writer
}

type flushReq struct {
	data   []byte
	result chan error
}

func newOutput(wc io.WriteCloser) *Output {
	out := &Output{
		wc:     wc,
		reqs:   make(chan flushReq),
		done:   make(chan struct{}),
		cancel: make(chan struct{}),
	}
	go out.drain()
	return out
}

// drain writes flushed data to the underlying writer until the output is
// completed.
func (o *Output) drain() {
	for {
		select {
		case <-o.done:
			return
		case req := <-o.reqs:
			nw, err := o.wc.Write(req.data)
			o.nwritten.Add(int64(nw))
			req.result <- err
		}
	}
}

// Write implements part of the Writer interface. It buffers p until the next
// call to Flush.
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.completed {
		return 0, ErrCompleted
	}
	o.buf = append(o.buf, p...)
	return len(p), nil
}

// Flush implements part of the Writer interface. If Flush returns before the
// buffered data are handed to the underlying writer, the data are discarded.
func (o *Output) Flush(ctx context.Context) error {
	o.mu.Lock()
	if o.completed {
		o.mu.Unlock()
		return ErrCompleted
	}
	data, cancel := o.buf, o.cancel
	o.buf = nil
	o.mu.Unlock()

	if len(data) == 0 {
		return nil
	}
	req := flushReq{data: data, result: make(chan error, 1)}
	select {
	case o.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-cancel:
		return ErrFlushCanceled
	case <-o.done:
		return ErrCompleted
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-cancel:
		return ErrFlushCanceled
	case <-o.done:
		return ErrCompleted
	}
}

// CancelPendingFlush implements part of the Writer interface.
func (o *Output) CancelPendingFlush() {
	o.mu.Lock()
	defer o.mu.Unlock()
	close(o.cancel)
	o.cancel = make(chan struct{})
}

// Complete implements part of the Writer interface. It closes the underlying
// writer, which interrupts a write in progress.
func (o *Output) Complete(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.completed {
		return
	}
	o.completed = true
	o.cerr = err
	o.buf = nil
	close(o.done)
	o.werr = o.wc.Close()
}

// Done returns a channel that is closed when the output is completed.
func (o *Output) Done() <-chan struct{} { return o.done }

// Err returns the error with which the output was completed, or nil.
func (o *Output) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cerr
}

// BytesWritten reports the number of bytes written to the underlying writer.
func (o *Output) BytesWritten() int64 { return o.nwritten.Load() }

func (o *Output) closeErr() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.werr
}
