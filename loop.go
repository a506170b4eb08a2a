package duplex

import (
	"context"
	"errors"
	"fmt"

	"github.com/creachadair/duplex/transport"
)

// Start launches the receive loop of c, which passes each package received
// to h until the input ends, ctx ends, c is closed, or an error occurs. Start
// does not block while the loop runs; use Wait or WaitStatus to wait for it to
// finish. If c is already closed, Start reports ErrClosed.
//
// This function will panic if h == nil or if the loop has already been
// started.
func (c *Channel[T]) Start(ctx context.Context, h Handler[T]) error {
	if h == nil {
		panic("nil handler")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tr.Load()
	if t == nil {
		return ErrClosed
	} else if c.started {
		panic("receive loop is already started")
	}
	c.started = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		stat := c.receive(ctx, t.t.Input(), h)
		c.log.Printf("Receive loop ended: %+v", stat)
		if f, ok := h.(Finisher); ok {
			f.OnEndReceiveLoop(stat)
		}
		c.mu.Lock()
		c.status = stat
		c.mu.Unlock()
	}()
	return nil
}

// WaitStatus blocks until the receive loop of c has ended, and returns its
// final status. If the loop was never started, WaitStatus returns at once
// with a zero status.
func (c *Channel[T]) WaitStatus() LoopStatus {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Wait blocks until the receive loop of c has ended and returns the resulting
// error. It is equivalent to c.WaitStatus().Err.
func (c *Channel[T]) Wait() error { return c.WaitStatus().Err }

// receive is the main receiver loop. It reports the status with which the loop
// ended. On a read or decoding failure, the input is completed with the error
// so that other observers of the input can see why it stopped.
func (c *Channel[T]) receive(ctx context.Context, in transport.Reader, h Handler[T]) LoopStatus {
	if s, ok := h.(Starter); ok {
		if err := s.OnStartReceiveLoop(ctx); err != nil {
			err = fmt.Errorf("start receive loop: %w", err)
			in.Complete(err)
			return LoopStatus{Err: err}
		}
	}

	progress := false
	for {
		if ctx.Err() != nil {
			return LoopStatus{Canceled: true}
		}

		// If the last pass made progress, there may be more input already
		// buffered; otherwise wait for input beyond what was examined.
		var rr transport.ReadResult
		ok := false
		if progress {
			rr, ok = in.TryRead()
		}
		if !ok {
			var err error
			rr, err = in.Read(ctx)
			if errors.Is(err, transport.ErrCompleted) {
				return LoopStatus{Closed: true}
			} else if err != nil {
				in.Complete(err)
				return LoopStatus{Err: err}
			}
		}
		if rr.Canceled {
			return LoopStatus{Canceled: true}
		}

		consumed, err := c.extract(ctx, rr.Buffer, h)
		if err != nil {
			in.Complete(err)
			return LoopStatus{Err: err}
		}
		in.AdvanceTo(consumed, len(rr.Buffer))

		progress = consumed > 0
		if !progress && rr.Completed {
			if n := len(rr.Buffer); n != 0 {
				c.log.Printf("Input ended with %d bytes of an incomplete frame", n)
			}
			in.Complete(nil)
			return LoopStatus{Closed: true}
		}
	}
}

// extract decodes and handles all the complete frames at the front of buf,
// and reports how many bytes they occupied.
func (c *Channel[T]) extract(ctx context.Context, buf []byte, h Handler[T]) (int, error) {
	consumed := 0
	for consumed < len(buf) {
		pkg, n, err := c.pz.Unpack(buf[consumed:])
		if err != nil {
			return consumed, fmt.Errorf("unpack %s: %w", c.pz.Name(), err)
		} else if n == 0 {
			break // incomplete frame
		}
		consumed += n

		packagesRead.Add(1)
		bytesReadCount.Add(int64(n))
		c.m.Count(MetricPackagesRead, 1)
		c.m.Count(MetricBytesRead, int64(n))
		c.m.SetMaxValue(MetricMaxFrameBytes, int64(n))

		if err := h.Handle(ctx, pkg); err != nil {
			handlerErrorsCount.Add(1)
			c.m.Count(MetricHandlerErrors, 1)
			c.log.Printf("Handler error: %v", err)
			c.onError(err)
		}
	}
	return consumed, nil
}
