// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package duplex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/creachadair/duplex/metrics"
	"github.com/creachadair/duplex/packet"
	"github.com/creachadair/duplex/transport"
	"golang.org/x/sync/semaphore"
)

// maxRetainedBuffer bounds the write buffer a channel keeps between writes.
const maxRetainedBuffer = 64 << 10

// A Channel is a framed duplex channel carrying packages of type T over a
// transport. Write is safe for concurrent use by multiple goroutines; the
// channel has at most one receive loop.
type Channel[T any] struct {
	pz      packet.Packetizer[T]
	addr    net.Addr
	log     Logger
	onError func(error)
	m       *metrics.M

	tr     atomic.Pointer[held] // nil once the channel is closed
	permit *semaphore.Weighted  // single-writer permit
	wbuf   []byte               // reusable pack buffer; guarded by permit

	closing context.Context // ends when the channel closes
	closed  context.CancelCauseFunc

	meas transport.Measured // nil if the transport does not count bytes

	wg      sync.WaitGroup // ready when the receive loop has exited
	mu      sync.Mutex     // protects the fields below
	started bool           // the receive loop has been started
	status  LoopStatus     // the final status of the receive loop
}

type held struct{ t transport.Duplex }

// New constructs a channel that exchanges packages of type T over t, framed
// by pz. The channel takes ownership of t: closing the channel completes both
// endpoints of t and closes t if it implements io.Closer. To start receiving
// packages, call Start.
//
// This function will panic if t == nil or pz == nil.
func New[T any](t transport.Duplex, pz packet.Packetizer[T], opts *Options) *Channel[T] {
	if t == nil {
		panic("nil transport")
	} else if pz == nil {
		panic("nil packetizer")
	}
	closing, closed := context.WithCancelCause(context.Background())
	c := &Channel[T]{
		pz:      pz,
		addr:    opts.address(),
		log:     opts.logFunc(),
		onError: opts.onHandlerError(),
		m:       opts.metrics(),
		permit:  semaphore.NewWeighted(1),
		closing: closing,
		closed:  closed,
	}
	if c.addr == nil {
		if ra, ok := t.(interface{ RemoteAddr() net.Addr }); ok {
			c.addr = ra.RemoteAddr()
		}
	}
	c.meas, _ = t.(transport.Measured)
	c.tr.Store(&held{t: t})
	channelsActiveGauge.Add(1)
	return c
}

// Address reports the address of the remote peer of c, or nil if it is not
// known. The address does not change when c is closed.
func (c *Channel[T]) Address() net.Addr { return c.addr }

// Packetizer returns the packetizer that frames the packages of c.
func (c *Channel[T]) Packetizer() packet.Packetizer[T] { return c.pz }

// IsClosed reports whether c has been closed.
func (c *Channel[T]) IsClosed() bool { return c.tr.Load() == nil }

// TotalBytesSent reports the number of bytes c has sent through its transport.
// It reports zero if the transport does not implement transport.Measured.
// The counters remain readable after c is closed.
func (c *Channel[T]) TotalBytesSent() int64 {
	if c.meas == nil {
		return 0
	}
	return c.meas.TotalBytesSent()
}

// TotalBytesReceived reports the number of bytes c has received through its
// transport. It reports zero if the transport does not implement
// transport.Measured. The counters remain readable after c is closed.
func (c *Channel[T]) TotalBytesReceived() int64 {
	if c.meas == nil {
		return 0
	}
	return c.meas.TotalBytesReceived()
}

// Write packs pkg and sends it through the transport, blocking until the
// frame has been flushed, ctx ends, or c is closed. Concurrent writes are
// serialized, and the frame of each write is sent whole. A write that cannot
// proceed immediately waits in line behind earlier callers.
//
// If c is closed, Write reports ErrClosed without blocking.
func (c *Channel[T]) Write(ctx context.Context, pkg T) error {
	if c.IsClosed() {
		return ErrClosed
	}
	if !c.permit.TryAcquire(1) {
		if err := c.acquire(ctx); err != nil {
			return err
		}
	}
	defer c.permit.Release(1)
	return c.writeLocked(ctx, pkg)
}

// acquire waits in line for the write permit, until it is obtained, ctx ends,
// or c is closed.
func (c *Channel[T]) acquire(ctx context.Context) error {
	wctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(c.closing, func() { cancel(ErrClosed) })
	defer stop()

	if err := c.permit.Acquire(wctx, 1); err != nil {
		if errors.Is(context.Cause(wctx), ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// writeLocked packs and sends pkg. The caller must hold the write permit.
func (c *Channel[T]) writeLocked(ctx context.Context, pkg T) error {
	h := c.tr.Load()
	if h == nil {
		return ErrClosed
	}
	frame, err := c.pz.Pack(c.wbuf[:0], pkg)
	if err != nil {
		c.countWriteError()
		return fmt.Errorf("pack %s: %w", c.pz.Name(), err)
	}
	if cap(frame) <= maxRetainedBuffer {
		c.wbuf = frame[:0]
	}

	out := h.t.Output()
	if _, err := out.Write(frame); err != nil {
		return c.writeFailed(err)
	}
	if err := out.Flush(ctx); err != nil {
		return c.writeFailed(err)
	}

	nb := int64(len(frame))
	packagesWritten.Add(1)
	bytesWrittenCount.Add(nb)
	c.m.Count(MetricPackagesWritten, 1)
	c.m.Count(MetricBytesWritten, nb)
	c.m.SetMaxValue(MetricMaxFrameBytes, nb)
	return nil
}

// writeFailed records a failed write. If the channel was closed while the
// write was in flight, the failure is reported as ErrClosed.
func (c *Channel[T]) writeFailed(err error) error {
	c.countWriteError()
	if c.IsClosed() && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

func (c *Channel[T]) countWriteError() {
	writeErrorsCount.Add(1)
	c.m.Count(MetricWriteErrors, 1)
}

// Close closes the channel. It is equivalent to CloseWithError(nil).
func (c *Channel[T]) Close() error { return c.CloseWithError(nil) }

// CloseWithError closes the channel, completing both endpoints of the
// transport with err. Pending and subsequent writes fail with ErrClosed, and
// a receive loop in progress ends. It is safe to call CloseWithError more than
// once, and from concurrent goroutines; only the first call has any effect.
// It always returns nil: failures while tearing down are logged.
func (c *Channel[T]) CloseWithError(err error) error {
	h := c.tr.Swap(nil)
	if h == nil {
		return nil // already closed
	}
	c.log.Printf("Closing channel (err=%v)", err)

	in, out := h.t.Input(), h.t.Output()
	c.teardown("complete input", func() { in.Complete(err) })
	c.teardown("cancel pending read", in.CancelPendingRead)
	c.teardown("complete output", func() { out.Complete(err) })
	c.teardown("cancel pending flush", out.CancelPendingFlush)
	if cl, ok := h.t.(io.Closer); ok {
		c.teardown("close transport", func() {
			if err := cl.Close(); err != nil {
				c.log.Printf("Closing transport: %v", err)
			}
		})
	}

	// Wake writers waiting for the permit.
	c.closed(ErrClosed)
	channelsActiveGauge.Add(-1)
	return nil
}

// teardown runs one step of closing the channel, logging a panic rather than
// propagating it so that the remaining steps still run.
func (c *Channel[T]) teardown(step string, f func()) {
	defer func() {
		if p := recover(); p != nil {
			c.log.Printf("Panic in %s: %v", step, p)
		}
	}()
	f()
}
