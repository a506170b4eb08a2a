// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package transport defines the duplex byte transport consumed by a
// duplex.Channel, and an implementation of it over any reader and writer.
//
// A transport has an input endpoint (Reader) and an output endpoint (Writer).
// The input endpoint buffers bytes as they arrive, and hands the reader a run
// of all the bytes it has not yet consumed; the reader reports back how much
// of that run it consumed and how much it examined, so that a partial frame
// remains buffered until more data arrive. The output endpoint buffers writes
// until they are explicitly flushed.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
)

// A Reader is the input endpoint of a duplex transport. A Reader is intended
// for use by a single receive loop, but CancelPendingRead and Complete may be
// called concurrently from other goroutines.
type Reader interface {
	// Read blocks until input is available beyond the bytes previously
	// examined, the input ends, the pending read is canceled, or ctx ends.
	// Cancellation (including ctx ending) is reported as a result with
	// Canceled set, not as an error. A failure of the underlying stream is
	// reported as an error.
	Read(ctx context.Context) (ReadResult, error)

	// TryRead reports a result without blocking, if one is available.
	TryRead() (ReadResult, bool)

	// AdvanceTo reports that the first consumed bytes of the most recent
	// result buffer are no longer needed, and that the first examined bytes
	// have been looked at. The next Read will wait for data beyond the
	// examined bytes. It must be that 0 ≤ consumed ≤ examined ≤ len(Buffer).
	// After AdvanceTo, the previous result buffer is no longer valid.
	AdvanceTo(consumed, examined int)

	// CancelPendingRead causes a pending or the next Read to return a result
	// with Canceled set.
	CancelPendingRead()

	// Complete reports that no more data will be read from the endpoint.
	// If err != nil, it records the reason the reader gave up. Only the first
	// call to Complete has any effect.
	Complete(err error)
}

// A ReadResult is the result of a Read or TryRead call.
type ReadResult struct {
	// All the input not yet consumed, including bytes examined by earlier
	// reads. The contents are valid only until the next AdvanceTo.
	Buffer []byte

	// Completed is true if no further input will ever arrive.
	Completed bool

	// Canceled is true if the read was canceled.
	Canceled bool
}

// A Writer is the output endpoint of a duplex transport. Callers must not
// call Write or Flush concurrently; CancelPendingFlush and Complete may be
// called concurrently with either.
type Writer interface {
	// Write buffers p for a subsequent Flush.
	io.Writer

	// Flush sends all buffered data to the underlying stream, and blocks
	// until that is done, ctx ends, or the flush is canceled.
	Flush(ctx context.Context) error

	// CancelPendingFlush causes a pending Flush to return ErrFlushCanceled.
	CancelPendingFlush()

	// Complete reports that no more data will be written to the endpoint.
	// Only the first call to Complete has any effect.
	Complete(err error)
}

// A Duplex is a pair of input and output endpoints.
type Duplex interface {
	Input() Reader
	Output() Writer
}

// Measured is an optional interface for a Duplex that counts the bytes it
// has transferred.
type Measured interface {
	TotalBytesSent() int64
	TotalBytesReceived() int64
}

var (
	// ErrCompleted is reported by operations on an endpoint after Complete.
	ErrCompleted = errors.New("endpoint is completed")

	// ErrFlushCanceled is reported by Flush when the flush is canceled by a
	// call to CancelPendingFlush.
	ErrFlushCanceled = errors.New("flush canceled")
)

// Options control the behaviour of a Stream constructed by New.
// A nil *Options provides sensible defaults.
type Options struct {
	// The size of each read from the underlying reader. If zero, 4096 is used.
	ReadSize int

	// The input endpoint stops reading from the underlying reader when at
	// least this many bytes are buffered that the receiver has not yet
	// examined. If zero, 64 KiB is used.
	PauseThreshold int

	// Reading resumes when the receiver catches up to within this many bytes.
	// If zero or greater than the pause threshold, half the pause threshold
	// is used.
	ResumeThreshold int

	// If not nil, this address is reported by RemoteAddr.
	Address net.Addr
}

func (o *Options) readSize() int {
	if o == nil || o.ReadSize <= 0 {
		return 4096
	}
	return o.ReadSize
}

func (o *Options) pauseThreshold() int {
	if o == nil || o.PauseThreshold <= 0 {
		return 64 << 10
	}
	return o.PauseThreshold
}

func (o *Options) resumeThreshold() int {
	pause := o.pauseThreshold()
	if o == nil || o.ResumeThreshold <= 0 || o.ResumeThreshold > pause {
		return pause / 2
	}
	return o.ResumeThreshold
}

func (o *Options) address() net.Addr {
	if o == nil {
		return nil
	}
	return o.Address
}

// signal sends a token on a one-slot channel without blocking.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
