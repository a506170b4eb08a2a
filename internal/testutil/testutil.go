// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package testutil defines internal support code for writing tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"
)

// A Recorder is a channel handler that records the packages it receives.
// If it was created with a buffer, each package is also delivered to C.
type Recorder[T any] struct {
	C chan T

	mu   sync.Mutex
	pkgs []T
}

// NewRecorder returns a new Recorder whose channel has buffer size n.
// If n < 0, the recorder has no channel.
func NewRecorder[T any](n int) *Recorder[T] {
	r := new(Recorder[T])
	if n >= 0 {
		r.C = make(chan T, n)
	}
	return r
}

// Handle records pkg, and delivers it to r.C if that is not nil.
func (r *Recorder[T]) Handle(ctx context.Context, pkg T) error {
	r.mu.Lock()
	r.pkgs = append(r.pkgs, pkg)
	r.mu.Unlock()
	if r.C != nil {
		select {
		case r.C <- pkg:
		case <-ctx.Done():
		}
	}
	return nil
}

// Packages returns a copy of the packages recorded so far, in order of
// arrival.
func (r *Recorder[T]) Packages() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.pkgs...)
}

// Recv returns the next value from ch, or fails t if none arrives within a
// reasonable time.
func Recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for a value")
		panic("unreachable")
	}
}

// Quiet fails t if a value arrives on ch within d.
func Quiet[T any](t *testing.T, ch <-chan T, d time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("Unexpected value: %v", v)
	case <-time.After(d):
	}
}

// WriteChunks writes data to w in chunks of random length between 1 and maxLen
// bytes, chosen by rng.
func WriteChunks(w io.Writer, data []byte, maxLen int, rng *rand.Rand) error {
	for len(data) != 0 {
		n := min(len(data), 1+rng.Intn(maxLen))
		if _, err := w.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// A Sink is an io.WriteCloser that records everything written to it.
// Its methods are safe for concurrent use.
type Sink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// Write appends p to the recorded data. It fails after Close.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	return s.buf.Write(p)
}

// Close marks the sink closed. It is safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Bytes returns a copy of the data written to s.
func (s *Sink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes())
}

// A Stall is an io.WriteCloser whose writes block until it is closed, and then
// fail. Started receives a value each time a write begins.
type Stall struct {
	Started chan struct{}

	once   sync.Once
	closed chan struct{}
}

// NewStall returns a new, open Stall.
func NewStall() *Stall {
	return &Stall{Started: make(chan struct{}, 1), closed: make(chan struct{})}
}

// Write blocks until s is closed, then reports io.ErrClosedPipe.
func (s *Stall) Write([]byte) (int, error) {
	select {
	case s.Started <- struct{}{}:
	default:
	}
	<-s.closed
	return 0, io.ErrClosedPipe
}

// Close unblocks all pending and future writes.
func (s *Stall) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// A FailReader returns Data together with Err from its first Read, and
// reports Err with no data thereafter.
type FailReader struct {
	Data []byte
	Err  error

	mu   sync.Mutex
	sent bool
}

// Read implements io.Reader.
func (f *FailReader) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent {
		return 0, f.Err
	}
	f.sent = true
	return copy(p, f.Data), f.Err
}
