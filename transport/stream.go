package transport

import (
	"io"
	"net"
	"sync"

	"go.uber.org/multierr"
)

// A Stream is a Duplex transport over an io.Reader and an io.WriteCloser.
// It implements the Measured interface.
type Stream struct {
	in   *Input
	out  *Output
	r    io.Reader
	addr net.Addr

	closeOnce sync.Once
	closeErr  error
}

// New constructs a Stream that reads input from r and writes output to wc.
// If opts == nil, default options are used. Completing the output endpoint
// closes wc. Closing the stream completes both endpoints, and closes r if it
// implements io.Closer.
func New(r io.Reader, wc io.WriteCloser, opts *Options) *Stream {
	return &Stream{
		in:   newInput(r, opts),
		out:  newOutput(wc),
		r:    r,
		addr: opts.address(),
	}
}

// Pair returns a connected pair of in-memory Streams, such that data written
// to either is read by the other.
func Pair(opts *Options) (client, server *Stream) {
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Address == nil {
		o.Address = pipeAddr{}
	}
	return New(cr, cw, &o), New(sr, sw, &o)
}

// NewConn constructs a Stream that communicates over conn. Unless opts
// specifies an address, the stream reports the remote address of conn.
// Completing the output endpoint shuts down the write side of conn, if it
// supports that; closing the stream closes conn.
func NewConn(conn net.Conn, opts *Options) *Stream {
	s := New(conn, halfCloser{conn}, opts)
	if s.addr == nil {
		s.addr = conn.RemoteAddr()
	}
	return s
}

// Input implements part of the Duplex interface.
func (s *Stream) Input() Reader { return s.in }

// Output implements part of the Duplex interface.
func (s *Stream) Output() Writer { return s.out }

// In returns the concrete input endpoint of s.
func (s *Stream) In() *Input { return s.in }

// Out returns the concrete output endpoint of s.
func (s *Stream) Out() *Output { return s.out }

// TotalBytesSent implements part of the Measured interface.
func (s *Stream) TotalBytesSent() int64 { return s.out.BytesWritten() }

// TotalBytesReceived implements part of the Measured interface.
func (s *Stream) TotalBytesReceived() int64 { return s.in.BytesRead() }

// RemoteAddr reports the address of the remote peer, or nil if unknown.
func (s *Stream) RemoteAddr() net.Addr { return s.addr }

// Close completes both endpoints and closes the underlying reader and writer.
// It is safe to call Close more than once; every call reports the same error.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.in.Complete(nil)
		s.out.Complete(nil)
		s.closeErr = s.out.closeErr()
		if c, ok := s.r.(io.Closer); ok {
			s.closeErr = multierr.Append(s.closeErr, c.Close())
		}
	})
	return s.closeErr
}

// halfCloser adapts a net.Conn so that Close shuts down only the write side
// of the connection, if possible.
type halfCloser struct{ net.Conn }

func (h halfCloser) Close() error {
	if cw, ok := h.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }
