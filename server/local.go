package server

import (
	"context"

	"github.com/creachadair/duplex"
	"github.com/creachadair/duplex/packet"
	"github.com/creachadair/duplex/transport"
)

// Local is a pair of channels connected by an in-memory transport. The
// receive loop of the server channel is running.
type Local[T any] struct {
	Client *duplex.Channel[T]
	Server *duplex.Channel[T]
}

// LocalOptions control the behaviour of the channels constructed by the
// NewLocal function. A nil *LocalOptions is ready for use.
type LocalOptions struct {
	Client    *duplex.Options
	Server    *duplex.Options
	Transport *transport.Options
}

func (o *LocalOptions) client() *duplex.Options {
	if o == nil {
		return nil
	}
	return o.Client
}

func (o *LocalOptions) server() *duplex.Options {
	if o == nil {
		return nil
	}
	return o.Server
}

func (o *LocalOptions) transport() *transport.Options {
	if o == nil {
		return nil
	}
	return o.Transport
}

// NewLocal constructs a pair of channels framed by pz and connected by an
// in-memory transport, and starts the receive loop of the server channel
// with h. The caller is responsible for starting the client's receive loop,
// if it wants one.
func NewLocal[T any](pz packet.Packetizer[T], h duplex.Handler[T], opts *LocalOptions) Local[T] {
	ct, st := transport.Pair(opts.transport())
	loc := Local[T]{
		Client: duplex.New(ct, pz, opts.client()),
		Server: duplex.New(st, pz, opts.server()),
	}
	loc.Server.Start(context.Background(), h) // cannot fail: the channel is new
	return loc
}

// Close closes the client channel, waits for the receive loop of the server
// to end, and closes the server channel. It reports the error from the
// server's receive loop, if any.
func (l Local[T]) Close() error {
	l.Client.Close()
	err := l.Server.Wait()
	l.Server.Close()
	return err
}
