// Package server provides support routines for running duplex channels on
// behalf of a service.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"

	"github.com/creachadair/duplex"
	"github.com/creachadair/duplex/packet"
	"github.com/creachadair/duplex/transport"
	"github.com/google/uuid"
)

// A Session describes a connection accepted by Loop.
type Session struct {
	ID      string                  // a unique identifier for the session
	Addr    net.Addr                // the remote address of the connection
	Channel *duplex.Channel[[]byte] // the channel for the connection
}

// LoopOptions control the behaviour of the Loop function. A nil *LoopOptions
// provides default values as described.
type LoopOptions struct {
	// If non-nil, this packetizer frames the packages of each session.
	// If nil, packet.LengthPrefix{} is used.
	Packetizer packet.Packetizer[[]byte]

	// If non-nil, these options are used when creating channels. If the
	// options include a Logger, log lines from each channel are labelled
	// with its session ID.
	ChannelOptions *duplex.Options

	// If non-nil, these options are used when creating transports.
	TransportOptions *transport.Options

	// If non-nil, the loop logs session lifecycle events here. If nil, logs
	// go to the default logger.
	Logger duplex.Logger
}

func (o *LoopOptions) packetizer() packet.Packetizer[[]byte] {
	if o == nil || o.Packetizer == nil {
		return packet.LengthPrefix{}
	}
	return o.Packetizer
}

func (o *LoopOptions) channelOptions(id string) *duplex.Options {
	if o == nil || o.ChannelOptions == nil {
		return nil
	}
	copt := *o.ChannelOptions
	if lg := copt.Logger; lg != nil {
		copt.Logger = func(text string) { lg("[" + id + "] " + text) }
	}
	return &copt
}

func (o *LoopOptions) transportOptions() *transport.Options {
	if o == nil {
		return nil
	}
	return o.TransportOptions
}

func (o *LoopOptions) logFunc() duplex.Logger {
	if o == nil || o.Logger == nil {
		return duplex.StdLogger(log.Default())
	}
	return o.Logger
}

// Loop obtains connections from lst and starts a channel for each, whose
// receive loop sends packages to the handler returned by newHandler for the
// session. Each channel runs in a new goroutine, and is closed when its
// receive loop ends.
//
// When ctx ends, Loop closes lst and the receive loops of all sessions are
// canceled. If accepting a connection fails, the loop terminates and the
// error is reported once all the sessions currently active have ended. If the
// failure is because lst was closed, Loop reports nil.
func Loop(ctx context.Context, lst net.Listener, newHandler func(*Session) duplex.Handler[[]byte], opts *LoopOptions) error {
	logf := opts.logFunc()
	stop := context.AfterFunc(ctx, func() { lst.Close() })
	defer stop()

	var wg sync.WaitGroup
	for {
		conn, err := lst.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				err = nil
			} else {
				logf.Printf("Error accepting new connection: %v", err)
			}
			wg.Wait()
			return err
		}

		sess := &Session{ID: uuid.NewString(), Addr: conn.RemoteAddr()}
		sess.Channel = duplex.New(
			transport.NewConn(conn, opts.transportOptions()),
			opts.packetizer(),
			opts.channelOptions(sess.ID),
		)
		logf.Printf("Session %s started (peer %v)", sess.ID, sess.Addr)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sess.Channel.Close()

			if err := sess.Channel.Start(ctx, newHandler(sess)); err != nil {
				logf.Printf("Session %s: starting receive loop: %v", sess.ID, err)
				return
			}
			if stat := sess.Channel.WaitStatus(); !stat.Success() {
				logf.Printf("Session %s failed: %v", sess.ID, stat.Err)
			} else {
				logf.Printf("Session %s ended (closed=%v, canceled=%v)", sess.ID, stat.Closed, stat.Canceled)
			}
		}()
	}
}
