package duplex

import (
	"fmt"
	"log"
	"net"

	"github.com/creachadair/duplex/metrics"
	"github.com/rs/zerolog"
)

// Options control the behaviour of a channel created by New.
// A nil *Options provides sensible defaults.
type Options struct {
	// If not nil, send debug text logs here.
	Logger Logger

	// If not nil, the channel reports this as its address. Otherwise, the
	// address is taken from the transport, if it has a RemoteAddr method.
	Address net.Addr

	// If not nil, this function is called with each error reported by the
	// handler of the receive loop. It is called synchronously by the loop.
	OnHandlerError func(error)

	// If not nil, the channel also records its counters here.
	Metrics *metrics.M
}

func (o *Options) logFunc() Logger {
	if o == nil {
		return nil
	}
	return o.Logger
}

func (o *Options) address() net.Addr {
	if o == nil {
		return nil
	}
	return o.Address
}

func (o *Options) onHandlerError() func(error) {
	if o == nil || o.OnHandlerError == nil {
		return func(error) {}
	}
	return o.OnHandlerError
}

func (o *Options) metrics() *metrics.M {
	if o == nil {
		return nil
	}
	return o.Metrics
}

// A Logger records text logs from a channel. A nil logger discards text log
// input.
type Logger func(text string)

// Printf writes a formatted message to the logger. If lg == nil, the message
// is discarded.
func (lg Logger) Printf(msg string, args ...any) {
	if lg != nil {
		lg(fmt.Sprintf(msg, args...))
	}
}

// StdLogger adapts a *log.Logger to a Logger. If logger == nil, the returned
// function sends logs to the default logger.
func StdLogger(logger *log.Logger) Logger {
	if logger == nil {
		return func(text string) { log.Output(2, text) }
	}
	return func(text string) { logger.Output(2, text) }
}

// ZeroLogger adapts a zerolog.Logger to a Logger. Each text log is written as
// a debug event.
func ZeroLogger(logger zerolog.Logger) Logger {
	return func(text string) { logger.Debug().Msg(text) }
}
