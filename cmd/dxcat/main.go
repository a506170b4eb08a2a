// Program dxcat sends and receives framed packages over a network connection.
//
// Usage:
//
//	dxcat [options] <address>
//
// In dial mode (the default), dxcat connects to address, sends each line of
// its standard input as a package, and prints each package it receives to
// standard output, one per line. With -l, dxcat listens on address instead,
// and prints the packages it receives from each connection, labelled with a
// session ID.
package main

import (
	"bufio"
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/creachadair/duplex"
	"github.com/creachadair/duplex/internal/logging"
	"github.com/creachadair/duplex/metrics"
	"github.com/creachadair/duplex/packet"
	"github.com/creachadair/duplex/server"
	"github.com/creachadair/duplex/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: %s [options] <address>

Connect to the specified address, send each line of standard input as a
package, and print the packages received to standard output. With -l, listen
for connections at the address instead.

The -f flag sets the framing discipline to use. Both ends must agree on the
framing in order for communication to work. The options are:

  prefix32   -- length-prefixed, length is 4 bytes little-endian
  varint     -- length-prefixed, length is a binary varint
  decimal    -- length-prefixed, length as a decimal integer line
  line       -- byte-terminated, records end in LF (Unicode 10)
  nul        -- byte-terminated, records end in NUL (Unicode 0)
  rs         -- byte-terminated, records end in RS (Unicode 30)
  lsp        -- header-framed, content-type application/vscode-jsonrpc (like LSP)
  header:<t> -- header-framed, content-type <t>

Settings may also be read from a TOML file given by -config. Flags set on the
command line override the file. The %s and %s environment variables
override the log level and disable colored logs.

Options:
`, fs.Name(), logging.EnvLevel, logging.EnvNoColor)
		fs.PrintDefaults()
	}

	cfg, err := parseArgs(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		os.Exit(2)
	}
	lg, err := logging.New(logging.Config{App: "dxcat", Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := run(ctx, cfg, lg, os.Stdin, os.Stdout); err != nil {
		lg.Fatal().Err(err).Msg("dxcat failed")
	}
}

// run executes dxcat with the given settings.
func run(ctx context.Context, cfg Config, lg zerolog.Logger, in io.Reader, out io.Writer) error {
	pz, err := cfg.packetizer()
	if err != nil {
		return err
	}
	m := metrics.New()
	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, m, lg)
		if err != nil {
			return err
		}
		defer stop()
	}
	copts := &duplex.Options{Logger: duplex.ZeroLogger(lg), Metrics: m}

	if cfg.Listen {
		lst, err := net.Listen(network(cfg.Address), cfg.Address)
		if err != nil {
			return err
		}
		lg.Info().Str("addr", lst.Addr().String()).Str("framing", pz.Name()).Msg("listening")
		return listen(ctx, lst, pz, cfg.Echo, copts, out)
	}

	timeout, err := cfg.dialTimeout()
	if err != nil {
		return err
	}
	wait, err := cfg.wait()
	if err != nil {
		return err
	}
	conn, err := net.DialTimeout(network(cfg.Address), cfg.Address, timeout)
	if err != nil {
		return fmt.Errorf("dial %q: %w", cfg.Address, err)
	}
	ch := duplex.New(transport.NewConn(conn, nil), pz, copts)
	defer ch.Close()
	lg.Info().Stringer("peer", ch.Address()).Str("framing", pz.Name()).Msg("connected")

	if err := ch.Start(ctx, printer(out, "")); err != nil {
		return err
	}
	if err := send(ctx, ch, in); err != nil {
		return err
	}
	if wait > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
	ch.Close()
	stat := ch.WaitStatus()
	lg.Info().
		Int64("sent", ch.TotalBytesSent()).
		Int64("received", ch.TotalBytesReceived()).
		Msg("disconnected")
	return stat.Err
}

// listen serves connections from lst until ctx ends, printing the packages
// received on each to out.
func listen(ctx context.Context, lst net.Listener, pz packet.Packetizer[[]byte], echo bool, copts *duplex.Options, out io.Writer) error {
	var mu sync.Mutex // serializes output
	return server.Loop(ctx, lst, func(sess *server.Session) duplex.Handler[[]byte] {
		show := printer(out, sess.ID[:8]+" ")
		return duplex.HandlerFunc[[]byte](func(ctx context.Context, pkg []byte) error {
			mu.Lock()
			err := show.Handle(ctx, pkg)
			mu.Unlock()
			if err == nil && echo {
				err = sess.Channel.Write(ctx, pkg)
			}
			return err
		})
	}, &server.LoopOptions{
		Packetizer:     pz,
		ChannelOptions: copts,
		Logger:         copts.Logger,
	})
}

// send writes each line of r as a package to ch.
func send(ctx context.Context, ch *duplex.Channel[[]byte], r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, packet.DefaultMaxSize)
	for sc.Scan() {
		if err := ch.Write(ctx, sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// printer returns a handler that prints each package to w on a line by
// itself, following the given prefix.
func printer(w io.Writer, prefix string) duplex.Handler[[]byte] {
	return duplex.HandlerFunc[[]byte](func(_ context.Context, pkg []byte) error {
		_, err := fmt.Fprintf(w, "%s%s\n", prefix, pkg)
		return err
	})
}

// network guesses the network type of addr: a path is a Unix socket.
func network(addr string) string {
	if !strings.Contains(addr, ":") {
		return "unix"
	}
	return "tcp"
}

// serveMetrics serves the channel metrics at addr, as Prometheus metrics at
// /metrics and as expvar values at /debug/vars. It returns a function that
// shuts down the server.
func serveMetrics(addr string, m *metrics.M, lg zerolog.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(m, "dxcat", nil)); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	expvar.Publish("duplex", duplex.Metrics())

	lst, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(lst); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error().Err(err).Msg("metrics server failed")
		}
	}()
	lg.Info().Str("addr", lst.Addr().String()).Msg("serving metrics")
	return func() { srv.Close() }, nil
}
