package server

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/creachadair/duplex"
	"github.com/creachadair/duplex/internal/testutil"
	"github.com/creachadair/duplex/packet"
	"github.com/creachadair/duplex/transport"
	"github.com/creachadair/mds/mnet"
)

// echo returns a handler that writes each package back to the session.
func echo(sess *Session) duplex.Handler[[]byte] {
	return duplex.HandlerFunc[[]byte](func(ctx context.Context, pkg []byte) error {
		return sess.Channel.Write(ctx, pkg)
	})
}

func TestLoop(t *testing.T) {
	n := mnet.New(t.Name())
	lst := n.MustListen("tcp", "server:1")
	defer lst.Close()
	pz := packet.Varint{}

	// Start a bunch of clients, each of which will dial the server and send
	// some packages at random intervals to tickle the race detector.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := n.DialContext(context.Background(), "tcp", "server:1")
			if err != nil {
				t.Errorf("[client %d] Dialing: %v", i, err)
				return
			}
			cli := duplex.New(transport.NewConn(conn, nil), pz, nil)
			defer cli.Close()
			rec := testutil.NewRecorder[[]byte](1)
			cli.Start(context.Background(), rec)

			for j := 0; j < 5; j++ {
				time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
				msg := fmt.Sprintf("client %d message %d", i, j)
				if err := cli.Write(context.Background(), []byte(msg)); err != nil {
					t.Errorf("[client %d]: Write %d: unexpected error: %v", i, j+1, err)
				} else if got := testutil.Recv(t, rec.C); string(got) != msg {
					t.Errorf("[client %d]: Echo %d: got %q, want %q", i, j+1, got, msg)
				}
			}
		}()
	}

	// Wait for the clients to be finished and then close the listener so that
	// the service loop will stop.
	go func() {
		wg.Wait()
		t.Log("Clients are finished; closing listener")
		lst.Close()
	}()

	// Start a server loop to accept connections from the clients. This should
	// exit cleanly once all the clients have finished and the listener closes.
	var mu sync.Mutex
	ids := make(map[string]bool)
	if err := Loop(context.Background(), lst, func(sess *Session) duplex.Handler[[]byte] {
		mu.Lock()
		defer mu.Unlock()
		ids[sess.ID] = true
		return echo(sess)
	}, &LoopOptions{
		Packetizer: pz,
		Logger:     func(text string) { t.Log(text) },
	}); err != nil {
		t.Errorf("Loop: unexpected failure: %v", err)
	}
	if len(ids) != 5 {
		t.Errorf("Got %d distinct session IDs, want 5", len(ids))
	}
}

func TestLoopCancel(t *testing.T) {
	n := mnet.New(t.Name())
	lst := n.MustListen("tcp", "server:1")
	defer lst.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	started := make(chan *Session, 1)
	go func() {
		errc <- Loop(ctx, lst, func(sess *Session) duplex.Handler[[]byte] {
			started <- sess
			return testutil.NewRecorder[[]byte](-1)
		}, &LoopOptions{
			ChannelOptions: &duplex.Options{Logger: func(text string) { t.Log(text) }},
			Logger:         func(text string) { t.Log(text) },
		})
	}()

	conn, err := n.DialContext(ctx, "tcp", "server:1")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	sess := testutil.Recv(t, started)

	// Canceling the context stops the loop and closes the session channels.
	cancel()
	if err := testutil.Recv(t, errc); err != nil {
		t.Errorf("Loop: unexpected error: %v", err)
	}
	if !sess.Channel.IsClosed() {
		t.Error("Session channel is not closed after Loop returned")
	}
	if stat := sess.Channel.WaitStatus(); !stat.Canceled {
		t.Errorf("Session status: got %+v, want canceled", stat)
	}
}

func TestLoopAcceptError(t *testing.T) {
	errBad := fmt.Errorf("the listener is broken")
	err := Loop(context.Background(), badListener{errBad}, func(*Session) duplex.Handler[[]byte] {
		t.Fatal("Unexpected session")
		return nil
	}, &LoopOptions{Logger: func(text string) { t.Log(text) }})
	if err != errBad {
		t.Errorf("Loop: got %v, want %v", err, errBad)
	}
}

type badListener struct{ err error }

func (b badListener) Accept() (net.Conn, error) { return nil, b.err }
func (badListener) Close() error                { return nil }
func (badListener) Addr() net.Addr              { return nil }
