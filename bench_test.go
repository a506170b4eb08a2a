package duplex_test

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/creachadair/duplex"
	"github.com/creachadair/duplex/packet"
	"github.com/creachadair/duplex/server"
	"github.com/creachadair/duplex/transport"
)

func BenchmarkRoundTrip(b *testing.B) {
	// Benchmark a write that the server echoes back, as a proxy for the
	// overhead of the write path and the receive loop on both ends.
	var loc server.Local[[]byte]
	loc = server.NewLocal(packet.LengthPrefix{}, duplex.HandlerFunc[[]byte](func(ctx context.Context, pkg []byte) error {
		return loc.Server.Write(ctx, pkg)
	}), nil)
	defer loc.Close()

	replies := make(chan struct{})
	loc.Client.Start(context.Background(), duplex.HandlerFunc[[]byte](func(context.Context, []byte) error {
		replies <- struct{}{}
		return nil
	}))
	ctx := context.Background()
	msg := []byte("void")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := loc.Client.Write(ctx, msg); err != nil {
			b.Fatalf("Write failed: %v", err)
		}
		<-replies
	}
}

func BenchmarkWrite(b *testing.B) {
	for _, size := range []int{16, 1024, 64 << 10} {
		b.Run(strconv.Itoa(size), func(b *testing.B) {
			ct, st := transport.Pair(nil)
			cli := duplex.New(ct, packet.LengthPrefix{}, nil)
			defer cli.Close()
			srv := duplex.New(st, packet.LengthPrefix{}, nil)
			defer srv.Close()
			srv.Start(context.Background(), duplex.HandlerFunc[[]byte](func(context.Context, []byte) error { return nil }))

			msg := make([]byte, size)
			ctx := context.Background()
			b.SetBytes(int64(size))
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if err := cli.Write(ctx, msg); err != nil {
						b.Errorf("Write failed: %v", err)
						return
					}
				}
			})
		})
	}
}

func BenchmarkConcurrentWriters(b *testing.B) {
	ct, st := transport.Pair(nil)
	cli := duplex.New(ct, packet.Varint{}, nil)
	defer cli.Close()
	srv := duplex.New(st, packet.Varint{}, nil)
	defer srv.Close()
	srv.Start(context.Background(), duplex.HandlerFunc[[]byte](func(context.Context, []byte) error { return nil }))

	const writers = 8
	ctx := context.Background()
	msg := []byte("a moderately sized package of no particular interest")

	b.ResetTimer()
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; i < b.N; i += writers {
				if err := cli.Write(ctx, msg); err != nil {
					b.Errorf("Write failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
